package profile

// Header returns the column names used by the delimited layouts. Phone numbers
// are only present when the operator asked for them.
func Header(includePhone bool) []string {
	cols := []string{"Name", "Email(s)"}
	if includePhone {
		cols = append(cols, "Phone(s)")
	}
	return append(cols,
		"Profile URL",
		"LinkedIn",
		"City",
		"Region",
		"Industry",
		"Title",
		"Company",
		"Class Year",
	)
}

// Row renders r in Header order.
func Row(r Record, includePhone bool) []string {
	row := []string{r.Name, JoinList(r.Emails)}
	if includePhone {
		row = append(row, JoinList(r.Phones))
	}
	return append(row,
		r.URL,
		r.LinkedIn,
		r.City,
		r.Region,
		r.Industry,
		r.Title,
		r.Company,
		r.ClassYear,
	)
}
