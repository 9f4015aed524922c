package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/directory-crawler/internal/profile"
)

var (
	emailPatterns = []*regexp.Regexp{
		regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
		regexp.MustCompile(`[a-zA-Z0-9._%+\-]+[\s@]+[a-zA-Z0-9.\-]+[\s.]+[a-zA-Z]{2,}`),
		regexp.MustCompile(`(?i)[a-zA-Z0-9._%+\-]+(?:\s*(?:\bat\b|@|&#64;|\[at\])\s*)[a-zA-Z0-9.\-]+(?:\s*(?:\bdot\b|\.|\[dot\])\s*)[a-zA-Z]{2,}`),
	}
	phonePattern    = regexp.MustCompile(`\+?\d[\d\-\s().]{6,}\d`)
	linkedInPattern = regexp.MustCompile(`(?i)https?://(?:[a-z]{2,3}\.)?linkedin\.com/in/[A-Za-z0-9_%\-]+/?`)
	classOfPattern  = regexp.MustCompile(`(?i)\bclass\s+of\s+((?:19|20)\d{2})\b`)
)

// Field names used in chain results and fault reports.
const (
	FieldName      = "name"
	FieldEmail     = "email"
	FieldPhone     = "phone"
	FieldLinkedIn  = "linkedin"
	FieldClassYear = "class_year"
	FieldWork      = "work"
	FieldIndustry  = "industry"
	FieldLocation  = "location"
)

// Reader builds the per-field chains for one selector set.
type Reader struct {
	sel     Selectors
	onFault FaultFunc
}

// NewReader returns a Reader. onFault may be nil.
func NewReader(sel Selectors, onFault FaultFunc) *Reader {
	return &Reader{sel: sel.WithDefaults(), onFault: onFault}
}

// Read runs every chain against doc. Phones are only read when
// includePhone is set.
func (r *Reader) Read(doc *Document, includePhone bool) (profile.Fields, map[string]string) {
	used := make(map[string]string, 8)
	run := func(c Chain) Result {
		c.OnFault = r.onFault
		res := c.Run(doc)
		used[c.Field] = res.Strategy
		return res
	}

	var f profile.Fields
	f.Name = run(r.NameChain()).First()
	f.Emails = run(r.EmailChain()).Values
	if includePhone {
		f.Phones = run(r.PhoneChain()).Values
	}
	f.LinkedIn = run(r.LinkedInChain()).First()
	f.ClassYear = run(r.ClassYearChain(f.Name)).First()
	work := run(r.WorkChain()).Values
	if len(work) > 0 {
		f.Title = work[0]
	}
	if len(work) > 1 {
		f.Company = work[1]
	}
	f.Industry = run(r.IndustryChain()).First()
	f.Location = run(r.LocationChain()).First()
	return f, used
}

// NameChain tries the heading candidates, then the "full name" label.
func (r *Reader) NameChain() Chain {
	return Chain{
		Field: FieldName,
		Strategies: []Strategy{
			{Name: "heading", Fn: r.nameFromHeadings},
			{Name: "label", Fn: func(d *Document) ([]string, error) {
				values, err := labelValue(d, r.sel.NameLabel, r.sel.LabeledValue)
				return r.dropBoilerplate(values), err
			}},
		},
	}
}

func (r *Reader) nameFromHeadings(d *Document) ([]string, error) {
	var out []string
	for _, selector := range r.sel.NameCandidates {
		sel, err := d.Find(selector)
		if err != nil {
			return nil, err
		}
		out = append(out, r.dropBoilerplate(texts(sel))...)
	}
	return out, nil
}

func (r *Reader) dropBoilerplate(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		lowered := strings.ToLower(v)
		skip := false
		for _, stop := range r.sel.NameStoplist {
			if lowered == strings.ToLower(strings.TrimSpace(stop)) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, v)
		}
	}
	return out
}

// EmailChain reads mailto anchors in the email blocks, then falls back to a
// scan of the page source.
func (r *Reader) EmailChain() Chain {
	return Chain{
		Field: FieldEmail,
		Strategies: []Strategy{
			{Name: "mailto", Fn: r.emailsFromBlocks},
			{Name: "source", Fn: emailsFromSource},
		},
	}
}

func (r *Reader) emailsFromBlocks(d *Document) ([]string, error) {
	blocks, err := d.Find(r.sel.EmailBlock)
	if err != nil {
		return nil, err
	}
	var out []string
	blocks.Find("a[href^='mailto:']").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if email, ok := profile.CleanEmail(href); ok {
			out = append(out, email)
		}
	})
	return out, nil
}

func emailsFromSource(d *Document) ([]string, error) {
	raw, err := d.Raw()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, re := range emailPatterns {
		for _, loc := range re.FindAllStringIndex(raw, -1) {
			if partOfLongerAddress(raw, loc[0]) {
				continue
			}
			if email, ok := profile.CleanEmail(raw[loc[0]:loc[1]]); ok && profile.StrictEmail(email) {
				out = append(out, email)
			}
		}
	}
	return out, nil
}

// partOfLongerAddress reports whether the match starting at start continues a
// token the pattern could not consume, as in the tail of "o'neil@host".
func partOfLongerAddress(raw string, start int) bool {
	if start == 0 {
		return false
	}
	before := raw[:start]
	for _, entity := range []string{"&#39;", "&#x27;", "&apos;"} {
		if strings.HasSuffix(before, entity) {
			return true
		}
	}
	switch raw[start-1] {
	case '\'', '!', '#', '$', '*', '^', '`', '{', '|', '}', '~':
		return true
	}
	return false
}

// PhoneChain reads tel: links and phone blocks.
func (r *Reader) PhoneChain() Chain {
	return Chain{
		Field:      FieldPhone,
		Strategies: []Strategy{{Name: "blocks", Fn: r.phonesFromBlocks}},
	}
}

func (r *Reader) phonesFromBlocks(d *Document) ([]string, error) {
	blocks, err := d.Find(r.sel.PhoneBlocks)
	if err != nil {
		return nil, err
	}
	var candidates []string
	blocks.Each(func(_ int, s *goquery.Selection) {
		if href, ok := s.Attr("href"); ok && strings.HasPrefix(strings.TrimSpace(href), "tel:") {
			candidates = append(candidates, strings.TrimPrefix(strings.TrimSpace(href), "tel:"))
		}
		if text := cleanText(s.Text()); text != "" {
			candidates = append(candidates, text)
		}
	})
	var out []string
	seen := make(map[string]struct{})
	for _, c := range candidates {
		for _, match := range phonePattern.FindAllString(c, -1) {
			phone := profile.CleanPhone(match)
			if _, ok := seen[phone]; ok || phone == "" {
				continue
			}
			seen[phone] = struct{}{}
			out = append(out, phone)
		}
	}
	return out, nil
}

// LinkedInChain scans the source for a profile URL, then the anchors.
func (r *Reader) LinkedInChain() Chain {
	return Chain{
		Field: FieldLinkedIn,
		Strategies: []Strategy{
			{Name: "source", Fn: func(d *Document) ([]string, error) {
				raw, err := d.Raw()
				if err != nil {
					return nil, err
				}
				var out []string
				for _, m := range linkedInPattern.FindAllString(raw, -1) {
					out = append(out, profile.TrimLink(m))
				}
				return out, nil
			}},
			{Name: "anchor", Fn: func(d *Document) ([]string, error) {
				anchors, err := d.Find(r.sel.LinkedInAnchor)
				if err != nil {
					return nil, err
				}
				var out []string
				anchors.Each(func(_ int, a *goquery.Selection) {
					if href, ok := a.Attr("href"); ok {
						if link := profile.TrimLink(href); link != "" {
							out = append(out, link)
						}
					}
				})
				return out, nil
			}},
		},
	}
}

// ClassYearChain tries the labelled value, the class-year container, a
// "Class of YYYY" phrase and finally the suffix of name.
func (r *Reader) ClassYearChain(name string) Chain {
	return Chain{
		Field: FieldClassYear,
		Strategies: []Strategy{
			{Name: "label", Fn: func(d *Document) ([]string, error) {
				values, err := labelValue(d, r.sel.ClassYearLabel, r.sel.LabeledValue)
				return normalizeYears(values), err
			}},
			{Name: "container", Fn: func(d *Document) ([]string, error) {
				sel, err := d.Find(r.sel.ClassYearContainer)
				if err != nil {
					return nil, err
				}
				return normalizeYears(texts(sel)), nil
			}},
			{Name: "phrase", Fn: func(d *Document) ([]string, error) {
				sel, err := d.Find(r.sel.ClassPhraseBlocks)
				if err != nil {
					return nil, err
				}
				var out []string
				for _, text := range texts(sel) {
					if m := classOfPattern.FindStringSubmatch(text); m != nil {
						out = append(out, m[1])
					}
				}
				return out, nil
			}},
			{Name: "name", Fn: func(*Document) ([]string, error) {
				if y := profile.YearFromName(name); y != "" {
					return []string{y}, nil
				}
				return nil, nil
			}},
		},
	}
}

func normalizeYears(values []string) []string {
	var out []string
	for _, v := range values {
		if y := profile.NormalizeYear(v); y != "" {
			out = append(out, y)
		}
	}
	return out
}

// WorkChain yields the first experience entries: title, then organization.
func (r *Reader) WorkChain() Chain {
	return Chain{
		Field: FieldWork,
		Strategies: []Strategy{{Name: "experience", Fn: func(d *Document) ([]string, error) {
			sel, err := d.Find(r.sel.ExperienceEntry)
			if err != nil {
				return nil, err
			}
			values := texts(sel)
			if len(values) > 2 {
				values = values[:2]
			}
			return values, nil
		}}},
	}
}

// IndustryChain only trusts the labelled value.
func (r *Reader) IndustryChain() Chain {
	return Chain{
		Field: FieldIndustry,
		Strategies: []Strategy{{Name: "label", Fn: func(d *Document) ([]string, error) {
			return labelValue(d, r.sel.IndustryLabel, r.sel.LabeledValue)
		}}},
	}
}

// LocationChain reads the labelled value, then the location container.
func (r *Reader) LocationChain() Chain {
	return Chain{
		Field: FieldLocation,
		Strategies: []Strategy{
			{Name: "label", Fn: func(d *Document) ([]string, error) {
				return labelValue(d, r.sel.LocationLabel, r.sel.LabeledValue)
			}},
			{Name: "container", Fn: func(d *Document) ([]string, error) {
				sel, err := d.Find(r.sel.LocationContainer)
				if err != nil {
					return nil, err
				}
				return texts(sel), nil
			}},
		},
	}
}
