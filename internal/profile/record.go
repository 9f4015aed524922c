// Package profile defines the directory entry extracted from a member profile
// page and the pure normalization rules applied to it.
package profile

import (
	"strings"
	"time"
)

// UnknownName is recorded when no name strategy produced a candidate.
const UnknownName = "(unknown)"

// Record is one directory entry. URL is the identity key and never changes once
// the record is built; every other field is best-effort.
type Record struct {
	URL       string    `json:"profile_url"`
	Name      string    `json:"name"`
	Emails    []string  `json:"emails"`
	Phones    []string  `json:"phones,omitempty"`
	LinkedIn  string    `json:"linkedin,omitempty"`
	City      string    `json:"city,omitempty"`
	Region    string    `json:"region,omitempty"`
	Industry  string    `json:"industry,omitempty"`
	Title     string    `json:"job_title,omitempty"`
	Company   string    `json:"company,omitempty"`
	ClassYear string    `json:"class_year,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// PrimaryEmail returns the first email or an empty string.
func (r Record) PrimaryEmail() string {
	if len(r.Emails) == 0 {
		return ""
	}
	return r.Emails[0]
}

// Usable reports whether the record carries the minimum data worth storing.
func (r Record) Usable() bool {
	return r.URL != "" && r.PrimaryEmail() != ""
}

// ListSeparator joins multi-valued fields in flat storage layouts.
const ListSeparator = ", "

// JoinList flattens a multi-valued field.
func JoinList(values []string) string {
	return strings.Join(values, ListSeparator)
}

// SplitList reverses JoinList, dropping empty entries.
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
