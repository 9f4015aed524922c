package profile

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var (
	atToken     = regexp.MustCompile(`(?i)\s*(?:\[at\]|\(at\)|&#0*64;|&commat;)\s*|\s+at\s+`)
	dotToken    = regexp.MustCompile(`(?i)\s*(?:\[dot\]|\(dot\))\s*|\s+dot\s+`)
	strictEmail = regexp.MustCompile(`^[a-z0-9._%+\-]+@[a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.[a-z]{2,}$`)
	emailDomain = regexp.MustCompile(`^[a-z0-9\-]+(?:\.[a-z0-9\-]+)*\.[a-z]{2,}$`)
	localReject = regexp.MustCompile(`[\s<>()\[\],;:\\"@]`)
	fourDigit   = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	shortYear   = regexp.MustCompile(`^['’‘]?(\d{2})$`)
	nameSuffix  = regexp.MustCompile(`['’‘](\d{2})\b`)
)

// Fields are the raw values recovered from one profile document before
// normalization.
type Fields struct {
	Name      string
	Emails    []string
	Phones    []string
	LinkedIn  string
	Location  string
	Industry  string
	Title     string
	Company   string
	ClassYear string
}

// Options control which values survive normalization.
type Options struct {
	// AllEmails keeps every address instead of only the primary one.
	AllEmails bool
}

// Build normalizes raw fields into a Record keyed by key. It has no side
// effects and does not depend on how the fields were fetched.
func Build(key string, f Fields, opts Options) Record {
	rec := Record{
		URL:       key,
		Name:      collapseSpace(f.Name),
		Emails:    CleanEmails(f.Emails),
		Phones:    CleanPhones(f.Phones),
		LinkedIn:  TrimLink(f.LinkedIn),
		Industry:  collapseSpace(f.Industry),
		Title:     collapseSpace(f.Title),
		Company:   collapseSpace(f.Company),
		ClassYear: NormalizeYear(f.ClassYear),
	}
	if rec.Name == "" {
		rec.Name = UnknownName
	}
	rec.City, rec.Region = SplitLocation(f.Location)
	if !opts.AllEmails && len(rec.Emails) > 1 {
		rec.Emails = rec.Emails[:1]
	}
	return rec
}

// CleanEmail turns a raw, obfuscated or mailto address into canonical form.
// The second return value is false when the result is not a single address
// with a dotted domain. The local part may hold any character a mail link
// can carry, apostrophes included.
func CleanEmail(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if rest, ok := strings.CutPrefix(s, "mailto:"); ok {
		s = rest
		if i := strings.IndexByte(s, '?'); i >= 0 {
			s = s[:i]
		}
		if unescaped, err := url.PathUnescape(s); err == nil {
			s = unescaped
		}
	}
	s = atToken.ReplaceAllString(s, "@")
	s = dotToken.ReplaceAllString(s, ".")
	s = strings.Join(strings.Fields(s), "")
	local, domain, ok := strings.Cut(s, "@")
	if !ok || local == "" || localReject.MatchString(local) || !emailDomain.MatchString(domain) {
		return "", false
	}
	return s, true
}

// StrictEmail reports whether email uses only the common address alphabet.
// Free-text scans use it; a match cut out of a longer token would otherwise
// pass as a whole address.
func StrictEmail(email string) bool {
	return strictEmail.MatchString(email)
}

// CleanEmails cleans every candidate, dropping rejects and repeats while
// keeping first-seen order.
func CleanEmails(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, candidate := range raw {
		if email, ok := CleanEmail(candidate); ok {
			out = appendUnique(out, email)
		}
	}
	return out
}

// CleanPhone keeps only digits and '+'.
func CleanPhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r == '+' || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CleanPhones cleans and de-duplicates by cleaned value.
func CleanPhones(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, candidate := range raw {
		if phone := CleanPhone(candidate); phone != "" {
			out = appendUnique(out, phone)
		}
	}
	return out
}

// SplitLocation maps "City, Region, ..." to its first two segments.
func SplitLocation(raw string) (city, region string) {
	parts := strings.Split(raw, ",")
	if len(parts) > 0 {
		city = collapseSpace(parts[0])
	}
	if len(parts) > 1 {
		region = collapseSpace(parts[1])
	}
	return city, region
}

// TrimLink strips surrounding whitespace and trailing slashes.
func TrimLink(raw string) string {
	return strings.TrimRight(strings.TrimSpace(raw), "/")
}

// ExpandYear turns a two-digit year into four digits, pivoting at 50.
func ExpandYear(two string) string {
	n, err := strconv.Atoi(two)
	if err != nil || n < 0 || n > 99 {
		return ""
	}
	if n >= 50 {
		return strconv.Itoa(1900 + n)
	}
	return strconv.Itoa(2000 + n)
}

// NormalizeYear accepts "1997", "Class of 1997", "'97" or "97".
func NormalizeYear(raw string) string {
	raw = strings.TrimSpace(raw)
	if y := fourDigit.FindString(raw); y != "" {
		return y
	}
	if m := shortYear.FindStringSubmatch(raw); m != nil {
		return ExpandYear(m[1])
	}
	return ""
}

// YearFromName reads a class suffix such as "Jane Doe '97" out of a name.
func YearFromName(name string) string {
	m := nameSuffix.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return ExpandYear(m[1])
}

// CanonicalKey resolves href against base and drops the query and fragment so
// the same profile always maps to one identity key.
func CanonicalKey(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), true
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
