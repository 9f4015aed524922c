package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/directory-crawler/internal/profile"
)

// ListingLinks returns the canonical profile keys linked from a listing page,
// in discovery order. Anchors must match selector and, when text is set,
// contain it in their visible text.
func ListingLinks(doc *Document, selector, text string) ([]string, error) {
	anchors, err := doc.Find(selector)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(doc.URL)
	if err != nil {
		base = nil
	}
	var keys []string
	anchors.Each(func(_ int, a *goquery.Selection) {
		if text != "" && !strings.Contains(a.Text(), text) {
			return
		}
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		if key, ok := profile.CanonicalKey(base, href); ok {
			keys = append(keys, key)
		}
	})
	return dedupe(keys), nil
}
