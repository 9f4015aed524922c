package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var errNoDocument = errors.New("document not loaded")

// Document is one parsed snapshot of a rendered page. The raw source is kept
// alongside the DOM so regex strategies reuse it instead of fetching again.
type Document struct {
	URL string
	raw string
	dom *goquery.Document
}

// NewDocument parses html fetched from url.
func NewDocument(url, html string) (*Document, error) {
	dom, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document %s: %w", url, err)
	}
	return &Document{URL: url, raw: html, dom: dom}, nil
}

// Find runs a CSS query against the DOM.
func (d *Document) Find(selector string) (*goquery.Selection, error) {
	if d == nil || d.dom == nil {
		return nil, errNoDocument
	}
	if strings.TrimSpace(selector) == "" {
		return nil, fmt.Errorf("empty selector")
	}
	return d.dom.Find(selector), nil
}

// Raw returns the page source captured with the snapshot.
func (d *Document) Raw() (string, error) {
	if d == nil || d.dom == nil {
		return "", errNoDocument
	}
	return d.raw, nil
}

// texts returns the trimmed, non-empty text of every match.
func texts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := cleanText(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

// ownText is the text of s excluding its descendants.
func ownText(s *goquery.Selection) string {
	return s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text"
	}).Text()
}

// labelValue finds the first element whose own text contains label and
// returns the text of the first element after it (in document order, outside
// the label's subtree) matching valueSelector.
func labelValue(d *Document, label, valueSelector string) ([]string, error) {
	all, err := d.Find("body *")
	if err != nil {
		return nil, err
	}
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return nil, fmt.Errorf("empty label")
	}
	var (
		anchor *goquery.Selection
		value  string
	)
	all.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if anchor == nil {
			if strings.Contains(strings.ToLower(ownText(s)), label) {
				anchor = s
			}
			return true
		}
		if anchor.Contains(s.Get(0)) || !s.Is(valueSelector) {
			return true
		}
		value = cleanText(s.Text())
		return value == ""
	})
	if value == "" {
		return nil, nil
	}
	return []string{value}, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
