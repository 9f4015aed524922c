// Package browsertest provides an in-memory browser.Session that serves static
// HTML so crawl and extraction logic can be exercised without Chrome.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/directory-crawler/internal/browser"
)

const blankPage = "<html><head></head><body></body></html>"

// Session is a fake browser tab. Unknown URLs render as a blank page.
type Session struct {
	mu sync.Mutex

	pages     map[string]string
	next      map[string]string
	navErrors map[string]error
	current   string

	navigations []string
	snapshots   int
	closed      int

	// OnNavigate runs after each successful navigation, outside the lock.
	OnNavigate func(url string)
}

// New returns a Session serving pages keyed by URL.
func New(pages map[string]string) *Session {
	s := &Session{
		pages:     make(map[string]string, len(pages)),
		next:      make(map[string]string),
		navErrors: make(map[string]error),
	}
	for k, v := range pages {
		s.pages[k] = v
	}
	return s
}

// SetPage adds or replaces the document served at url.
func (s *Session) SetPage(url, html string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[url] = html
}

// SetNext makes a click on the next control from "from" land on "to".
func (s *Session) SetNext(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next[from] = to
}

// FailNavigation makes every navigation to url fail with err.
func (s *Session) FailNavigation(url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navErrors[url] = err
}

// Navigate implements browser.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err, ok := s.navErrors[url]; ok {
		s.mu.Unlock()
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	s.current = url
	s.navigations = append(s.navigations, url)
	hook := s.OnNavigate
	s.mu.Unlock()
	if hook != nil {
		hook(url)
	}
	return nil
}

// WaitFor implements browser.Session without sleeping: the selector either
// matches the static document or the wait times out immediately.
func (s *Session) WaitFor(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := s.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return browser.ErrTimeout
	}
	return nil
}

// Snapshot implements browser.Session.
func (s *Session) Snapshot(ctx context.Context) (browser.Page, error) {
	if err := ctx.Err(); err != nil {
		return browser.Page{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots++
	return browser.Page{URL: s.current, HTML: s.htmlLocked()}, nil
}

// Click follows the next-page mapping registered with SetNext.
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := s.document()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("click %s: %w", selector, browser.ErrNotFound)
	}
	s.mu.Lock()
	target, ok := s.next[s.current]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("click %s: %w", selector, browser.ErrNotFound)
	}
	return s.Navigate(ctx, target)
}

// Scroll implements browser.Session.
func (s *Session) Scroll(ctx context.Context, _ int, _ time.Duration) error {
	return ctx.Err()
}

// Close implements browser.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

// Navigations returns every URL navigated to, in order.
func (s *Session) Navigations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

// Snapshots reports how many DOM snapshots were taken.
func (s *Session) Snapshots() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots
}

// Current returns the URL the tab is showing.
func (s *Session) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) document() (*goquery.Document, error) {
	s.mu.Lock()
	html := s.htmlLocked()
	s.mu.Unlock()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse fake page: %w", err)
	}
	return doc, nil
}

func (s *Session) htmlLocked() string {
	if html, ok := s.pages[s.current]; ok {
		return html
	}
	return blankPage
}

var _ browser.Session = (*Session)(nil)
