// Package browser wraps the single logged-in browser tab that drives a crawl.
// Everything above this package sees a document fetch & query capability and
// never touches chromedp directly.
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned when a readiness marker does not appear in time.
var ErrTimeout = errors.New("browser: wait timed out")

// ErrNotFound is returned when an element to act on is missing.
var ErrNotFound = errors.New("browser: element not found")

// Page is a snapshot of the rendered document in the current tab.
type Page struct {
	URL  string
	HTML string
}

// Session is one browser tab. Calls are made from a single goroutine.
type Session interface {
	// Navigate loads url in the tab and waits for the document to load.
	Navigate(ctx context.Context, url string) error
	// WaitFor blocks until selector matches or timeout passes (ErrTimeout).
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	// Snapshot returns the current location and outer HTML.
	Snapshot(ctx context.Context) (Page, error)
	// Click activates the first element matching selector.
	Click(ctx context.Context, selector string) error
	// Scroll scrolls to the bottom passes times, pausing between passes.
	Scroll(ctx context.Context, passes int, pause time.Duration) error
	Close() error
}
