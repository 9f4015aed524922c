package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

const (
	defaultListingTimeout = 45 * time.Second
	defaultScrollPasses   = 3
	defaultScrollPause    = 600 * time.Millisecond
	defaultMaxStuckPages  = 3
)

// Config holds the settings for a crawl session. It is decoupled from Viper
// so the controller can be tested on its own.
type Config struct {
	// BaseURL is the first listing page; later pages add ?page=N.
	BaseURL   string
	StartPage int
	// EndPage stops the crawl after this page; zero means unbounded.
	EndPage int
	// Target is the number of new records to store before stopping.
	Target     int
	Pagination Pagination

	ListingTimeout time.Duration
	ScrollPasses   int
	ScrollPause    time.Duration
	MaxStuckPages  int

	LinkSelector string
	LinkText     string
	NextSelector string
}

func (c Config) withDefaults() Config {
	if c.StartPage <= 0 {
		c.StartPage = 1
	}
	if c.Pagination == "" {
		c.Pagination = PaginationQuery
	}
	if c.ListingTimeout <= 0 {
		c.ListingTimeout = defaultListingTimeout
	}
	if c.ScrollPasses < 0 {
		c.ScrollPasses = 0
	} else if c.ScrollPasses == 0 {
		c.ScrollPasses = defaultScrollPasses
	}
	if c.ScrollPause <= 0 {
		c.ScrollPause = defaultScrollPause
	}
	if c.MaxStuckPages <= 0 {
		c.MaxStuckPages = defaultMaxStuckPages
	}
	return c
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base url %q must be absolute", c.BaseURL)
	}
	if c.Target <= 0 {
		return errors.New("target must be positive")
	}
	if c.EndPage > 0 && c.EndPage < c.StartPage {
		return fmt.Errorf("end page %d is before start page %d", c.EndPage, c.StartPage)
	}
	switch c.Pagination {
	case "", PaginationQuery, PaginationNext, PaginationAuto:
	default:
		return fmt.Errorf("unknown pagination %q", c.Pagination)
	}
	if c.LinkSelector == "" {
		return errors.New("link selector is required")
	}
	if c.Pagination != PaginationQuery && c.Pagination != "" && c.NextSelector == "" {
		return errors.New("next selector is required for next-control pagination")
	}
	return nil
}

// PageURL returns the listing URL for page n. Page 1 is the bare base URL.
func PageURL(base string, n int) string {
	if n <= 1 {
		return base
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(n))
	u.RawQuery = q.Encode()
	return u.String()
}
