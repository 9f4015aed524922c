// Package system provides a real clock implementation.
package system

import "time"

// Clock implements crawler.Clock and store.Clock using time.Now. Readings are
// UTC and truncated to microseconds so a timestamp survives a round trip
// through either store unchanged.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
