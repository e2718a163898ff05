// Package system provides the wall clock used to stamp runs.
package system

import "time"

// Clock implements crawler.Clock. Timestamps are UTC with millisecond
// precision, which is what run summaries carry.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to milliseconds.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
