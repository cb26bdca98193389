// Package system provides clock implementations for time-window decisions.
package system

import "time"

// Clock reads the wall clock in the local zone, since fiscal years and
// concall cutoffs follow the operator's calendar.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current local time.
func (Clock) Now() time.Time {
	return time.Now()
}

// Fixed always reports the same instant.
type Fixed struct {
	At time.Time
}

// Now returns f.At.
func (f Fixed) Now() time.Time {
	return f.At
}
