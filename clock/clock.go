// Package clock abstracts wall-clock time so timeout, backoff, and
// token-expiry logic can be tested deterministically (spec.md §6 names the
// clock as an external collaborator: monotonic for timeouts/backoff,
// wall-clock for timestamps and token expiry).
package clock

import "time"

// Clock provides the current time and a sleep/timer primitive.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real is a Clock backed by the standard library.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// After returns time.After(d).
func (Real) After(d time.Duration) <-chan time.Time { return time.After(d) }

// NewReal constructs the real-time Clock.
func NewReal() Clock { return Real{} }
