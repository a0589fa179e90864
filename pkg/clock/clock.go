// Package clock abstracts wall-clock and monotonic time so components can
// be tested deterministically without sleeping real time.
package clock

import "time"

// Clock provides the current wall-clock time and a monotonic reading
// suitable for measuring elapsed durations.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time

	// Since returns the duration elapsed since t, using a monotonic clock
	// reading when available.
	Since(t time.Time) time.Duration
}

// realClock delegates to the standard library's time package.
type realClock struct{}

// New returns a Clock backed by the system clock.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Since(t time.Time) time.Duration { return time.Since(t) }
