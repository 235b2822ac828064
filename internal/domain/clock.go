package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests and the fixture generator
// can freeze time via SetClock. Production code uses the real clock.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source. Pass nil to reset to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current time from the injected clock in milliseconds
// since the epoch. Submission timestamps (capturedAt) are taken from here
// exactly once per report.
func Now() int64 {
	return clock.Now().UnixMilli()
}
