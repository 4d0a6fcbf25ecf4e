package domain

import "github.com/jonboulle/clockwork"

// clock stamps analyses and fills in absent upstream timestamps. Tests freeze
// it with SetClock so reports render byte-identical across runs.
var clock = clockwork.NewRealClock()

// SetClock swaps the package time source. Pass nil to restore the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
