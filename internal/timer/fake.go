package timer

import "time"

// FakeTimer records every period it is programmed with.
type FakeTimer struct {
	// Periods contains each value passed to SetPeriod, in order.
	Periods []time.Duration
}

// NewFakeTimer creates an empty FakeTimer.
func NewFakeTimer() *FakeTimer {
	return &FakeTimer{}
}

// SetPeriod records d.
func (f *FakeTimer) SetPeriod(d time.Duration) {
	f.Periods = append(f.Periods, d)
}

// Period returns the last programmed period, zero if none.
func (f *FakeTimer) Period() time.Duration {
	if len(f.Periods) == 0 {
		return 0
	}
	return f.Periods[len(f.Periods)-1]
}
