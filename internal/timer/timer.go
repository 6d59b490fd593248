// Package timer provides the periodic tick source that drives the echo state
// machine. Its period can be reprogrammed at runtime and takes effect from
// the next tick boundary.
package timer

import "time"

// Ticker is a reprogrammable tick source backed by time.Ticker.
type Ticker struct {
	t      *time.Ticker
	period time.Duration
}

// NewTicker starts a ticker firing every period.
func NewTicker(period time.Duration) *Ticker {
	return &Ticker{
		t:      time.NewTicker(period),
		period: period,
	}
}

// C returns the tick channel.
func (t *Ticker) C() <-chan time.Time {
	return t.t.C
}

// SetPeriod reprograms the ticker. It is called from the goroutine that
// receives from C, so no locking is needed.
func (t *Ticker) SetPeriod(d time.Duration) {
	if d <= 0 || d == t.period {
		return
	}
	t.period = d
	t.t.Reset(d)
}

// Period returns the current period.
func (t *Ticker) Period() time.Duration {
	return t.period
}

// Stop turns off the ticker.
func (t *Ticker) Stop() {
	t.t.Stop()
}
