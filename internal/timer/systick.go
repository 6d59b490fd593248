//go:build tinygo && cortexm

package timer

import (
	"device/arm"
	"machine"
	"time"
)

// SysTick programs the Cortex-M system timer. The interrupt handler itself
// is exported by the firmware's main package as SysTick_Handler. The zero
// value is stopped; the first SetPeriod starts it.
type SysTick struct {
	period time.Duration
	err    error
}

// SetPeriod reloads the system timer. Safe to call from the SysTick handler.
// A period the 24-bit reload register cannot hold is recorded in Err and the
// previous period stays in effect.
func (s *SysTick) SetPeriod(d time.Duration) {
	if d <= 0 || d == s.period {
		return
	}
	cycles := uint64(machine.CPUFrequency()) * uint64(d) / uint64(time.Second)
	if err := arm.SetupSystemTimer(uint32(cycles)); err != nil {
		s.err = err
		return
	}
	s.period = d
}

// Period returns the current period.
func (s *SysTick) Period() time.Duration {
	return s.period
}

// Err returns the last reload failure, if any.
func (s *SysTick) Err() error {
	return s.err
}
