// Package sensor runs the echo state machine against real pins. Tick is the
// timer interrupt handler: it performs one state transition, never blocks and
// never logs. Where ticks are delivered by the Go runtime instead of a
// hardware timer, Advance replays the ticks that elapsed between deliveries.
package sensor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sweeney/parking-sensor/internal/gpio"
	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/sample"
)

// Timer is the periodic tick source driving Tick.
type Timer interface {
	SetPeriod(d time.Duration)
}

// Counters are running totals kept by the tick handler.
type Counters struct {
	Cycles      uint32 // measurements published, including timeouts
	Timeouts    uint32
	ReadErrors  uint32
	WriteErrors uint32
}

// Sensor binds a Machine to its pins, timer and sample cell.
type Sensor struct {
	machine *logic.Machine
	echo    gpio.Input
	trigger gpio.Output
	timer   Timer
	cell    *sample.Cell

	triggerHigh bool

	// period is the timer period in effect. last and budget track elapsed
	// time for Advance.
	period time.Duration
	last   time.Time
	budget time.Duration

	state       atomic.Uint32
	cycles      atomic.Uint32
	timeouts    atomic.Uint32
	readErrors  atomic.Uint32
	writeErrors atomic.Uint32
}

// New creates a Sensor and programs the timer to the idle cadence.
func New(cfg logic.MachineConfig, echo gpio.Input, trigger gpio.Output, timer Timer, cell *sample.Cell) *Sensor {
	s := &Sensor{
		machine: logic.NewMachine(cfg),
		echo:    echo,
		trigger: trigger,
		timer:   timer,
		cell:    cell,
		period:  cfg.IdlePeriod,
	}
	timer.SetPeriod(cfg.IdlePeriod)
	return s
}

// Tick advances the measurement by one timer tick.
func (s *Sensor) Tick() {
	s.step(s.readEcho())
}

// Advance steps the machine once for every period that elapsed since the
// previous call, reading the echo line once. Time left over after a period
// change is discarded, so the idle wait never counts toward an echo. The
// first call performs a single tick.
func (s *Sensor) Advance(t time.Time) {
	if s.last.IsZero() {
		s.last = t
		s.Tick()
		return
	}
	if !t.After(s.last) {
		// A tick from before the last reload.
		return
	}
	s.budget += t.Sub(s.last)
	s.last = t
	if s.period <= 0 || s.budget < s.period {
		return
	}

	echo := s.readEcho()
	for s.budget >= s.period {
		s.budget -= s.period
		if s.step(echo) {
			s.budget = 0
		}
	}
}

func (s *Sensor) readEcho() bool {
	echo, err := s.echo.Read()
	if err != nil {
		// A dead echo line reads low and ends in the timeout path.
		s.readErrors.Add(1)
		return false
	}
	return echo
}

// step applies one machine transition and reports whether the timer was
// reprogrammed.
func (s *Sensor) step(echo bool) bool {
	a := s.machine.Step(echo)

	if a.Trigger != s.triggerHigh {
		if err := s.trigger.Set(a.Trigger); err != nil {
			s.writeErrors.Add(1)
		} else {
			s.triggerHigh = a.Trigger
		}
	}
	if a.Period != 0 {
		s.timer.SetPeriod(a.Period)
		s.period = a.Period
	}
	if a.Publish {
		s.cell.Publish(a.Distance)
		s.cycles.Add(1)
		if a.Distance == logic.NoEcho {
			s.timeouts.Add(1)
		}
	}
	s.cell.SetMeasuring(a.Measuring)
	s.state.Store(uint32(s.machine.State()))
	return a.Period != 0
}

// Run calls Advance for every time received on tick until ctx is done.
func (s *Sensor) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			s.release()
			return nil
		case t := <-tick:
			s.Advance(t)
		}
	}
}

// release leaves the trigger line low on shutdown.
func (s *Sensor) release() {
	if s.triggerHigh {
		if err := s.trigger.Set(false); err == nil {
			s.triggerHigh = false
		}
	}
}

// State returns the machine phase after the last Tick. Safe from any goroutine.
func (s *Sensor) State() logic.EchoState {
	return logic.EchoState(s.state.Load())
}

// Counters returns a snapshot of the running totals. Safe from any goroutine.
func (s *Sensor) Counters() Counters {
	return Counters{
		Cycles:      s.cycles.Load(),
		Timeouts:    s.timeouts.Load(),
		ReadErrors:  s.readErrors.Load(),
		WriteErrors: s.writeErrors.Load(),
	}
}
