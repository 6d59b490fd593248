package logic

import (
	"errors"
	"time"
)

// EchoState is the phase of a measurement cycle.
type EchoState uint8

const (
	StateTrigger EchoState = iota
	StateWaitingForEcho
	StateEchoReceived
	StateTimedOut
)

func (s EchoState) String() string {
	switch s {
	case StateTrigger:
		return "TRIGGER"
	case StateWaitingForEcho:
		return "WAITING_FOR_ECHO"
	case StateEchoReceived:
		return "ECHO_RECEIVED"
	case StateTimedOut:
		return "TIMED_OUT"
	}
	return "UNKNOWN"
}

// MachineConfig holds the timer cadences and tick budgets of a measurement
// cycle. The single hardware timer runs at IdlePeriod between cycles and at
// EchoPeriod while a cycle is in flight.
type MachineConfig struct {
	// IdlePeriod is the tick period between measurement cycles.
	IdlePeriod time.Duration
	// EchoPeriod is the tick period while timing the echo. One tick of 58µs
	// is exactly one centimeter.
	EchoPeriod time.Duration
	// TriggerEvery is the number of idle ticks between cycles.
	TriggerEvery int
	// EchoTimeout bounds both the wait for the echo to rise and the echo
	// width, in echo ticks.
	EchoTimeout int
}

// DefaultMachineConfig measures every 100ms with 1cm resolution and a 30ms
// echo timeout.
func DefaultMachineConfig() MachineConfig {
	return MachineConfig{
		IdlePeriod:   10 * time.Millisecond,
		EchoPeriod:   58 * time.Microsecond,
		TriggerEvery: 10,
		EchoTimeout:  517,
	}
}

// Validate rejects configurations that could never complete a cycle.
func (c MachineConfig) Validate() error {
	var errs []error
	if c.IdlePeriod <= 0 {
		errs = append(errs, errors.New("idle period must be positive"))
	}
	if c.EchoPeriod <= 0 {
		errs = append(errs, errors.New("echo period must be positive"))
	}
	if c.TriggerEvery < 0 {
		errs = append(errs, errors.New("trigger interval must not be negative"))
	}
	if c.EchoTimeout <= 0 {
		errs = append(errs, errors.New("echo timeout must be positive"))
	}
	return errors.Join(errs...)
}

// Action is what the tick handler must apply after one Step.
type Action struct {
	// Trigger is the level the trigger line must be driven to.
	Trigger bool
	// Period, when non-zero, is the new timer period.
	Period time.Duration
	// Publish is set when Distance completes a cycle.
	Publish  bool
	Distance Distance
	// Measuring is set while a cycle is in flight.
	Measuring bool
}

// Machine is the echo timing state machine. It advances exactly one
// transition per timer tick and is not safe for concurrent use: it belongs to
// the tick handler.
type Machine struct {
	cfg   MachineConfig
	state EchoState

	idleTicks  int
	waitTicks  int
	widthTicks int
	measuring  bool
}

// NewMachine creates a machine in StateTrigger. The caller starts the timer
// at cfg.IdlePeriod.
func NewMachine(cfg MachineConfig) *Machine {
	return &Machine{cfg: cfg}
}

// Step advances the machine by one tick given the current echo level.
func (m *Machine) Step(echo bool) Action {
	var a Action

	switch m.state {
	case StateTrigger:
		if m.idleTicks >= m.cfg.TriggerEvery {
			m.measuring = true
			a.Trigger = true
			a.Period = m.cfg.EchoPeriod
			m.state = StateWaitingForEcho
		} else {
			m.measuring = false
			m.idleTicks++
		}

	case StateWaitingForEcho:
		// Trigger stays low from here on: the pulse is one tick wide.
		if !echo {
			if m.waitTicks >= m.cfg.EchoTimeout {
				m.state = StateTimedOut
			} else {
				m.waitTicks++
			}
		} else {
			m.state = StateEchoReceived
		}

	case StateEchoReceived:
		m.widthTicks++
		if m.widthTicks < m.cfg.EchoTimeout {
			if !echo {
				a.Publish = true
				a.Distance = TicksToCentimeters(m.widthTicks, m.cfg.EchoPeriod)
				a.Period = m.cfg.IdlePeriod
				m.reset()
			}
		} else {
			m.state = StateTimedOut
		}

	case StateTimedOut:
		a.Publish = true
		a.Distance = NoEcho
		a.Period = m.cfg.IdlePeriod
		m.reset()
	}

	a.Measuring = m.measuring
	return a
}

func (m *Machine) reset() {
	m.idleTicks = 0
	m.waitTicks = 0
	m.widthTicks = 0
	m.state = StateTrigger
}

// State returns the current phase.
func (m *Machine) State() EchoState {
	return m.state
}

// Config returns the configuration the machine was built with.
func (m *Machine) Config() MachineConfig {
	return m.cfg
}
