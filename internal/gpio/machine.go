//go:build tinygo && baremetal

package gpio

import "machine"

// MachineInput reads a microcontroller pin configured as input.
type MachineInput machine.Pin

// NewMachineInput configures p as an input with pull-down.
func NewMachineInput(p machine.Pin) MachineInput {
	p.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return MachineInput(p)
}

// Read never fails on a microcontroller.
func (i MachineInput) Read() (bool, error) {
	return machine.Pin(i).Get(), nil
}

// MachineOutput drives a microcontroller pin configured as output.
type MachineOutput machine.Pin

// NewMachineOutput configures p as an output driven low.
func NewMachineOutput(p machine.Pin) MachineOutput {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return MachineOutput(p)
}

// Set never fails on a microcontroller.
func (o MachineOutput) Set(high bool) error {
	machine.Pin(o).Set(high)
	return nil
}
