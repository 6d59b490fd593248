//go:build tinygo && cortexm && baremetal

package main

import "machine"

// Wiring on an Arduino-form-factor board. Echo needs a level shifter on 3.3V
// parts: the ranger drives it at 5V.
const (
	pinTrigger = machine.D2
	pinEcho    = machine.D3
	pinStrip   = machine.D6
)
