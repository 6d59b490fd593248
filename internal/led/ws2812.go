//go:build tinygo && baremetal

package led

import (
	"image/color"
	"machine"
	"runtime/interrupt"

	"tinygo.org/x/drivers/ws2812"
)

// WS2812Device bit-bangs a strip from a GPIO pin. The protocol timing cannot
// tolerate interrupts, so every write runs with interrupts disabled and
// delays the SysTick handler for its duration.
type WS2812Device struct {
	dev ws2812.Device
}

// NewWS2812 configures pin as the strip data line.
func NewWS2812(pin machine.Pin) *WS2812Device {
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	return &WS2812Device{dev: ws2812.New(pin)}
}

// WriteColors writes buf inside a critical section.
func (d *WS2812Device) WriteColors(buf []color.RGBA) error {
	state := interrupt.Disable()
	err := d.dev.WriteColors(buf)
	interrupt.Restore(state)
	return err
}

// WriteColorsUnless writes buf inside a critical section unless busy reports
// true once interrupts are off. A trigger tick that fired between the
// caller's check and interrupt.Disable has set busy by then.
func (d *WS2812Device) WriteColorsUnless(buf []color.RGBA, busy func() bool) (bool, error) {
	state := interrupt.Disable()
	if busy() {
		interrupt.Restore(state)
		return false, nil
	}
	err := d.dev.WriteColors(buf)
	interrupt.Restore(state)
	return err == nil, err
}
