//go:build !linux && !tinygo

package gpio

import "errors"

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// Open returns an error on non-Linux platforms.
func Open(chipName string, pinEcho, pinTrigger int) (*RealPins, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Echo returns an input that always fails.
func (p *RealPins) Echo() Input { return unsupported{} }

// Trigger returns an output that always fails.
func (p *RealPins) Trigger() Output { return unsupported{} }

// Close is not implemented on non-Linux platforms.
func (p *RealPins) Close() error {
	return nil
}

type unsupported struct{}

func (unsupported) Read() (bool, error) { return false, errors.New("gpio: not supported") }
func (unsupported) Set(bool) error      { return errors.New("gpio: not supported") }
