//go:build linux && !tinygo

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealPins holds the echo and trigger lines of an HC-SR04 style sensor
// attached to a Linux GPIO character device.
type RealPins struct {
	chip    *gpiocdev.Chip
	echo    *gpiocdev.Line
	trigger *gpiocdev.Line
}

// Open requests the echo line as an input and the trigger line as an
// output driven low.
func Open(chipName string, pinEcho, pinTrigger int) (*RealPins, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	// Pull-down keeps the echo line low while the sensor is unplugged, which
	// resolves to a timeout rather than a stuck-high echo.
	echo, err := chip.RequestLine(pinEcho, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request echo pin %d: %w", pinEcho, err)
	}

	trigger, err := chip.RequestLine(pinTrigger, gpiocdev.AsOutput(0))
	if err != nil {
		echo.Close()
		chip.Close()
		return nil, fmt.Errorf("request trigger pin %d: %w", pinTrigger, err)
	}

	return &RealPins{
		chip:    chip,
		echo:    echo,
		trigger: trigger,
	}, nil
}

// Echo returns the echo input line.
func (p *RealPins) Echo() Input { return lineInput{p.echo} }

// Trigger returns the trigger output line.
func (p *RealPins) Trigger() Output { return lineOutput{p.trigger} }

// Close releases GPIO resources.
// The trigger line is reconfigured as input with pull-down (matching Pi boot
// defaults) before closing so the sensor is not left triggered.
func (p *RealPins) Close() error {
	var errs []error

	if p.trigger != nil {
		if err := p.trigger.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure trigger pin: %w", err))
		}
		if err := p.trigger.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close trigger pin: %w", err))
		}
	}
	if p.echo != nil {
		if err := p.echo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close echo pin: %w", err))
		}
	}
	if p.chip != nil {
		if err := p.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	return errors.Join(errs...)
}

type lineInput struct{ l *gpiocdev.Line }

func (i lineInput) Read() (bool, error) {
	v, err := i.l.Value()
	if err != nil {
		return false, fmt.Errorf("read echo pin: %w", err)
	}
	return v != 0, nil
}

type lineOutput struct{ l *gpiocdev.Line }

func (o lineOutput) Set(high bool) error {
	v := 0
	if high {
		v = 1
	}
	if err := o.l.SetValue(v); err != nil {
		return fmt.Errorf("set trigger pin: %w", err)
	}
	return nil
}
