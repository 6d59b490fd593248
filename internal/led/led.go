// Package led draws frames on an addressable LED strip.
//
// Strip is the single render entry point. It owns the frame buffer and hands
// it to a Device, which does the bit-level work. Some devices stall the
// echo tick source while writing, so Strip never writes while a measurement
// is in flight.
package led

import (
	"fmt"
	"image/color"

	"github.com/sweeney/parking-sensor/internal/logic"
)

// DefaultLength is the strip fitted to the reference board.
const DefaultLength = 5

// Device writes a full strip of colors.
type Device interface {
	WriteColors(buf []color.RGBA) error
}

// GatedDevice is a Device whose writes hold off the tick source. It checks
// busy once the tick source is held off and skips the write if a
// measurement started in the meantime.
type GatedDevice interface {
	Device
	WriteColorsUnless(buf []color.RGBA, busy func() bool) (bool, error)
}

// Buffer is one color per LED.
type Buffer []color.RGBA

// Fill sets the first f.Active cells to f.Color scaled by brightness (a
// percentage; 0 or anything above 100 means full) and the rest off. Cells
// beyond the buffer are ignored.
func (b Buffer) Fill(f logic.Frame, brightness uint8) {
	c := scale(f.Color, brightness)
	for i := range b {
		if i < f.Active {
			b[i] = c
		} else {
			b[i] = color.RGBA{}
		}
	}
}

func scale(c color.RGBA, pct uint8) color.RGBA {
	if pct == 0 || pct >= 100 {
		return c
	}
	return color.RGBA{
		R: uint8(uint16(c.R) * uint16(pct) / 100),
		G: uint8(uint16(c.G) * uint16(pct) / 100),
		B: uint8(uint16(c.B) * uint16(pct) / 100),
		A: c.A,
	}
}

// Strip renders frames onto a Device.
type Strip struct {
	dev        Device
	buf        Buffer
	brightness uint8
}

// NewStrip creates a strip of length LEDs.
func NewStrip(dev Device, length int, brightness uint8) *Strip {
	if length < 0 {
		length = 0
	}
	return &Strip{
		dev:        dev,
		buf:        make(Buffer, length),
		brightness: brightness,
	}
}

// Len returns the number of LEDs.
func (s *Strip) Len() int {
	return len(s.buf)
}

// Render writes f to the strip. While measuring reports true the write is
// skipped, the LEDs keep their previous colors and Render returns false; the
// caller renders again on its next iteration. A nil measuring never skips.
func (s *Strip) Render(f logic.Frame, measuring func() bool) (bool, error) {
	if measuring == nil {
		measuring = idle
	}
	if measuring() {
		return false, nil
	}
	s.buf.Fill(f, s.brightness)

	if g, ok := s.dev.(GatedDevice); ok {
		wrote, err := g.WriteColorsUnless(s.buf, measuring)
		if err != nil {
			return false, fmt.Errorf("write strip: %w", err)
		}
		return wrote, nil
	}
	if err := s.dev.WriteColors(s.buf); err != nil {
		return false, fmt.Errorf("write strip: %w", err)
	}
	return true, nil
}

func idle() bool { return false }

// Clear turns every LED off regardless of measurement state.
func (s *Strip) Clear() error {
	s.buf.Fill(logic.Frame{}, s.brightness)
	if err := s.dev.WriteColors(s.buf); err != nil {
		return fmt.Errorf("clear strip: %w", err)
	}
	return nil
}
