//go:build !tinygo

package led

import (
	"errors"
	"fmt"
	"image/color"

	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"
)

// SPIDevice drives a ws2812 strip from an SPI MOSI line. The kernel SPI
// driver does the timing, so writes do not stall the tick goroutine.
type SPIDevice struct {
	port spi.PortCloser
	dev  *nrzled.Dev
	raw  []byte
}

// OpenSPI opens the SPI port by name ("" for the first one) for a strip of
// length LEDs.
func OpenSPI(name string, length int) (*SPIDevice, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", name, err)
	}

	opts := nrzled.DefaultOpts
	opts.NumPixels = length
	opts.Channels = 3
	dev, err := nrzled.NewSPI(port, &opts)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("init strip: %w", err)
	}

	return &SPIDevice{
		port: port,
		dev:  dev,
		raw:  make([]byte, 3*length),
	}, nil
}

// WriteColors sends buf as packed RGB.
func (d *SPIDevice) WriteColors(buf []color.RGBA) error {
	if len(buf)*3 != len(d.raw) {
		return fmt.Errorf("strip has %d LEDs, got %d colors", len(d.raw)/3, len(buf))
	}
	for i, c := range buf {
		d.raw[3*i] = c.R
		d.raw[3*i+1] = c.G
		d.raw[3*i+2] = c.B
	}
	_, err := d.dev.Write(d.raw)
	return err
}

// Close turns the strip off and releases the port.
func (d *SPIDevice) Close() error {
	var errs []error
	if err := d.dev.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt strip: %w", err))
	}
	if err := d.port.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close spi port: %w", err))
	}
	return errors.Join(errs...)
}
