// Package gpio provides the digital pins the range sensor is wired to.
// The real implementation uses the Linux GPIO character device; on
// microcontrollers it uses TinyGo's machine package.
// The fake implementation allows testing without hardware.
package gpio

// Input is a digital input line. No debouncing is performed.
type Input interface {
	// Read returns true while the line is high.
	Read() (bool, error)
}

// Output is a digital output line.
type Output interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error
}

// Default pin assignments (BCM numbering).
const (
	DefaultPinEcho    = 24
	DefaultPinTrigger = 23
)

// DefaultChip is the GPIO character device on a Raspberry Pi.
const DefaultChip = "gpiochip0"
