package led

import (
	"image/color"
	"sync"
)

// FakeDevice records every write for test assertions.
type FakeDevice struct {
	mu sync.Mutex

	// Writes contains a copy of each buffer written.
	Writes [][]color.RGBA

	// WriteError, if set, will be returned by WriteColors.
	WriteError error
}

// NewFakeDevice creates an empty FakeDevice.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{}
}

// WriteColors records a copy of buf.
func (f *FakeDevice) WriteColors(buf []color.RGBA) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.WriteError != nil {
		return f.WriteError
	}
	f.Writes = append(f.Writes, append([]color.RGBA(nil), buf...))
	return nil
}

// Count returns the number of successful writes.
func (f *FakeDevice) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Writes)
}

// Last returns the most recent write, nil if none.
func (f *FakeDevice) Last() []color.RGBA {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Writes) == 0 {
		return nil
	}
	return f.Writes[len(f.Writes)-1]
}
