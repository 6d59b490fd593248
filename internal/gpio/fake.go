package gpio

import "sync"

// FakeInput is a test double that returns scripted levels.
type FakeInput struct {
	mu sync.Mutex

	// Levels contains the scripted values to return.
	// Each call to Read() consumes the next level.
	Levels []bool

	index int

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeInput creates a FakeInput with the given levels.
func NewFakeInput(levels ...bool) *FakeInput {
	return &FakeInput{Levels: levels}
}

// Read returns the next scripted level.
// If levels are exhausted, returns the last level repeatedly; with no
// levels configured the line reads low.
func (f *FakeInput) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Levels) == 0 {
		return false, nil
	}

	level := f.Levels[f.index]
	if f.index < len(f.Levels)-1 {
		f.index++
	}
	return level, nil
}

// Reads returns how many levels have been consumed.
func (f *FakeInput) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.index
}

// Reset rewinds to the first level.
func (f *FakeInput) Reset() {
	f.mu.Lock()
	f.index = 0
	f.mu.Unlock()
}

// FakeOutput records every level written to it.
type FakeOutput struct {
	mu sync.Mutex

	// History contains each level passed to Set, in order.
	History []bool

	// SetError, if set, will be returned by Set()
	SetError error
}

// NewFakeOutput creates an empty FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Set records the level.
func (f *FakeOutput) Set(high bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.SetError != nil {
		return f.SetError
	}
	f.History = append(f.History, high)
	return nil
}

// Level returns the last level written, low if nothing was written.
func (f *FakeOutput) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.History) == 0 {
		return false
	}
	return f.History[len(f.History)-1]
}

// Pulses counts low-to-high transitions.
func (f *FakeOutput) Pulses() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	prev := false
	for _, h := range f.History {
		if h && !prev {
			n++
		}
		prev = h
	}
	return n
}
