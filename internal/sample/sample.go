// Package sample holds the single shared cell between the echo tick handler
// and the display loop.
//
// The tick handler is the only writer. Readers take snapshots: distance and
// publish sequence are packed into one 32-bit word so a reader always sees a
// complete sample, never half of an update.
package sample

import (
	"sync/atomic"

	"github.com/sweeney/parking-sensor/internal/logic"
)

// Sample is a snapshot of the cell.
type Sample struct {
	Distance logic.Distance
	// Seq increments (wrapping) on every publish; readers compare it to
	// detect a fresh measurement.
	Seq uint16
}

// Cell is the latest published distance plus the measurement-in-flight flag.
type Cell struct {
	word      atomic.Uint32
	measuring atomic.Bool
}

// NewCell returns a cell holding NoEcho.
func NewCell() *Cell {
	c := &Cell{}
	c.word.Store(pack(logic.NoEcho, 0))
	return c
}

// Publish stores d as the latest sample. Only the tick handler may call it.
func (c *Cell) Publish(d logic.Distance) {
	_, seq := unpack(c.word.Load())
	c.word.Store(pack(d, seq+1))
}

// Load returns a consistent snapshot.
func (c *Cell) Load() Sample {
	d, seq := unpack(c.word.Load())
	return Sample{Distance: d, Seq: seq}
}

// SetMeasuring records whether a measurement cycle is in flight.
func (c *Cell) SetMeasuring(v bool) {
	c.measuring.Store(v)
}

// Measuring reports whether a measurement cycle is in flight. Renderers that
// stall the tick source must not write while it is set.
func (c *Cell) Measuring() bool {
	return c.measuring.Load()
}

func pack(d logic.Distance, seq uint16) uint32 {
	return uint32(seq)<<16 | uint32(d)
}

func unpack(w uint32) (logic.Distance, uint16) {
	return logic.Distance(w & 0xFFFF), uint16(w >> 16)
}
