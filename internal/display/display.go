// Package display is the foreground loop: snapshot the latest distance, map
// it to a frame and hand it to the renderer, as fast as the renderer allows.
package display

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/sample"
)

// Renderer draws a frame unless measuring reports a measurement in flight.
type Renderer interface {
	Render(f logic.Frame, measuring func() bool) (bool, error)
}

// Logger is the subset of *zap.SugaredLogger the loop uses.
type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Result describes one loop iteration.
type Result struct {
	Sample   sample.Sample
	Zone     logic.Zone
	Frame    logic.Frame
	Rendered bool
}

// Stats are running totals. Safe to read from any goroutine.
type Stats struct {
	Iterations   uint64
	Rendered     uint64
	Skipped      uint64
	RenderErrors uint64
}

// Loop owns the flicker phase; nothing else persists between iterations.
type Loop struct {
	cell     *sample.Cell
	renderer Renderer
	length   int
	palette  logic.Palette
	log      Logger

	flicker bool
	failing bool

	iterations   atomic.Uint64
	rendered     atomic.Uint64
	skipped      atomic.Uint64
	renderErrors atomic.Uint64
}

// New creates a Loop for a strip of length LEDs.
func New(cell *sample.Cell, r Renderer, length int, p logic.Palette, log Logger) *Loop {
	return &Loop{
		cell:     cell,
		renderer: r,
		length:   length,
		palette:  p,
		log:      log,
	}
}

// Step runs one iteration. A render error is returned after being counted;
// the next Step simply tries again.
func (l *Loop) Step() (Result, error) {
	s := l.cell.Load()
	zone := logic.Classify(s.Distance)
	if zone == logic.ZoneCritical {
		l.flicker = !l.flicker
	}

	frame := logic.Map(s.Distance, l.flicker, l.length, l.palette)
	ok, err := l.renderer.Render(frame, l.cell.Measuring)

	l.iterations.Add(1)
	switch {
	case err != nil:
		l.renderErrors.Add(1)
	case ok:
		l.rendered.Add(1)
	default:
		l.skipped.Add(1)
	}

	return Result{Sample: s, Zone: zone, Frame: frame, Rendered: ok}, err
}

// Run steps without delay until ctx is done. Render errors are logged once
// per failing stretch, never fatal. An iteration that draws nothing yields the
// processor, so the tick goroutine runs even with a single P.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		res, err := l.Step()
		switch {
		case err != nil:
			if !l.failing {
				l.log.Warnf("render error: %v", err)
				l.failing = true
			}
		case l.failing:
			l.log.Infof("render recovered")
			l.failing = false
		}
		if !res.Rendered {
			runtime.Gosched()
		}
	}
}

// Stats returns a snapshot of the running totals.
func (l *Loop) Stats() Stats {
	return Stats{
		Iterations:   l.iterations.Load(),
		Rendered:     l.rendered.Load(),
		Skipped:      l.skipped.Load(),
		RenderErrors: l.renderErrors.Load(),
	}
}
