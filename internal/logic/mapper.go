package logic

import "image/color"

// Zone boundaries in centimeters.
const (
	MinDistance      Distance = 1
	CriticalDistance Distance = 26  // first distance outside the flicker zone
	NearDistance     Distance = 101 // first distance in the far band
	MaxDistance      Distance = 300
)

// Frame is the derived visual state for one loop iteration: Active of
// Total LEDs lit in Color, the rest off.
type Frame struct {
	Color  color.RGBA
	Active int
	Total  int
}

// Off reports whether no LED is lit.
func (f Frame) Off() bool {
	return f.Active == 0
}

// Palette holds the colors of each band.
type Palette struct {
	Alarm   color.RGBA // critical zone flicker
	Warning color.RGBA // near band
	Safe    color.RGBA // far band
}

// DefaultPalette is red for anything within a meter and green beyond.
func DefaultPalette() Palette {
	return Palette{
		Alarm:   color.RGBA{R: 255, A: 255},
		Warning: color.RGBA{R: 255, A: 255},
		Safe:    color.RGBA{G: 255, A: 255},
	}
}

// Classify returns the zone of d. Zero, anything beyond MaxDistance and the
// sentinel all collapse to ZoneInvalid.
func Classify(d Distance) Zone {
	switch {
	case d < MinDistance || d > MaxDistance:
		return ZoneInvalid
	case d < CriticalDistance:
		return ZoneCritical
	case d < NearDistance:
		return ZoneNear
	default:
		return ZoneFar
	}
}

// Map computes the frame for d on a strip of total LEDs. In the critical
// zone the strip is fully lit in the alarm color when flicker is set and off
// otherwise; the caller alternates flicker to blink. Map keeps no state.
func Map(d Distance, flicker bool, total int, p Palette) Frame {
	if total < 0 {
		total = 0
	}
	f := Frame{Total: total}

	switch Classify(d) {
	case ZoneCritical:
		if flicker {
			f.Color = p.Alarm
			f.Active = total
		}
	case ZoneNear:
		// One more LED per 15cm closer than a meter.
		f.Color = p.Warning
		f.Active = int(100-d)/15 + 1
	case ZoneFar:
		// One fewer LED per 40cm closer than three meters.
		f.Color = p.Safe
		f.Active = int(d-100)/40 + 1
	}

	if f.Active > total {
		f.Active = total
	}
	return f
}
