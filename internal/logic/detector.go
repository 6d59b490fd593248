package logic

import "time"

// zoneState tracks debounce state for the observed zone.
type zoneState struct {
	// Current stable (debounced) zone
	Stable Zone
	// Pending zone during debounce
	Pending Zone
	// Time when pending zone was first observed
	PendingSince time.Time
	// Whether we have established a baseline
	Baselined bool
}

// Detector tracks the zone of periodic distance samples and detects
// debounced transitions. It is independent of the display: the LEDs follow
// every sample, the detector only reports zones that held for the debounce
// duration.
type Detector struct {
	debounceDuration time.Duration
	zone             zoneState
	distance         Distance
	startTime        time.Time
	eventCounts      EventCounts
	lastHeartbeat    time.Time
}

// NewDetector creates a new transition detector with the given debounce duration.
// The startTime is used for calculating uptime in heartbeat events.
func NewDetector(debounceDuration time.Duration, startTime time.Time) *Detector {
	return &Detector{
		debounceDuration: debounceDuration,
		distance:         NoEcho,
		startTime:        startTime,
		lastHeartbeat:    startTime,
	}
}

// Process takes a new distance sample and returns any events that should be emitted.
// Events are only returned after baseline is established and on zone transitions.
func (d *Detector) Process(input Input) []Event {
	d.distance = input.Distance
	zone := Classify(input.Distance)
	z := &d.zone

	// First time seeing a zone
	if !z.Baselined {
		if z.Pending == "" || z.Pending != zone {
			// Start (or restart) observing
			z.Pending = zone
			z.PendingSince = input.Time
			return nil
		}

		if input.Time.Sub(z.PendingSince) >= d.debounceDuration {
			z.Stable = zone
			z.Baselined = true
			z.Pending = ""
		}
		return nil // No events until baseline established
	}

	if zone == z.Stable {
		// No change from stable zone, clear any pending
		z.Pending = ""
		return nil
	}

	if z.Pending != zone {
		// New pending zone
		z.Pending = zone
		z.PendingSince = input.Time
		return nil
	}

	if input.Time.Sub(z.PendingSince) < d.debounceDuration {
		return nil
	}

	z.Stable = zone
	z.Pending = ""

	event := Event{
		Timestamp: input.Time,
		Type:      eventTypeForZone(zone),
		Zone:      zone,
		Distance:  input.Distance,
	}
	d.count(event.Type)
	return []Event{event}
}

func (d *Detector) count(t EventType) {
	switch t {
	case EventClear:
		d.eventCounts.Clear++
	case EventFar:
		d.eventCounts.Far++
	case EventNear:
		d.eventCounts.Near++
	case EventCritical:
		d.eventCounts.Critical++
	}
}

func eventTypeForZone(z Zone) EventType {
	switch z {
	case ZoneFar:
		return EventFar
	case ZoneNear:
		return EventNear
	case ZoneCritical:
		return EventCritical
	}
	return EventClear
}

// IsBaselined returns whether the detector has established a baseline.
func (d *Detector) IsBaselined() bool {
	return d.zone.Baselined
}

// CurrentZone returns the current stable zone and the last distance seen.
func (d *Detector) CurrentZone() (Zone, Distance) {
	return d.zone.Stable, d.distance
}

// EventCountsSnapshot returns a copy of the per-type event counts.
func (d *Detector) EventCountsSnapshot() EventCounts {
	return d.eventCounts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since the
// last heartbeat (or startup). Returns nil if not yet baselined, if the
// interval has not elapsed, or if interval is <= 0 (disabled).
func (d *Detector) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}

	if !d.zone.Baselined {
		return nil
	}

	if now.Sub(d.lastHeartbeat) < interval {
		return nil
	}

	d.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(d.startTime),
		Counts:    d.eventCounts,
	}
}
