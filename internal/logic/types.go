// Package logic contains the pure core of the parking sensor: the echo timing
// state machine, the distance-to-LED mapping and zone change detection.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"strconv"
	"time"
)

// Distance is a measured distance in centimeters.
type Distance uint16

// NoEcho is the sentinel published when no valid echo was received, either
// because the sensor never answered or because the echo was held high past
// the timeout.
const NoEcho Distance = 0xFFFF

// Valid reports whether d is a real measurement rather than the sentinel.
func (d Distance) Valid() bool {
	return d != NoEcho
}

func (d Distance) String() string {
	if d == NoEcho {
		return "no-echo"
	}
	return strconv.Itoa(int(d)) + "cm"
}

// Zone is the display band a distance falls into.
type Zone string

const (
	ZoneInvalid  Zone = "CLEAR"
	ZoneFar      Zone = "FAR"
	ZoneNear     Zone = "NEAR"
	ZoneCritical Zone = "CRITICAL"
)

// EventType represents a zone transition event.
type EventType string

const (
	EventClear    EventType = "ZONE_CLEAR"
	EventFar      EventType = "ZONE_FAR"
	EventNear     EventType = "ZONE_NEAR"
	EventCritical EventType = "ZONE_CRITICAL"
)

// Event represents a zone transition to be published.
type Event struct {
	Timestamp time.Time
	Type      EventType
	Zone      Zone
	Distance  Distance
}

// Input represents a single distance sample taken by the telemetry loop.
type Input struct {
	Distance Distance
	Time     time.Time
}

// EventCounts tracks the number of each event type since startup.
type EventCounts struct {
	Clear    int
	Far      int
	Near     int
	Critical int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    EventCounts
}
