// Package status provides a thread-safe status tracker for the parking-sensor daemon.
// It is written by the telemetry loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/parking-sensor/internal/logic"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	IdleTickMs   float64
	EchoTickUs   float64
	TriggerEvery int
	EchoTimeout  int
	LEDs         int
	Brightness   int
	PollMs       int64
	DebounceMs   int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	WSBroker     string // Websocket broker URL for browser MQTT (empty = disabled)
}

// SensorStats mirrors the echo handler's counters.
type SensorStats struct {
	State       string
	Cycles      uint32
	Timeouts    uint32
	ReadErrors  uint32
	WriteErrors uint32
}

// DisplayStats mirrors the foreground loop's counters.
type DisplayStats struct {
	Iterations   uint64
	Rendered     uint64
	Skipped      uint64
	RenderErrors uint64
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Zone          logic.Zone
	Distance      logic.Distance
	Seq           uint16
	Baselined     bool
	Counts        logic.EventCounts
	Sensor        SensorStats
	Display       DisplayStats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Distance:  logic.NoEcho,
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update sets the debounced zone, baseline status and event counts.
// Called from runLoop on every tick.
func (t *Tracker) Update(zone logic.Zone, baselined bool, counts logic.EventCounts) {
	t.mu.Lock()
	t.snap.Zone = zone
	t.snap.Baselined = baselined
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetSample records the latest raw sample.
func (t *Tracker) SetSample(d logic.Distance, seq uint16) {
	t.mu.Lock()
	t.snap.Distance = d
	t.snap.Seq = seq
	t.mu.Unlock()
}

// SetSensor records the echo handler's counters.
func (t *Tracker) SetSensor(s SensorStats) {
	t.mu.Lock()
	t.snap.Sensor = s
	t.mu.Unlock()
}

// SetDisplay records the foreground loop's counters.
func (t *Tracker) SetDisplay(d DisplayStats) {
	t.mu.Lock()
	t.snap.Display = d
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
