package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Zone          string       `json:"zone"`
	DistanceCM    *int         `json:"distance_cm"`
	Seq           uint16       `json:"seq"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Sensor        SensorJSON   `json:"sensor"`
	Display       DisplayJSON  `json:"display"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Clear    int `json:"clear"`
	Far      int `json:"far"`
	Near     int `json:"near"`
	Critical int `json:"critical"`
}

// SensorJSON is the JSON representation of the echo handler's counters.
type SensorJSON struct {
	State       string `json:"state"`
	Cycles      uint32 `json:"cycles"`
	Timeouts    uint32 `json:"timeouts"`
	ReadErrors  uint32 `json:"read_errors"`
	WriteErrors uint32 `json:"write_errors"`
}

// DisplayJSON is the JSON representation of the foreground loop's counters.
type DisplayJSON struct {
	Iterations   uint64 `json:"iterations"`
	Rendered     uint64 `json:"rendered"`
	Skipped      uint64 `json:"skipped"`
	RenderErrors uint64 `json:"render_errors"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IdleTickMs   float64 `json:"idle_tick_ms"`
	EchoTickUs   float64 `json:"echo_tick_us"`
	TriggerEvery int     `json:"trigger_every"`
	EchoTimeout  int     `json:"echo_timeout"`
	LEDs         int     `json:"leds"`
	Brightness   int     `json:"brightness"`
	PollMs       int64   `json:"poll_ms"`
	DebounceMs   int64   `json:"debounce_ms"`
	HeartbeatMs  int64   `json:"heartbeat_ms"`
	Broker       string  `json:"broker"`
	HTTPAddr     string  `json:"http_addr"`
	WSBroker     string  `json:"ws_broker,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	zone := string(snap.Zone)
	if zone == "" {
		zone = "UNKNOWN"
	}

	var dist *int
	if snap.Distance.Valid() {
		cm := int(snap.Distance)
		dist = &cm
	}

	return StatusInner{
		Zone:          zone,
		DistanceCM:    dist,
		Seq:           snap.Seq,
		Ready:         snap.Baselined,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Clear:    snap.Counts.Clear,
			Far:      snap.Counts.Far,
			Near:     snap.Counts.Near,
			Critical: snap.Counts.Critical,
		},
		Sensor: SensorJSON{
			State:       snap.Sensor.State,
			Cycles:      snap.Sensor.Cycles,
			Timeouts:    snap.Sensor.Timeouts,
			ReadErrors:  snap.Sensor.ReadErrors,
			WriteErrors: snap.Sensor.WriteErrors,
		},
		Display: DisplayJSON{
			Iterations:   snap.Display.Iterations,
			Rendered:     snap.Display.Rendered,
			Skipped:      snap.Display.Skipped,
			RenderErrors: snap.Display.RenderErrors,
		},
		Config: ConfigJSON{
			IdleTickMs:   snap.Config.IdleTickMs,
			EchoTickUs:   snap.Config.EchoTickUs,
			TriggerEvery: snap.Config.TriggerEvery,
			EchoTimeout:  snap.Config.EchoTimeout,
			LEDs:         snap.Config.LEDs,
			Brightness:   snap.Config.Brightness,
			PollMs:       snap.Config.PollMs,
			DebounceMs:   snap.Config.DebounceMs,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			WSBroker:     snap.Config.WSBroker,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
