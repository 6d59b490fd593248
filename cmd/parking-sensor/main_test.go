package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/sweeney/parking-sensor/internal/display"
	"github.com/sweeney/parking-sensor/internal/gpio"
	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/mqtt"
	"github.com/sweeney/parking-sensor/internal/sample"
	"github.com/sweeney/parking-sensor/internal/sensor"
	"github.com/sweeney/parking-sensor/internal/status"
	"github.com/sweeney/parking-sensor/internal/timer"
)

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	if info == nil {
		t.Fatal("expected non-nil NetworkInfo")
	}

	want := status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}
	if *info != want {
		t.Errorf("got %+v, want %+v", *info, want)
	}
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	if info := readNetworkInfo(); info != nil {
		t.Errorf("expected nil when NETWORK_STATUS is unset, got %+v", info)
	}
}

func TestResolveWSBroker(t *testing.T) {
	tests := []struct {
		ws, broker, want string
	}{
		{"=broker", "tcp://192.168.1.200:1883", "ws://192.168.1.200:9001"},
		{"off", "tcp://192.168.1.200:1883", ""},
		{"ws://other:8080/mqtt", "tcp://192.168.1.200:1883", "ws://other:8080/mqtt"},
		{"=broker", "not a url", ""},
	}
	for _, tt := range tests {
		if got := resolveWSBroker(tt.ws, tt.broker); got != tt.want {
			t.Errorf("resolveWSBroker(%q, %q) = %q, want %q", tt.ws, tt.broker, got, tt.want)
		}
	}
}

func TestOptionsValidate(t *testing.T) {
	good := options{
		echoPin:    24,
		triggerPin: 23,
		leds:       5,
		poll:       100 * time.Millisecond,
		machine:    logic.DefaultMachineConfig(),
	}
	if err := good.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := good
	bad.leds = 0
	bad.triggerPin = bad.echoPin
	bad.machine.EchoTimeout = 0
	err := bad.validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"--leds", "--echo-pin", "echo timeout"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestRootCommandFlagDefaults(t *testing.T) {
	cmd := newRootCmd()
	f := cmd.Flags()

	checks := map[string]string{
		"echo-pin":      "24",
		"trigger-pin":   "23",
		"leds":          "5",
		"idle-tick":     "10ms",
		"echo-tick":     "58µs",
		"trigger-every": "10",
		"echo-timeout":  "517",
	}
	for name, want := range checks {
		fl := f.Lookup(name)
		if fl == nil {
			t.Errorf("missing flag --%s", name)
			continue
		}
		if fl.DefValue != want {
			t.Errorf("--%s default: got %q, want %q", name, fl.DefValue, want)
		}
	}
}

func TestStatusConfig(t *testing.T) {
	opts := options{
		leds:       5,
		brightness: 40,
		poll:       100 * time.Millisecond,
		debounce:   time.Second,
		broker:     "tcp://10.0.0.2:1883",
		wsBroker:   "off",
		httpAddr:   ":8080",
		machine:    logic.DefaultMachineConfig(),
	}

	cfg := statusConfig(opts)
	if cfg.IdleTickMs != 10 || cfg.EchoTickUs != 58 {
		t.Errorf("ticks: got %vms/%vus, want 10ms/58us", cfg.IdleTickMs, cfg.EchoTickUs)
	}
	if cfg.Brightness != 40 || cfg.LEDs != 5 {
		t.Errorf("strip: got %d LEDs @ %d%%", cfg.LEDs, cfg.Brightness)
	}
	if cfg.WSBroker != "" {
		t.Errorf("WSBroker: got %q, want disabled", cfg.WSBroker)
	}
}

// --- measureOnce tests ---

// clockTicks returns a buffered channel holding n tick times step apart.
func clockTicks(n int, step time.Duration) chan time.Time {
	tick := make(chan time.Time, n)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		tick <- now
		now = now.Add(step)
	}
	return tick
}

func TestMeasureOnceEcho(t *testing.T) {
	cfg := logic.MachineConfig{
		IdlePeriod:   10 * time.Millisecond,
		EchoPeriod:   580 * time.Microsecond, // 10cm per tick
		TriggerEvery: 0,
		EchoTimeout:  100,
	}
	// trigger, wait, echo rises, two more high ticks, falls: 3 ticks wide
	echo := gpio.NewFakeInput(false, false, true, true, true, false)
	cell := sample.NewCell()
	sens := sensor.New(cfg, echo, gpio.NewFakeOutput(), timer.NewFakeTimer(), cell)

	// One echo period per delivery, so every delivery steps once.
	tick := clockTicks(20, cfg.EchoPeriod)

	d, err := measureOnce(context.Background(), sens, cell, tick)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 30 {
		t.Errorf("distance: got %v, want 30cm", d)
	}
}

func TestMeasureOnceTimeout(t *testing.T) {
	cfg := logic.MachineConfig{
		IdlePeriod:   10 * time.Millisecond,
		EchoPeriod:   58 * time.Microsecond,
		TriggerEvery: 1,
		EchoTimeout:  3,
	}
	cell := sample.NewCell()
	sens := sensor.New(cfg, gpio.NewFakeInput(false), gpio.NewFakeOutput(), timer.NewFakeTimer(), cell)

	tick := clockTicks(20, cfg.IdlePeriod)

	d, err := measureOnce(context.Background(), sens, cell, tick)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != logic.NoEcho {
		t.Errorf("distance: got %v, want no-echo", d)
	}
}

func TestMeasureOnceCancelled(t *testing.T) {
	cell := sample.NewCell()
	sens := sensor.New(logic.DefaultMachineConfig(), gpio.NewFakeInput(), gpio.NewFakeOutput(), timer.NewFakeTimer(), cell)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := measureOnce(ctx, sens, cell, make(chan time.Time)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// repeat returns n copies of d.
func repeat(d logic.Distance, n int) []logic.Distance {
	out := make([]logic.Distance, n)
	for i := range out {
		out[i] = d
	}
	return out
}

func concat(parts ...[]logic.Distance) []logic.Distance {
	var out []logic.Distance
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// scriptedSamples returns one scripted distance per Load, repeating the last.
type scriptedSamples struct {
	mu        sync.Mutex
	distances []logic.Distance
	seq       uint16
}

func (s *scriptedSamples) Load() sample.Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := logic.NoEcho
	if len(s.distances) > 0 {
		d = s.distances[0]
		if len(s.distances) > 1 {
			s.distances = s.distances[1:]
		}
	}
	s.seq++
	return sample.Sample{Distance: d, Seq: s.seq}
}

type fakeSensor struct{}

func (fakeSensor) State() logic.EchoState { return logic.StateWaitingForEcho }
func (fakeSensor) Counters() sensor.Counters {
	return sensor.Counters{Cycles: 12, Timeouts: 3, ReadErrors: 1}
}

type fakeDisplay struct{}

func (fakeDisplay) Stats() display.Stats {
	return display.Stats{Iterations: 900, Rendered: 700, Skipped: 200}
}

type loopRig struct {
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
}

func newLoopRig() loopRig {
	return loopRig{
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), status.Config{LEDs: 5}),
	}
}

// runRunLoop drives runLoop with one tick per scripted distance and then
// delivers signal.
func runRunLoop(t *testing.T, rig loopRig, distances []logic.Distance, debounce, heartbeat time.Duration, clock func() time.Time, signal os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sig := make(chan os.Signal, 1)

	deps := loopDeps{
		cell:       &scriptedSamples{distances: distances},
		publisher:  rig.pub,
		mqttStatus: rig.pub,
		tracker:    rig.tracker,
		sensor:     fakeSensor{},
		display:    fakeDisplay{},
		log:        zaptest.NewLogger(t).Sugar(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(context.Background(), deps, debounce, heartbeat, clock, tick, sig)
	}()

	for range distances {
		tick <- time.Time{}
	}
	sig <- signal

	return <-errCh
}

func step100ms() func() time.Time {
	return fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 100*time.Millisecond)
}

func TestRunLoopNoEventsAtBaseline(t *testing.T) {
	rig := newLoopRig()

	err := runRunLoop(t, rig, repeat(200, 4), 250*time.Millisecond, 0, step100ms(), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(rig.pub.Events) != 0 {
		t.Errorf("expected 0 zone events, got %d", len(rig.pub.Events))
	}
	if len(rig.pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(rig.pub.SystemEvents))
	}
	if rig.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %q", rig.pub.SystemEvents[0].Event)
	}
}

func TestRunLoopSingleTransition(t *testing.T) {
	rig := newLoopRig()
	distances := concat(repeat(200, 4), repeat(50, 4))

	err := runRunLoop(t, rig, distances, 250*time.Millisecond, 0, step100ms(), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(rig.pub.Events) != 1 {
		t.Fatalf("expected 1 zone event, got %d", len(rig.pub.Events))
	}
	e := rig.pub.Events[0]
	if e.Type != logic.EventNear || e.Zone != logic.ZoneNear {
		t.Errorf("expected ZONE_NEAR, got %s/%s", e.Type, e.Zone)
	}
	if e.Distance != 50 {
		t.Errorf("expected distance 50cm, got %v", e.Distance)
	}
}

func TestRunLoopMultipleTransitions(t *testing.T) {
	rig := newLoopRig()
	distances := concat(
		repeat(250, 4),          // baseline FAR
		repeat(80, 4),           // NEAR
		repeat(15, 4),           // CRITICAL
		repeat(logic.NoEcho, 4), // car gone / no echo
	)

	err := runRunLoop(t, rig, distances, 250*time.Millisecond, 0, step100ms(), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []logic.EventType{logic.EventNear, logic.EventCritical, logic.EventClear}
	if len(rig.pub.Events) != len(want) {
		t.Fatalf("expected %d zone events, got %d", len(want), len(rig.pub.Events))
	}
	for i, w := range want {
		if rig.pub.Events[i].Type != w {
			t.Errorf("event %d: expected %s, got %s", i, w, rig.pub.Events[i].Type)
		}
	}

	counts := rig.tracker.Snapshot().Counts
	if counts.Near != 1 || counts.Critical != 1 || counts.Clear != 1 || counts.Far != 0 {
		t.Errorf("unexpected counts: %+v", counts)
	}
}

func TestRunLoopBounceRejection(t *testing.T) {
	rig := newLoopRig()
	// A single stray reading inside the debounce window must not publish.
	distances := concat(repeat(200, 4), repeat(20, 1), repeat(200, 3))

	err := runRunLoop(t, rig, distances, 250*time.Millisecond, 0, step100ms(), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(rig.pub.Events) != 0 {
		t.Errorf("expected 0 zone events for a bounce, got %d", len(rig.pub.Events))
	}
}

func TestRunLoopUpdatesTracker(t *testing.T) {
	rig := newLoopRig()
	distances := concat(repeat(200, 4), repeat(60, 4))

	err := runRunLoop(t, rig, distances, 250*time.Millisecond, 0, step100ms(), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	snap := rig.tracker.Snapshot()
	if snap.Zone != logic.ZoneNear {
		t.Errorf("Zone: got %q, want NEAR", snap.Zone)
	}
	if snap.Distance != 60 {
		t.Errorf("Distance: got %v, want 60cm", snap.Distance)
	}
	if snap.Seq != 8 {
		t.Errorf("Seq: got %d, want 8", snap.Seq)
	}
	if !snap.Baselined {
		t.Error("expected Baselined=true")
	}
	if snap.Sensor.State != "WAITING_FOR_ECHO" || snap.Sensor.Timeouts != 3 {
		t.Errorf("unexpected sensor stats: %+v", snap.Sensor)
	}
	if snap.Display.Skipped != 200 {
		t.Errorf("unexpected display stats: %+v", snap.Display)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// Clock calls are t0 (start), t1..t4 (ticks). Baseline starts pending at
	// t1 and settles at t4 (15m >= 10m debounce). CheckHeartbeat(t4, 15m)
	// sees 20m since start and fires.
	rig := newLoopRig()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	err := runRunLoop(t, rig, repeat(120, 4), 10*time.Minute, 15*time.Minute, clock, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats, shutdowns int
	for _, se := range rig.pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
			var parsed status.StatusJSON
			if err := json.Unmarshal(se.RawPayload, &parsed); err != nil {
				t.Fatalf("HEARTBEAT payload is not status JSON: %v", err)
			}
			if parsed.Status.Event != "HEARTBEAT" {
				t.Errorf("payload event: got %q", parsed.Status.Event)
			}
			if parsed.Status.Zone != "FAR" {
				t.Errorf("payload zone: got %q, want FAR", parsed.Status.Zone)
			}
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats != 1 {
		t.Errorf("expected 1 HEARTBEAT event, got %d", heartbeats)
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
}

func TestRunLoopHeartbeatIncludesNetworkInfo(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.42")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "associated")
	t.Setenv(envNetworkWifiSSID, "HomeNet")

	rig := newLoopRig()
	clock := fakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Minute)

	err := runRunLoop(t, rig, repeat(120, 4), 10*time.Minute, 15*time.Minute, clock, syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var hb *mqtt.SystemEvent
	for i := range rig.pub.SystemEvents {
		if rig.pub.SystemEvents[i].Event == "HEARTBEAT" {
			hb = &rig.pub.SystemEvents[i]
			break
		}
	}
	if hb == nil {
		t.Fatal("expected a HEARTBEAT system event")
	}

	var parsed status.StatusJSON
	if err := json.Unmarshal(hb.RawPayload, &parsed); err != nil {
		t.Fatalf("invalid heartbeat JSON: %v", err)
	}
	n := parsed.Status.Network
	if n == nil {
		t.Fatal("HEARTBEAT event missing Network info")
	}
	if n.IP != "192.168.1.42" || n.SSID != "HomeNet" || n.WifiStatus != "associated" {
		t.Errorf("unexpected network info: %+v", n)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	rig := newLoopRig()
	rig.pub.PublishError = fmt.Errorf("broker unavailable")
	distances := concat(repeat(200, 4), repeat(50, 4))

	err := runRunLoop(t, rig, distances, 250*time.Millisecond, 0, step100ms(), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if len(rig.pub.Events) != 0 {
		t.Errorf("expected 0 recorded events (publish failed), got %d", len(rig.pub.Events))
	}
	if len(rig.pub.SystemEvents) != 1 || rig.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Error("expected SHUTDOWN system event despite publish errors")
	}
	if rig.tracker.Snapshot().Zone != logic.ZoneNear {
		t.Error("detector state should advance even when publishing fails")
	}
}

func TestRunLoopShutdownSignals(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGHUP, "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			rig := newLoopRig()

			err := runRunLoop(t, rig, repeat(200, 4), 250*time.Millisecond, 0, step100ms(), tt.sig)
			if err != nil {
				t.Fatalf("runLoop returned error: %v", err)
			}

			if len(rig.pub.SystemEvents) != 1 {
				t.Fatalf("expected 1 system event, got %d", len(rig.pub.SystemEvents))
			}
			se := rig.pub.SystemEvents[0]
			if se.Event != "SHUTDOWN" {
				t.Errorf("expected SHUTDOWN, got %q", se.Event)
			}
			if se.Reason != tt.want {
				t.Errorf("expected reason %s, got %q", tt.want, se.Reason)
			}
			if !se.Retained {
				t.Error("expected Retained=true for SHUTDOWN")
			}
		})
	}
}

func TestRunLoopContextCancel(t *testing.T) {
	rig := newLoopRig()
	ctx, cancel := context.WithCancel(context.Background())

	deps := loopDeps{
		cell:      &scriptedSamples{distances: repeat(200, 1)},
		publisher: rig.pub,
		tracker:   rig.tracker,
		log:       zaptest.NewLogger(t).Sugar(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(ctx, deps, time.Second, 0, step100ms(), make(chan time.Time), make(chan os.Signal))
	}()
	cancel()

	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(rig.pub.SystemEvents) != 1 || rig.pub.SystemEvents[0].Reason != "STOPPED" {
		t.Errorf("expected SHUTDOWN/STOPPED, got %+v", rig.pub.SystemEvents)
	}
}
