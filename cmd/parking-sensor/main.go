// Command parking-sensor measures the distance to a parked car with an
// ultrasonic ranger, shows it on an LED strip and publishes zone changes to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sweeney/parking-sensor/internal/display"
	"github.com/sweeney/parking-sensor/internal/gpio"
	"github.com/sweeney/parking-sensor/internal/led"
	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/mqtt"
	"github.com/sweeney/parking-sensor/internal/sample"
	"github.com/sweeney/parking-sensor/internal/sensor"
	"github.com/sweeney/parking-sensor/internal/status"
	"github.com/sweeney/parking-sensor/internal/timer"
	"github.com/sweeney/parking-sensor/internal/web"
)

type options struct {
	echoPin       int
	triggerPin    int
	chip          string
	leds          int
	brightness    uint8
	spi           string
	broker        string
	wsBroker      string
	heartbeat     time.Duration
	poll          time.Duration
	debounce      time.Duration
	httpAddr      string
	printDistance bool
	machine       logic.MachineConfig
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := options{machine: logic.DefaultMachineConfig()}

	cmd := &cobra.Command{
		Use:          "parking-sensor",
		Short:        "Ultrasonic parking distance indicator",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			log, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer log.Sync()
			return run(opts, log.Sugar())
		},
	}

	f := cmd.Flags()
	f.IntVar(&opts.echoPin, "echo-pin", gpio.DefaultPinEcho, "BCM pin number for the ranger's echo output")
	f.IntVar(&opts.triggerPin, "trigger-pin", gpio.DefaultPinTrigger, "BCM pin number for the ranger's trigger input")
	f.StringVar(&opts.chip, "gpio-chip", gpio.DefaultChip, "GPIO character device")
	f.IntVar(&opts.leds, "leds", led.DefaultLength, "Number of LEDs on the strip")
	f.Uint8Var(&opts.brightness, "brightness", 100, "LED brightness in percent")
	f.StringVar(&opts.spi, "spi", "", `SPI port driving the strip ("" for the first one)`)
	f.StringVar(&opts.broker, "broker", "tcp://192.168.1.200:1883", "MQTT broker address")
	f.StringVar(&opts.wsBroker, "ws-broker", "=broker", `MQTT websocket URL for live UI ("=broker" derives from --broker, "off" disables)`)
	f.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	f.DurationVar(&opts.poll, "poll", 100*time.Millisecond, "Telemetry sampling interval")
	f.DurationVar(&opts.debounce, "debounce", time.Second, "How long a zone must hold before it is published")
	f.StringVar(&opts.httpAddr, "http", ":80", "HTTP status address (empty to disable)")
	f.BoolVar(&opts.printDistance, "print-distance", false, "Take one measurement, print it and exit")
	f.DurationVar(&opts.machine.IdlePeriod, "idle-tick", opts.machine.IdlePeriod, "Tick period between measurements")
	f.DurationVar(&opts.machine.EchoPeriod, "echo-tick", opts.machine.EchoPeriod, "Tick period while timing an echo")
	f.IntVar(&opts.machine.TriggerEvery, "trigger-every", opts.machine.TriggerEvery, "Idle ticks between trigger pulses")
	f.IntVar(&opts.machine.EchoTimeout, "echo-timeout", opts.machine.EchoTimeout, "Echo ticks before a measurement is abandoned")

	return cmd
}

func (o options) validate() error {
	var errs []error
	if err := o.machine.Validate(); err != nil {
		errs = append(errs, err)
	}
	if o.leds <= 0 {
		errs = append(errs, fmt.Errorf("--leds must be positive, got %d", o.leds))
	}
	if o.poll <= 0 {
		errs = append(errs, fmt.Errorf("--poll must be positive, got %v", o.poll))
	}
	if o.echoPin == o.triggerPin {
		errs = append(errs, fmt.Errorf("--echo-pin and --trigger-pin must differ, both %d", o.echoPin))
	}
	return errors.Join(errs...)
}

func run(opts options, log *zap.SugaredLogger) error {
	pins, err := gpio.Open(opts.chip, opts.echoPin, opts.triggerPin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer pins.Close()

	cell := sample.NewCell()
	ticker := timer.NewTicker(opts.machine.IdlePeriod)
	defer ticker.Stop()
	sens := sensor.New(opts.machine, pins.Echo(), pins.Trigger(), ticker, cell)

	if opts.printDistance {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		d, err := measureOnce(ctx, sens, cell, ticker.C())
		if err != nil {
			return err
		}
		fmt.Printf("distance: %s, zone: %s\n", d, logic.Classify(d))
		return nil
	}

	dev, err := led.OpenSPI(opts.spi, opts.leds)
	if err != nil {
		return fmt.Errorf("init led strip: %w", err)
	}
	defer dev.Close()
	strip := led.NewStrip(dev, opts.leds, opts.brightness)
	defer strip.Clear()
	loop := display.New(cell, strip, opts.leds, logic.DefaultPalette(), log)

	publisher, err := mqtt.NewRealPublisher(opts.broker, log)
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(opts))
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		log.Warnf("failed to publish startup event: %v", err)
	} else {
		log.Infof("published startup event")
	}

	g, ctx := errgroup.WithContext(context.Background())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g.Go(func() error {
		return sens.Run(ctx, ticker.C())
	})
	g.Go(func() error {
		return loop.Run(ctx)
	})

	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker)
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
		log.Infof("http status server listening on %s", opts.httpAddr)
	}

	log.Infof("started: leds=%d idle_tick=%v echo_tick=%v poll=%v debounce=%v broker=%s heartbeat=%v",
		opts.leds, opts.machine.IdlePeriod, opts.machine.EchoPeriod, opts.poll, opts.debounce, opts.broker, opts.heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	poll := time.NewTicker(opts.poll)
	defer poll.Stop()

	g.Go(func() error {
		defer cancel()
		return runLoop(ctx, loopDeps{
			cell:       cell,
			publisher:  publisher,
			mqttStatus: publisher,
			tracker:    tracker,
			sensor:     sens,
			display:    loop,
			log:        log,
		}, opts.debounce, opts.heartbeat, time.Now, poll.C, sigCh)
	})

	return g.Wait()
}

// measureOnce runs the sensor until it publishes one new sample.
func measureOnce(ctx context.Context, sens *sensor.Sensor, cell *sample.Cell, tick <-chan time.Time) (logic.Distance, error) {
	start := cell.Load().Seq
	for {
		select {
		case <-ctx.Done():
			return logic.NoEcho, fmt.Errorf("measure: %w", ctx.Err())
		case t := <-tick:
			sens.Advance(t)
			if s := cell.Load(); s.Seq != start {
				return s.Distance, nil
			}
		}
	}
}

func statusConfig(opts options) status.Config {
	return status.Config{
		IdleTickMs:   float64(opts.machine.IdlePeriod) / float64(time.Millisecond),
		EchoTickUs:   float64(opts.machine.EchoPeriod) / float64(time.Microsecond),
		TriggerEvery: opts.machine.TriggerEvery,
		EchoTimeout:  opts.machine.EchoTimeout,
		LEDs:         opts.leds,
		Brightness:   int(opts.brightness),
		PollMs:       opts.poll.Milliseconds(),
		DebounceMs:   opts.debounce.Milliseconds(),
		HeartbeatMs:  opts.heartbeat.Milliseconds(),
		Broker:       opts.broker,
		HTTPAddr:     opts.httpAddr,
		WSBroker:     resolveWSBroker(opts.wsBroker, opts.broker),
	}
}

// sampler, counterSource and statsSource are the read-only views runLoop
// takes of the sample cell, the tick handler and the foreground loop.
type sampler interface {
	Load() sample.Sample
}

type counterSource interface {
	State() logic.EchoState
	Counters() sensor.Counters
}

type statsSource interface {
	Stats() display.Stats
}

type loopDeps struct {
	cell       sampler
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	sensor     counterSource
	display    statsSource
	log        *zap.SugaredLogger
}

// runLoop samples the latest distance on every tick, publishes debounced zone
// changes and heartbeats, and keeps the status tracker current. It returns
// after publishing SHUTDOWN when a signal arrives or ctx is cancelled.
func runLoop(ctx context.Context, d loopDeps, debounce, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	startTime := now()
	detector := logic.NewDetector(debounce, startTime)
	log := d.log

	shutdown := func(reason string) error {
		event := mqtt.SystemEvent{
			Timestamp: now(),
			Event:     "SHUTDOWN",
			Reason:    reason,
			Retained:  true,
		}
		if d.tracker != nil {
			if d.mqttStatus != nil {
				d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
			}
			snap := d.tracker.Snapshot()
			event.RawPayload = status.FormatStatusEvent(snap, "SHUTDOWN", reason)
		}
		if err := d.publisher.PublishSystem(event); err != nil {
			log.Warnf("failed to publish shutdown event: %v", err)
		} else {
			log.Infof("published shutdown event")
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			log.Infof("stopping: %v", context.Cause(ctx))
			return shutdown("STOPPED")

		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			return shutdown(signalName(s))

		case <-tick:
			t := now()
			smp := d.cell.Load()

			events := detector.Process(logic.Input{
				Distance: smp.Distance,
				Time:     t,
			})

			for _, event := range events {
				log.Infof("event: %s (%s)", event.Type, event.Distance)
				if err := d.publisher.Publish(event); err != nil {
					log.Warnf("publish error: %v", err)
				}
			}

			if d.tracker != nil {
				d.tracker.SetSample(smp.Distance, smp.Seq)
				if d.sensor != nil {
					c := d.sensor.Counters()
					d.tracker.SetSensor(status.SensorStats{
						State:       d.sensor.State().String(),
						Cycles:      c.Cycles,
						Timeouts:    c.Timeouts,
						ReadErrors:  c.ReadErrors,
						WriteErrors: c.WriteErrors,
					})
				}
				if d.display != nil {
					st := d.display.Stats()
					d.tracker.SetDisplay(status.DisplayStats{
						Iterations:   st.Iterations,
						Rendered:     st.Rendered,
						Skipped:      st.Skipped,
						RenderErrors: st.RenderErrors,
					})
				}
			}

			if !detector.IsBaselined() {
				// Still waiting for baseline
				continue
			}

			if hbData := detector.CheckHeartbeat(t, heartbeat); hbData != nil {
				log.Infof("heartbeat: uptime=%v clear=%d far=%d near=%d critical=%d",
					hbData.Uptime, hbData.Counts.Clear, hbData.Counts.Far, hbData.Counts.Near, hbData.Counts.Critical)

				hbEvent := mqtt.SystemEvent{
					Timestamp: hbData.Timestamp,
					Event:     "HEARTBEAT",
				}
				if d.tracker != nil {
					if d.mqttStatus != nil {
						d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
					}
					// Refresh network info for heartbeat
					if net := readNetworkInfo(); net != nil {
						d.tracker.SetNetwork(net)
					}
					zone, _ := detector.CurrentZone()
					d.tracker.Update(zone, detector.IsBaselined(), detector.EventCountsSnapshot())
					snap := d.tracker.Snapshot()
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := d.publisher.PublishSystem(hbEvent); err != nil {
					log.Warnf("heartbeat publish error: %v", err)
				}
			}

			if d.tracker != nil {
				zone, _ := detector.CurrentZone()
				d.tracker.Update(zone, detector.IsBaselined(), detector.EventCountsSnapshot())
				if d.mqttStatus != nil {
					d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
				}
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the --ws-broker flag value into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" disables.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
