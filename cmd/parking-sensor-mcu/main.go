//go:build tinygo && cortexm && baremetal

// Command parking-sensor-mcu is the microcontroller build of the parking
// sensor: the SysTick interrupt runs the echo state machine and the main
// loop redraws the strip as fast as it can.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sweeney/parking-sensor/internal/display"
	"github.com/sweeney/parking-sensor/internal/gpio"
	"github.com/sweeney/parking-sensor/internal/led"
	"github.com/sweeney/parking-sensor/internal/logic"
	"github.com/sweeney/parking-sensor/internal/sample"
	"github.com/sweeney/parking-sensor/internal/sensor"
	"github.com/sweeney/parking-sensor/internal/timer"
)

// brightness of the strip in percent.
const brightness = 100

// reportEvery is the interval between counter lines on the console.
const reportEvery = 10 * time.Second

var (
	systick timer.SysTick
	ranger  *sensor.Sensor
)

//export SysTick_Handler
func tick() {
	if ranger != nil {
		ranger.Tick()
	}
}

// printLogger writes to the serial console.
type printLogger struct{}

func (printLogger) Infof(template string, args ...interface{}) {
	println(fmt.Sprintf(template, args...))
}

func (printLogger) Warnf(template string, args ...interface{}) {
	println("warn: " + fmt.Sprintf(template, args...))
}

func main() {
	cfg := logic.DefaultMachineConfig()
	cell := sample.NewCell()

	echo := gpio.NewMachineInput(pinEcho)
	trigger := gpio.NewMachineOutput(pinTrigger)
	strip := led.NewStrip(led.NewWS2812(pinStrip), led.DefaultLength, brightness)
	strip.Clear()

	loop := display.New(cell, strip, led.DefaultLength, logic.DefaultPalette(), printLogger{})

	// sensor.New starts the timer; the handler ignores ticks until ranger is set.
	s := sensor.New(cfg, echo, trigger, &systick, cell)
	if err := systick.Err(); err != nil {
		println("systick:", err.Error())
	}
	ranger = s

	printLogger{}.Infof("started: leds=%d idle_tick=%v echo_tick=%v", led.DefaultLength, cfg.IdlePeriod, cfg.EchoPeriod)

	go report(s, cell)

	// The loop yields on every skipped frame, which lets report run under
	// the cooperative scheduler.
	loop.Run(context.Background())
}

// report prints the latest distance and the sensor counters periodically.
func report(s *sensor.Sensor, cell *sample.Cell) {
	for {
		time.Sleep(reportEvery)
		c := s.Counters()
		printLogger{}.Infof("distance=%s cycles=%d timeouts=%d", cell.Load().Distance, c.Cycles, c.Timeouts)
	}
}
