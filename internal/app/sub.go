// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/wheel_load/internal/config"
	"github.com/relabs-tech/wheel_load/internal/hx71708"
	"github.com/relabs-tech/wheel_load/internal/sensors"
	"github.com/relabs-tech/wheel_load/internal/sub"
	"github.com/relabs-tech/wheel_load/internal/telemetry"
)

// ConsolePeriod is how often the sub console is redrawn.
const ConsolePeriod = 100 * time.Millisecond

// subLoop is the sub's main loop. ADC polling, the console and diagnostics
// share one goroutine; the bus responder runs beside it.
type subLoop struct {
	ctrl *sub.Controller

	console      *sub.Console
	out          io.Writer
	keys         <-chan byte
	consoleEvery time.Duration

	diag      func(sub.Diagnostics)
	diagEvery time.Duration
}

func (l *subLoop) run(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	var lastConsole, lastDiag time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if _, err := l.ctrl.Poll(); err != nil {
				log.Printf("sub: %v", err)
			}
			if l.console != nil && now.Sub(lastConsole) >= l.consoleEvery {
				lastConsole = now
				key, have := l.key()
				if err := l.console.Step(l.out, key, have); err != nil {
					log.Printf("sub: console: %v", err)
				}
			}
			if l.diag != nil && now.Sub(lastDiag) >= l.diagEvery {
				lastDiag = now
				l.diag(l.ctrl.Diagnostics())
			}
		}
	}
}

// key takes at most one pending keystroke.
func (l *subLoop) key() (byte, bool) {
	select {
	case k := <-l.keys:
		return k, true
	default:
		return 0, false
	}
}

// readKeys forwards bytes from r until it fails. Keys that arrive while the
// loop is behind are dropped.
func readKeys(ctx context.Context, r io.Reader, keys chan<- byte) error {
	buf := make([]byte, 16)
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			select {
			case keys <- b:
			default:
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("sub: console read: %w", err)
		}
	}
}

// RunSub samples the wheel's load cells and answers the head on the bus.
func RunSub() error {
	cfg := config.Get()

	hw, err := sensors.OpenSub(cfg)
	if err != nil {
		return err
	}
	if err := hw.Pair.Reset(time.Sleep); err != nil {
		return fmt.Errorf("sub: reset: %w", err)
	}
	log.Printf("sub: ADC reset, %d warm-up samples set the zero", hx71708.OffsetSamples)

	var led sub.Pin
	if hw.LED != nil {
		led = hw.LED
	}
	ctrl, err := sub.New(hw.Pair, sub.NewFileStore(cfg.SubCalibrationFile), hw.Responder, led)
	if err != nil {
		return err
	}
	log.Printf("sub: calibration %s", ctrl.Calibration())

	ctx, stop := signalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	loop := &subLoop{ctrl: ctrl, consoleEvery: ConsolePeriod}

	if cfg.SubConsolePort != "" {
		port, err := serial.Open(serial.OpenOptions{
			PortName:        cfg.SubConsolePort,
			BaudRate:        uint(cfg.SubConsoleBaud),
			DataBits:        8,
			StopBits:        1,
			MinimumReadSize: 1,
			ParityMode:      serial.PARITY_NONE,
		})
		if err != nil {
			return fmt.Errorf("sub: console %s: %w", cfg.SubConsolePort, err)
		}
		log.Printf("sub: console on %s at %d baud", cfg.SubConsolePort, cfg.SubConsoleBaud)

		keys := make(chan byte, 16)
		loop.console = sub.NewConsole(ctrl)
		loop.out = port
		loop.keys = keys
		g.Go(func() error { return readKeys(ctx, port, keys) })
		g.Go(func() error {
			<-ctx.Done()
			return port.Close()
		})
	}

	mq, err := connectOptional(cfg.MQTTBroker, fmt.Sprintf("%s-%d", cfg.MQTTClientIDSub, cfg.SubWheel), "sub")
	if err != nil {
		return err
	}
	if mq != nil {
		defer mq.Disconnect(250)
		pub := telemetry.NewPublisher(mq, 4)
		topic := telemetry.SubTopic(cfg.TopicSubBase, cfg.SubWheel)
		loop.diagEvery = time.Duration(cfg.SubDiagInterval) * time.Millisecond
		loop.diag = func(d sub.Diagnostics) {
			pub.JSON(topic, telemetry.FromDiagnostics(cfg.SubWheel, d, time.Now()))
		}
		g.Go(func() error { return pub.Run(ctx) })
	}

	g.Go(func() error { return hw.Responder.Run(ctx, ctrl) })
	g.Go(func() error { return loop.run(ctx) })

	err = shutdown(g.Wait())
	log.Println("sub: shutting down")
	return err
}
