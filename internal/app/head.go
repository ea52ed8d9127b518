// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/wheel_load/internal/config"
	"github.com/relabs-tech/wheel_load/internal/display"
	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/sensors"
	"github.com/relabs-tech/wheel_load/internal/telemetry"
)

// RunHead drives the four subs and the display from the 1 ms scheduler and
// publishes a snapshot after every render.
func RunHead() error {
	cfg := config.Get()

	hw, err := sensors.OpenHead(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	var sinks []display.Sink
	if cfg.DisplayEnabled {
		sink, closeBus, err := sensors.OpenDisplay(cfg)
		if err != nil {
			// run headless
			log.Printf("head: display unavailable: %v", err)
		} else {
			defer closeBus()
			sinks = append(sinks, sink)
		}
	}
	canvas := display.NewCanvas(sinks...)

	client, err := head.NewClient(hw.Bus, hw.CS, hw.LED)
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}
	client.Settle = time.Duration(cfg.HeadSettleUs) * time.Microsecond

	var btn head.ButtonPin
	if hw.Button != nil {
		btn = hw.Button
	}
	unit, err := head.NewUnit(client, btn, head.NewScreen(canvas))
	if err != nil {
		return fmt.Errorf("head: %w", err)
	}

	ctx, stop := signalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	mq, err := connectOptional(cfg.MQTTBroker, cfg.MQTTClientIDHead, "head")
	if err != nil {
		return err
	}
	if mq != nil {
		defer mq.Disconnect(250)
		pub := telemetry.NewPublisher(mq, 16)
		unit.OnRender = newHeadPublisher(pub, canvas, cfg).onRender
		if err := subscribeCommands(mq, unit, cfg); err != nil {
			return err
		}
		g.Go(func() error { return pub.Run(ctx) })
	}

	g.Go(func() error { return unit.Run(ctx) })

	err = shutdown(g.Wait())
	log.Println("head: shutting down")
	return err
}
