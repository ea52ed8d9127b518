// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/wheel_load/internal/config"
	"github.com/relabs-tech/wheel_load/internal/display"
	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/sim"
	"github.com/relabs-tech/wheel_load/internal/sub"
	"github.com/relabs-tech/wheel_load/internal/telemetry"
)

// newSimHead puts a head unit on the rig's bus, drawing to an in-memory
// canvas. Scenario tare and mode steps become remote requests.
func newSimHead(rig *sim.Rig) (*head.Unit, *display.Canvas, error) {
	canvas := display.NewCanvas()
	client, err := head.NewClient(rig.Bus, rig.ChipSelects(), [head.NumSubs]head.Pin{})
	if err != nil {
		return nil, nil, fmt.Errorf("sim: %w", err)
	}
	unit, err := head.NewUnit(client, nil, head.NewScreen(canvas))
	if err != nil {
		return nil, nil, fmt.Errorf("sim: %w", err)
	}
	rig.OnAction = func(st sim.Step) {
		switch st.Action {
		case sim.ActionTare:
			unit.RequestTare()
		case sim.ActionMode:
			unit.RequestModeAdvance()
		}
	}
	return unit, canvas, nil
}

// lineLogger prints the display rows whenever they change.
func lineLogger() func(head.Snapshot) {
	var last string
	return func(s head.Snapshot) {
		rows := make([]string, 0, head.NumSubs)
		for i, l := range s.Lines {
			rows = append(rows, telemetry.WheelNames[i]+" "+strings.TrimSpace(l))
		}
		line := fmt.Sprintf("[%s] %s", s.Mode, strings.Join(rows, " | "))
		if line != last {
			last = line
			log.Printf("sim: %s", line)
		}
	}
}

// RunSim runs four emulated subs and the head scheduler in one process.
func RunSim() error {
	cfg := config.Get()

	sc, err := sim.LoadScenario(cfg.SimScenario)
	if err != nil {
		return err
	}
	rig, err := sim.NewRig(sc)
	if err != nil {
		return err
	}
	unit, canvas, err := newSimHead(rig)
	if err != nil {
		return err
	}
	hooks := []func(head.Snapshot){lineLogger()}

	ctx, stop := signalContext()
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	mq, err := connectOptional(cfg.MQTTBroker, cfg.MQTTClientIDSim, "sim")
	if err != nil {
		return err
	}
	if mq != nil {
		defer mq.Disconnect(250)
		pub := telemetry.NewPublisher(mq, 32)
		hooks = append(hooks, newHeadPublisher(pub, canvas, cfg).onRender)
		rig.DiagEvery = time.Duration(cfg.SubDiagInterval) * time.Millisecond
		rig.OnDiagnostics = func(wheel int, d sub.Diagnostics) {
			pub.JSON(telemetry.SubTopic(cfg.TopicSubBase, wheel), telemetry.FromDiagnostics(wheel, d, time.Now()))
		}
		if err := subscribeCommands(mq, unit, cfg); err != nil {
			return err
		}
		g.Go(func() error { return pub.Run(ctx) })
	}
	unit.OnRender = chain(hooks...)

	log.Printf("sim: scenario with %d steps", len(sc.Steps))
	g.Go(func() error { return rig.RunSubs(ctx) })
	g.Go(func() error { return unit.Run(ctx) })

	err = shutdown(g.Wait())
	log.Println("sim: shutting down")
	return err
}
