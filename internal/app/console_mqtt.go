// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/relabs-tech/wheel_load/internal/config"
	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/telemetry"
)

func printSnapshot(w io.Writer, s telemetry.Snapshot) {
	var b strings.Builder
	fmt.Fprintf(&b, "[WHEEL] %s mode=%-2s", s.Time, s.Mode)
	for _, wh := range s.Wheels {
		if wh.OutOfRange {
			fmt.Fprintf(&b, "  %s=   OOR", wh.Name)
			continue
		}
		fmt.Fprintf(&b, "  %s=%6.1f", wh.Name, wh.Kg)
	}
	fmt.Fprintf(&b, "  total=%6.1fkg", s.TotalKg)
	if s.Percent != nil {
		p := s.Percent
		fmt.Fprintf(&b, "  pct=%d/%d/%d/%d", p[0], p[1], p[2], p[3])
	}
	if s.Tare != "idle" {
		fmt.Fprintf(&b, "  tare=%s", s.Tare)
	}
	fmt.Fprintln(w, b.String())
}

func printSubStatus(w io.Writer, s telemetry.SubStatus) {
	fmt.Fprintf(w,
		"[SUB-%s] hx1=%8d hx2=%8d  off=%d/%d  dt=%.1f/%.1fms  cs=%dus  cal=%s  in=%s  kg=%.2f  ready=%t\n",
		s.Name, s.A, s.B, s.OffsetA, s.OffsetB, s.IntervalAms, s.IntervalBms,
		s.SelectWindowUs, s.Calibration, s.LastReceived, s.Kg, s.Ready,
	)
}

// RunConsoleMQTT prints every snapshot and sub diagnostics message.
func RunConsoleMQTT() error {
	cfg := config.Get()

	client, err := telemetry.Connect(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	log.Printf("console: connected to MQTT broker at %s", cfg.MQTTBroker)

	if err := telemetry.SubscribeJSON(client, cfg.TopicSnapshot, func(s telemetry.Snapshot) {
		printSnapshot(os.Stdout, s)
	}); err != nil {
		return err
	}
	for i := 0; i < head.NumSubs; i++ {
		if err := telemetry.SubscribeJSON(client, telemetry.SubTopic(cfg.TopicSubBase, i), func(s telemetry.SubStatus) {
			printSubStatus(os.Stdout, s)
		}); err != nil {
			return err
		}
	}

	// Wait for Ctrl+C
	ctx, stop := signalContext()
	defer stop()
	<-ctx.Done()

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}
