// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"bytes"
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wheel_load/internal/config"
	"github.com/relabs-tech/wheel_load/internal/display"
	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/telemetry"
)

// headPublisher turns render snapshots into MQTT messages. It runs on the
// scheduler goroutine and only queues.
type headPublisher struct {
	pub      *telemetry.Publisher
	canvas   *display.Canvas
	topic    string
	screen   string
	interval time.Duration
	last     time.Time
}

func newHeadPublisher(pub *telemetry.Publisher, canvas *display.Canvas, cfg *config.Config) *headPublisher {
	return &headPublisher{
		pub:      pub,
		canvas:   canvas,
		topic:    cfg.TopicSnapshot,
		screen:   cfg.TopicScreen,
		interval: time.Duration(cfg.ScreenPublishInterval) * time.Millisecond,
	}
}

func (h *headPublisher) onRender(s head.Snapshot) {
	h.pub.JSON(h.topic, telemetry.FromHead(s))

	if h.interval <= 0 || s.At.Sub(h.last) < h.interval {
		return
	}
	h.last = s.At
	var buf bytes.Buffer
	if err := h.canvas.WriteBMP(&buf); err != nil {
		log.Printf("head: screen encode: %v", err)
		return
	}
	h.pub.Raw(h.screen, buf.Bytes(), true)
}

// subscribeCommands routes remote tare and mode requests to the unit. Any
// payload counts.
func subscribeCommands(client mqtt.Client, unit *head.Unit, cfg *config.Config) error {
	if err := telemetry.Subscribe(client, cfg.TopicCmdTare, func([]byte) {
		unit.RequestTare()
	}); err != nil {
		return err
	}
	return telemetry.Subscribe(client, cfg.TopicCmdMode, func([]byte) {
		unit.RequestModeAdvance()
	})
}

// chain runs every non-nil render hook in order.
func chain(hooks ...func(head.Snapshot)) func(head.Snapshot) {
	return func(s head.Snapshot) {
		for _, h := range hooks {
			if h != nil {
				h(s)
			}
		}
	}
}
