// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/wheel_load/internal/config"
	"github.com/relabs-tech/wheel_load/internal/display"
	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/telemetry"
)

func TestHeadPublisherThrottlesScreen(t *testing.T) {
	cfg := config.Default()
	client := &recordingClient{}
	pub := telemetry.NewPublisher(client, 8)
	hp := newHeadPublisher(pub, display.NewCanvas(), cfg)

	t0 := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	for _, d := range []time.Duration{0, 500 * time.Millisecond, time.Second} {
		hp.onRender(head.Snapshot{At: t0.Add(d), Mode: head.Kilogram, Next: head.Kilogram})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pub.Run(ctx)

	want := []string{
		cfg.TopicSnapshot, cfg.TopicScreen,
		cfg.TopicSnapshot,
		cfg.TopicSnapshot, cfg.TopicScreen,
	}
	require.Eventually(t, func() bool { return len(client.topics()) == len(want) }, time.Second, time.Millisecond)
	assert.Equal(t, want, client.topics())

	screen, _ := client.last(cfg.TopicScreen)
	assert.Equal(t, "BM", string(screen.payload[:2]))
	assert.True(t, screen.retained)

	snap, _ := client.last(cfg.TopicSnapshot)
	var s telemetry.Snapshot
	require.NoError(t, json.Unmarshal(snap.payload, &s))
	assert.Equal(t, "kg", s.Mode)
}

func TestHeadPublisherScreenDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.ScreenPublishInterval = 0
	client := &recordingClient{}
	pub := telemetry.NewPublisher(client, 8)
	hp := newHeadPublisher(pub, display.NewCanvas(), cfg)
	hp.onRender(head.Snapshot{At: time.Now()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pub.Run(ctx)

	require.Eventually(t, func() bool { return len(client.topics()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{cfg.TopicSnapshot}, client.topics())
}

func TestChainSkipsNil(t *testing.T) {
	var calls []uint32
	hook := func(s head.Snapshot) { calls = append(calls, s.Tick) }
	chain(hook, nil, hook)(head.Snapshot{Tick: 9})
	assert.Equal(t, []uint32{9, 9}, calls)
}
