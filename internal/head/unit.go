// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

import (
	"context"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/wheel_load/internal/wire"
)

// Schedule of the millisecond loop. Every action runs on the tick where
// now%period equals its phase.
const (
	ButtonPeriod = 100
	WindowPeriod = 200

	phaseTare   = 0
	phaseRender = 9
)

// readPhase maps a window phase to the sub polled on it.
var readPhase = map[uint32]int{1: 0, 3: 1, 5: 2, 7: 3}

// ButtonPin is the raw push-button line.
type ButtonPin interface {
	Read() gpio.Level
}

// Snapshot is the unit state after a render phase.
type Snapshot struct {
	At        time.Time
	Tick      uint32
	Mode      Mode
	Next      Mode
	Switching bool
	Readings  [NumSubs]Reading
	Lines     [NumSubs]string
	Command   wire.Frame
	Tare      TareFlag
}

type request uint8

const (
	requestTare request = iota
	requestMode
)

// Unit is the whole head state, driven by one cooperative loop.
type Unit struct {
	client *Client
	btnPin ButtonPin
	button *Button
	modes  ModeMachine
	screen *Screen

	lines    [NumSubs]string
	requests chan request

	last    uint32
	started bool

	// OnRender is called from the loop after every render phase.
	OnRender func(Snapshot)
}

// NewUnit draws the boot screen. btn may be nil when the unit is only
// driven remotely.
func NewUnit(client *Client, btn ButtonPin, screen *Screen) (*Unit, error) {
	u := &Unit{
		client:   client,
		btnPin:   btn,
		screen:   screen,
		requests: make(chan request, 8),
	}
	if btn != nil {
		u.button = NewButton(btn.Read())
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	return u, nil
}

// Tick runs the actions scheduled for millisecond now. Repeated calls with
// the same now do nothing.
func (u *Unit) Tick(now uint32) {
	if u.started && now == u.last {
		return
	}
	u.started = true
	u.last = now

	if now%ButtonPeriod == 0 {
		u.scan()
	}

	phase := now % WindowPeriod
	switch {
	case phase == phaseTare:
		u.client.TickTare()
	case phase == phaseRender:
		u.render(now)
	default:
		if i, ok := readPhase[phase]; ok {
			if _, err := u.client.ReadSub(i); err != nil {
				log.Printf("head: %v", err)
			}
		}
	}
}

func (u *Unit) scan() {
	if u.button != nil {
		switch u.button.Scan(u.btnPin.Read()) {
		case ButtonModeAdvance:
			u.modes.Request()
		case ButtonTareArm:
			log.Printf("head: tare armed from button")
			u.client.Tare()
		}
	}
	for {
		select {
		case r := <-u.requests:
			if r == requestTare {
				log.Printf("head: tare armed remotely")
				u.client.Tare()
			} else {
				u.modes.Request()
			}
		default:
			return
		}
	}
}

func (u *Unit) render(now uint32) {
	readings := u.client.Readings()
	if u.modes.Step(u.screen) {
		u.lines = Lines(u.modes.Now(), readings)
		u.screen.Values(u.lines)
	}
	if err := u.screen.Flush(); err != nil {
		log.Printf("head: display: %v", err)
	}
	if u.OnRender != nil {
		u.OnRender(u.snapshot(now, readings))
	}
}

func (u *Unit) snapshot(now uint32, readings [NumSubs]Reading) Snapshot {
	return Snapshot{
		At:        time.Now(),
		Tick:      now,
		Mode:      u.modes.Now(),
		Next:      u.modes.Next(),
		Switching: u.modes.Switching(),
		Readings:  readings,
		Lines:     u.lines,
		Command:   u.client.Command(),
		Tare:      u.client.TareState(),
	}
}

// RequestTare arms a tare at the next button scan. Safe from any goroutine.
func (u *Unit) RequestTare() { u.post(requestTare) }

// RequestModeAdvance acts like a short button press at the next scan.
func (u *Unit) RequestModeAdvance() { u.post(requestMode) }

func (u *Unit) post(r request) {
	select {
	case u.requests <- r:
	default:
		log.Printf("head: request queue full, dropped")
	}
}

// Modes exposes the mode state, for tests and telemetry.
func (u *Unit) Modes() *ModeMachine { return &u.modes }

// Run drives Tick from a 1 ms ticker until ctx is done. A tick that lands
// late skips the phases it missed.
func (u *Unit) Run(ctx context.Context) error {
	start := time.Now()
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	log.Println("head: scheduler started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-ticker.C:
			u.Tick(uint32(t.Sub(start) / time.Millisecond))
		}
	}
}
