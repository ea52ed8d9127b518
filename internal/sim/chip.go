// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sim runs the wheel bus without hardware: emulated ADCs, a shared
// in-process bus and scripted loads.
package sim

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/wheel_load/internal/hx71708"
)

// Chip emulates one HX71708 on its SCK and DOUT lines. Pass it as both the
// clock and the data pin of an hx71708.Sampler.
type Chip struct {
	mu sync.Mutex

	// Period is the conversion time. Zero means a new conversion is ready
	// as soon as the previous one was read.
	Period time.Duration
	now    func() time.Time

	raw     int32
	word    uint32
	sck     gpio.Level
	pulses  int
	readyAt time.Time
}

func NewChip(period time.Duration) *Chip {
	c := &Chip{Period: period, now: time.Now}
	c.latch()
	return c
}

// SetRaw sets the value of the next conversion, clamped to 24 bits.
func (c *Chip) SetRaw(v int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v > 0x7FFFFF {
		v = 0x7FFFFF
	}
	if v < -0x800000 {
		v = -0x800000
	}
	c.raw = v
	if c.pulses == 0 {
		c.word = uint32(v) & 0xFFFFFF
	}
}

func (c *Chip) Raw() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raw
}

func (c *Chip) latch() {
	c.word = uint32(c.raw) & 0xFFFFFF
	c.readyAt = c.now().Add(c.Period)
}

// Out drives SCK. A rising edge shifts the next bit; the falling edge of the
// last pulse starts a new conversion.
func (c *Chip) Out(l gpio.Level) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l == gpio.High && c.sck == gpio.Low {
		c.pulses++
	}
	if l == gpio.Low && c.sck == gpio.High && c.pulses >= hx71708.Pulses {
		c.pulses = 0
		c.latch()
	}
	c.sck = l
	return nil
}

// Read is DOUT: a data bit while shifting, otherwise low once a
// conversion is ready.
func (c *Chip) Read() gpio.Level {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.pulses > 0 && c.pulses <= hx71708.DataBits:
		return gpio.Level((c.word>>(hx71708.DataBits-c.pulses))&1 == 1)
	case c.pulses > hx71708.DataBits:
		return gpio.High
	default:
		return gpio.Level(c.now().Before(c.readyAt))
	}
}
