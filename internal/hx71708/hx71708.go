// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package hx71708 reads the HX71708 24-bit load-cell ADC by bit-banging its
// two-wire interface, and keeps the per-channel warm-up offset and smoothing
// history.
package hx71708

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
)

const (
	// OffsetSamples acquisitions after a reset or tare are averaged into the
	// baseline and reported as 0.
	OffsetSamples = 3
	// HistorySize is the length of the moving average window.
	HistorySize = 3

	// DataBits are clocked out MSB first, followed by one configuration pulse.
	DataBits = 24
	Pulses   = DataBits + 1

	ResetPulse  = 200 * time.Microsecond
	ResetSettle = 400 * time.Millisecond
)

// ClockPin drives SCK. Any periph gpio.PinOut satisfies it.
type ClockPin interface {
	Out(l gpio.Level) error
}

// DataPin reads DOUT. Any periph gpio.PinIn satisfies it.
type DataPin interface {
	Read() gpio.Level
}

// Stats is timing metadata for diagnostics.
type Stats struct {
	Now      time.Time
	Last     time.Time
	Interval time.Duration
}

// Opts tunes a Sampler.
type Opts struct {
	// PulseDelay is how long the 25th clock pulse is held high.
	PulseDelay time.Duration
	// Clock returns the current time for Stats. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultOpts is used when New is passed nil.
var DefaultOpts = Opts{
	PulseDelay: time.Microsecond,
}

// Sampler is one ADC channel.
type Sampler struct {
	name  string
	sck   ClockPin
	dout  DataPin
	delay time.Duration
	clock func() time.Time

	offset       int32
	offsetCount  int
	history      [HistorySize]int32
	historyIndex int
	output       int32
	stats        Stats
}

// New returns a Sampler reading dout while clocking sck.
func New(name string, sck ClockPin, dout DataPin, opts *Opts) *Sampler {
	if opts == nil {
		opts = &DefaultOpts
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Sampler{
		name:  name,
		sck:   sck,
		dout:  dout,
		delay: opts.PulseDelay,
		clock: clock,
	}
}

func (s *Sampler) String() string {
	return s.name
}

// Ready reports whether a conversion is waiting (DOUT low).
func (s *Sampler) Ready() bool {
	return s.dout.Read() == gpio.Low
}

// Decode24 sign-extends a 24-bit two's-complement word.
func Decode24(word uint32) int32 {
	word &= 0xFFFFFF
	if word > 0x7FFFFF {
		return int32(word) - 0x1000000
	}
	return int32(word)
}

// Acquire clocks one conversion out of the chip and feeds it through the
// offset and smoothing state. It returns 0 during warm-up.
func (s *Sampler) Acquire() (int32, error) {
	word, err := s.readWord()
	if err != nil {
		return 0, err
	}
	return s.feed(Decode24(word)), nil
}

func (s *Sampler) readWord() (uint32, error) {
	var word uint32
	for i := 0; i < Pulses; i++ {
		if err := s.sck.Out(gpio.High); err != nil {
			return 0, fmt.Errorf("%s: sck high: %w", s.name, err)
		}
		if i < DataBits {
			word <<= 1
			if s.dout.Read() == gpio.High {
				word |= 1
			}
		} else {
			spin(s.delay)
		}
		if err := s.sck.Out(gpio.Low); err != nil {
			return 0, fmt.Errorf("%s: sck low: %w", s.name, err)
		}
	}
	return word, nil
}

func (s *Sampler) feed(raw int32) int32 {
	if s.offsetCount < OffsetSamples {
		s.offset += raw
		s.offsetCount++
		if s.offsetCount == OffsetSamples {
			s.offset /= OffsetSamples
		}
		return 0
	}

	s.history[s.historyIndex] = raw
	s.historyIndex = (s.historyIndex + 1) % HistorySize

	var sum int32
	for _, v := range s.history {
		sum += v
	}
	s.output = sum/HistorySize - s.offset

	now := s.clock()
	s.stats.Now = now
	if !s.stats.Last.IsZero() {
		s.stats.Interval = now.Sub(s.stats.Last)
	}
	s.stats.Last = now

	return s.output
}

// ResetOffset restarts the warm-up window. The history ring is left alone.
func (s *Sampler) ResetOffset() {
	s.offset = 0
	s.offsetCount = 0
}

// Warm reports whether the baseline has been established.
func (s *Sampler) Warm() bool {
	return s.offsetCount >= OffsetSamples
}

func (s *Sampler) Offset() int32 { return s.offset }

func (s *Sampler) OffsetCount() int { return s.offsetCount }

// Output is the last smoothed, offset-corrected reading.
func (s *Sampler) Output() int32 { return s.output }

func (s *Sampler) Stats() Stats { return s.stats }

// Reset holds every clock line high for ResetPulse, which powers the chips
// down, then drives them low and waits ResetSettle for the first conversion.
func Reset(sleep func(time.Duration), clocks ...ClockPin) error {
	if sleep == nil {
		sleep = time.Sleep
	}
	for _, c := range clocks {
		if err := c.Out(gpio.High); err != nil {
			return fmt.Errorf("hx71708 reset: %w", err)
		}
	}
	sleep(ResetPulse)
	for _, c := range clocks {
		if err := c.Out(gpio.Low); err != nil {
			return fmt.Errorf("hx71708 reset: %w", err)
		}
	}
	sleep(ResetSettle)
	return nil
}

// spin busy-waits; a scheduler sleep would hold SCK high far too long.
func spin(d time.Duration) {
	if d <= 0 {
		return
	}
	start := time.Now()
	for time.Since(start) < d {
	}
}
