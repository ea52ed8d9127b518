// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package softspi is a bit-banged SPI responder (mode 3, MSB first, 32-bit
// transfers) for boards without a usable SPI slave peripheral. It is only
// meant for the slow 4-byte exchanges of the wheel bus.
package softspi

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/wheel_load/internal/wire"
)

// DefaultEdgeTimeout bounds each wait so Run notices cancellation.
const DefaultEdgeTimeout = 50 * time.Millisecond

// Device is what the responder serves.
type Device interface {
	OnChipSelect(level gpio.Level, at time.Time)
	Outgoing() wire.Frame
	Receive(f wire.Frame)
}

// Responder watches CS and SCK and shifts one frame per selection.
type Responder struct {
	cs   gpio.PinIn
	sck  gpio.PinIn
	mosi gpio.PinIn
	miso gpio.PinIO

	EdgeTimeout time.Duration

	// Aborted counts transfers cut short by CS going high.
	Aborted int
}

// New configures the pins. MISO starts released.
func New(cs, sck, mosi gpio.PinIn, miso gpio.PinIO) (*Responder, error) {
	if err := cs.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("softspi: cs %s: %w", cs, err)
	}
	if err := sck.In(gpio.PullUp, gpio.BothEdges); err != nil {
		return nil, fmt.Errorf("softspi: sck %s: %w", sck, err)
	}
	if err := mosi.In(gpio.Float, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("softspi: mosi %s: %w", mosi, err)
	}
	r := &Responder{
		cs:          cs,
		sck:         sck,
		mosi:        mosi,
		miso:        miso,
		EdgeTimeout: DefaultEdgeTimeout,
	}
	if err := r.Release(); err != nil {
		return nil, err
	}
	return r, nil
}

// Drive connects MISO to the bus, idling high.
func (r *Responder) Drive() error {
	if err := r.miso.Out(gpio.High); err != nil {
		return fmt.Errorf("softspi: miso drive: %w", err)
	}
	return nil
}

// Release puts MISO in high impedance.
func (r *Responder) Release() error {
	if err := r.miso.In(gpio.Float, gpio.NoEdge); err != nil {
		return fmt.Errorf("softspi: miso release: %w", err)
	}
	return nil
}

// Run serves dev until ctx is done. Every CS edge is reported to dev; a
// falling edge is followed by one 32-bit transfer.
func (r *Responder) Run(ctx context.Context, dev Device) error {
	released := true
	for ctx.Err() == nil {
		if !r.cs.WaitForEdge(r.EdgeTimeout) {
			continue
		}
		level := r.cs.Read()
		if level == gpio.High && released {
			continue
		}
		dev.OnChipSelect(level, time.Now())
		released = level == gpio.High
		if level == gpio.Low {
			released = r.transfer(ctx, dev)
		}
	}
	return ctx.Err()
}

// transfer shifts one frame while CS stays low. SCK is shared with the other
// subs, so CS is checked after every clock edge and MISO is never touched
// once it has gone high. It reports whether dev was told about the deselect.
func (r *Responder) transfer(ctx context.Context, dev Device) bool {
	sh := newShifter(dev.Outgoing())
	for !sh.done() {
		edge := r.sck.WaitForEdge(r.EdgeTimeout)
		if r.cs.Read() == gpio.High {
			r.Aborted++
			dev.OnChipSelect(gpio.High, time.Now())
			return true
		}
		if !edge {
			if ctx.Err() != nil {
				r.Aborted++
				_ = r.Release()
				return false
			}
			continue
		}
		if r.sck.Read() == gpio.Low {
			if err := r.miso.Out(sh.shiftOut()); err != nil {
				r.Aborted++
				return false
			}
		} else {
			sh.shiftIn(r.mosi.Read())
		}
	}
	dev.Receive(sh.frame())
	return false
}

// shifter is the bit-level state of one transfer. In mode 3 the responder
// presents a bit on SCK falling and samples MOSI on SCK rising.
type shifter struct {
	tx uint32
	rx uint32
	n  int
}

func newShifter(f wire.Frame) *shifter {
	return &shifter{tx: f.Uint32()}
}

func (s *shifter) shiftOut() gpio.Level {
	bit := s.tx&0x80000000 != 0
	s.tx <<= 1
	return gpio.Level(bit)
}

func (s *shifter) shiftIn(l gpio.Level) {
	s.rx <<= 1
	if l == gpio.High {
		s.rx |= 1
	}
	s.n++
}

func (s *shifter) done() bool {
	return s.n == wire.FrameSize*8
}

func (s *shifter) frame() wire.Frame {
	return wire.FrameFromUint32(s.rx)
}
