// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sub is the per-wheel unit: it combines the two ADC channels,
// applies the stored calibration and answers the head unit's polls.
package sub

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/wheel_load/internal/hx71708"
	"github.com/relabs-tech/wheel_load/internal/wire"
)

// TxLine switches the transmit (MISO) line between driving the bus and
// high impedance.
type TxLine interface {
	Drive() error
	Release() error
}

// Pin is an output such as the status LED.
type Pin interface {
	Out(l gpio.Level) error
}

// Combine sums both channels and applies the scaled calibration. The
// product is taken in 64 bits so loads past 80 kg at factor 1.000 do not
// wrap. The result is inverted only when it is framed.
func Combine(a, b, scaled int32) int32 {
	return int32(int64(a+b) * int64(scaled) / 1000)
}

// Diagnostics is a snapshot for the console and telemetry.
type Diagnostics struct {
	A, B             int32
	OffsetA, OffsetB int32
	IntervalA        time.Duration
	IntervalB        time.Duration
	SelectWindow     time.Duration
	Calibration      Calibration
	LastReceived     wire.Frame
	Outgoing         wire.Frame
	TxFaults         uint32
}

// Controller owns the ADC pair and the bus buffers.
//
// Poll, the console and calibration changes run on the sub's main loop.
// Receive, Outgoing and OnChipSelect are called from the bus side at any
// time and only touch atomics.
type Controller struct {
	pair  *hx71708.Pair
	store BlobStore
	tx    TxLine
	led   Pin
	ledOn bool

	calib  Calibration
	scaled int32
	lastA  int32
	lastB  int32

	// irq is held by the chip-select handler and by calibration writes.
	irq sync.Mutex

	out          atomic.Uint32
	in           atomic.Uint32
	pending      atomic.Bool
	selectedAt   atomic.Int64
	deselectedAt atomic.Int64
	txFaults     atomic.Uint32
}

// New loads the calibration from store and returns a controller whose
// outgoing frame reads "not ready" until the first acquisition. tx and led
// may be nil.
func New(pair *hx71708.Pair, store BlobStore, tx TxLine, led Pin) (*Controller, error) {
	c := &Controller{
		pair:  pair,
		store: store,
		tx:    tx,
		led:   led,
	}
	if err := c.ReloadCalibration(); err != nil {
		return nil, err
	}
	if led != nil {
		if err := led.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("sub: led: %w", err)
		}
	}
	return c, nil
}

// Poll is one pass of the main loop: act on the last received command, then
// take a sample if both ADCs are ready. It reports whether a sample was taken.
func (c *Controller) Poll() (bool, error) {
	if c.pending.Swap(false) {
		if cmd, ok := wire.ParseCommand(wire.FrameFromUint32(c.in.Load())); ok && cmd == wire.CommandTare {
			c.pair.ResetOffsets()
			log.Printf("sub: tare received, re-establishing baseline")
		}
	}

	if !c.pair.Ready() {
		return false, nil
	}
	a, b, err := c.pair.Acquire()
	if err != nil {
		return false, fmt.Errorf("sub: acquire: %w", err)
	}
	c.lastA, c.lastB = a, b
	c.toggleLED()

	c.out.Store(wire.EncodeLoad(Combine(a, b, c.scaled)).Uint32())
	return true, nil
}

func (c *Controller) toggleLED() {
	if c.led == nil {
		return
	}
	c.ledOn = !c.ledOn
	if err := c.led.Out(gpio.Level(c.ledOn)); err != nil {
		log.Printf("sub: led: %v", err)
	}
}

// Outgoing is the frame the bus shifts out on the next poll. It may be one
// sample stale.
func (c *Controller) Outgoing() wire.Frame {
	return wire.FrameFromUint32(c.out.Load())
}

// Receive stores the frame shifted in by the last transaction. It is parsed
// once, on the next Poll.
func (c *Controller) Receive(f wire.Frame) {
	c.in.Store(f.Uint32())
	c.pending.Store(true)
}

// OnChipSelect is the chip-select edge handler. Selected (low) connects the
// transmit line to the bus, deselected releases it so the other subs can
// drive the shared line.
func (c *Controller) OnChipSelect(level gpio.Level, at time.Time) {
	c.irq.Lock()
	defer c.irq.Unlock()

	if level == gpio.Low {
		if c.tx != nil && c.tx.Drive() != nil {
			c.txFaults.Add(1)
		}
		c.selectedAt.Store(at.UnixNano())
		return
	}
	if c.tx != nil && c.tx.Release() != nil {
		c.txFaults.Add(1)
	}
	c.deselectedAt.Store(at.UnixNano())
}

// SelectWindow is the time between the last select and deselect edges.
func (c *Controller) SelectWindow() time.Duration {
	return time.Duration(c.deselectedAt.Load() - c.selectedAt.Load())
}

func (c *Controller) Calibration() Calibration {
	return c.calib
}

// SetCalibration persists cal and starts using it. Chip-select handling is
// held off for the duration of the write.
func (c *Controller) SetCalibration(cal Calibration) error {
	if !cal.Valid() {
		return ErrInvalidCalibration
	}

	c.irq.Lock()
	log.Printf("sub: programming calibration record")
	err := SaveCalibration(c.store, cal)
	c.irq.Unlock()
	if err != nil {
		return err
	}
	log.Printf("sub: calibration %s stored", cal)

	c.apply(cal)
	return nil
}

// ReloadCalibration re-reads the stored record.
func (c *Controller) ReloadCalibration() error {
	c.irq.Lock()
	cal, err := LoadCalibration(c.store)
	c.irq.Unlock()
	if err != nil {
		return err
	}
	c.apply(cal)
	return nil
}

func (c *Controller) apply(cal Calibration) {
	c.calib = cal
	c.scaled = cal.Scaled()
}

// Diagnostics must be called from the main loop.
func (c *Controller) Diagnostics() Diagnostics {
	return Diagnostics{
		A:            c.lastA,
		B:            c.lastB,
		OffsetA:      c.pair.A.Offset(),
		OffsetB:      c.pair.B.Offset(),
		IntervalA:    c.pair.A.Stats().Interval,
		IntervalB:    c.pair.B.Stats().Interval,
		SelectWindow: c.SelectWindow(),
		Calibration:  c.calib,
		LastReceived: wire.FrameFromUint32(c.in.Load()),
		Outgoing:     c.Outgoing(),
		TxFaults:     c.txFaults.Load(),
	}
}
