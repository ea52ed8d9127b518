// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

import (
	"errors"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/wheel_load/internal/wire"
)

// NumSubs is the number of wheels polled, in FL, FR, RL, RR order.
const NumSubs = 4

// Wheel positions, used by the cross split.
const (
	FrontLeft = iota
	FrontRight
	RearLeft
	RearRight
)

const (
	// KGCalibFactor converts a decoded sub value to kilograms.
	KGCalibFactor = 26700.0

	OORMax = 240.0
	OORMin = -100.0

	// DefaultSettle is held after asserting and before releasing chip select.
	DefaultSettle = 100 * time.Microsecond
)

var ErrBadSubIndex = errors.New("head: sub index out of range")

// Transferer is a full-duplex bus. periph spi.Conn satisfies it.
type Transferer interface {
	Tx(w, r []byte) error
}

// Pin is a chip-select or LED output.
type Pin interface {
	Out(l gpio.Level) error
}

// Reading is the last known state of one wheel.
type Reading struct {
	Value      float64
	OutOfRange bool
	// Seen is set once the sub has answered with a real sample.
	Seen bool
}

// Decode converts a received frame to kilograms. It reports false for the
// all-zero "not ready" frame.
func Decode(f wire.Frame) (float64, bool) {
	v, ok := wire.DecodeLoad(f)
	if !ok {
		return 0, false
	}
	return float64(v) / KGCalibFactor, true
}

// ApplyRange zeroes implausible values and flags them out of range.
func (r *Reading) ApplyRange() {
	if r.Value > OORMax || r.Value < OORMin {
		r.Value = 0
		r.OutOfRange = true
	}
}

// Client polls the subs over the shared bus. Every poll also carries the
// current command frame, so a tare reaches all four subs within one window.
type Client struct {
	bus Transferer
	cs  [NumSubs]Pin
	led [NumSubs]Pin

	ledOn    [NumSubs]bool
	readings [NumSubs]Reading
	cmd      wire.Frame
	tare     TareFlag

	Settle time.Duration
	sleep  func(time.Duration)
}

// NewClient deselects every sub and turns the LEDs off. LED pins may be nil.
func NewClient(bus Transferer, cs, led [NumSubs]Pin) (*Client, error) {
	c := &Client{
		bus:    bus,
		cs:     cs,
		led:    led,
		cmd:    wire.IdleFrame,
		Settle: DefaultSettle,
		sleep:  time.Sleep,
	}
	for i := range cs {
		if cs[i] == nil {
			return nil, fmt.Errorf("head: chip select %d not set", i)
		}
		if err := cs[i].Out(gpio.High); err != nil {
			return nil, fmt.Errorf("head: cs%d: %w", i, err)
		}
		if led[i] != nil {
			if err := led[i].Out(gpio.Low); err != nil {
				return nil, fmt.Errorf("head: led%d: %w", i, err)
			}
		}
	}
	return c, nil
}

// ReadSub runs one exchange with sub i and updates its reading. A "not
// ready" answer turns the wheel LED off and keeps the previous value. A
// failed transfer leaves the reading untouched.
func (c *Client) ReadSub(i int) (Reading, error) {
	if i < 0 || i >= NumSubs {
		return Reading{}, ErrBadSubIndex
	}

	in, err := c.exchange(i)
	if err != nil {
		return c.readings[i], err
	}

	r := &c.readings[i]
	if v, ok := Decode(in); ok {
		c.setLED(i, !c.ledOn[i])
		r.Value = v
		r.OutOfRange = false
		r.Seen = true
	} else {
		c.setLED(i, false)
	}
	r.ApplyRange()
	return *r, nil
}

func (c *Client) exchange(i int) (wire.Frame, error) {
	var in wire.Frame
	if err := c.cs[i].Out(gpio.Low); err != nil {
		return in, fmt.Errorf("head: cs%d: %w", i, err)
	}
	c.sleep(c.Settle)

	out := c.cmd
	txErr := c.bus.Tx(out[:], in[:])

	c.sleep(c.Settle)
	if err := c.cs[i].Out(gpio.High); err != nil {
		return in, fmt.Errorf("head: cs%d: %w", i, err)
	}
	if txErr != nil {
		return in, fmt.Errorf("head: sub %d: %w", i, txErr)
	}
	return in, nil
}

func (c *Client) setLED(i int, on bool) {
	c.ledOn[i] = on
	if c.led[i] != nil {
		if err := c.led[i].Out(gpio.Level(on)); err != nil {
			log.Printf("head: led%d: %v", i, err)
		}
	}
}

// Tare arms a tare broadcast for the next window.
func (c *Client) Tare() { c.tare.Arm() }

// TickTare runs at the start of each 200 ms window.
func (c *Client) TickTare() { c.tare.Advance(&c.cmd) }

// Command is the frame sent with every poll.
func (c *Client) Command() wire.Frame { return c.cmd }

func (c *Client) TareState() TareFlag { return c.tare }

func (c *Client) Readings() [NumSubs]Reading { return c.readings }

// SetSleep replaces the settle delay, mostly for tests and simulation.
func (c *Client) SetSleep(sleep func(time.Duration)) {
	c.sleep = sleep
}
