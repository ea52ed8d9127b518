// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/wheel_load/internal/wire"
)

var ErrBusContention = errors.New("sim: more than one device driving the bus")

// Device is a bus responder, such as sub.Controller.
type Device interface {
	OnChipSelect(level gpio.Level, at time.Time)
	Outgoing() wire.Frame
	Receive(f wire.Frame)
}

// Bus is a shared 4-byte bus with one chip-select line per port. It
// satisfies head.Transferer.
type Bus struct {
	mu    sync.Mutex
	ports []*Port
	txs   int
}

func NewBus() *Bus {
	return &Bus{}
}

// Port is one responder's connection. Its Out is the chip-select line seen
// by the controller; Drive and Release are the responder's transmit line.
type Port struct {
	bus     *Bus
	name    string
	dev     Device
	cs      gpio.Level
	driving bool
}

// NewPort adds a deselected port. Attach the device once it exists.
func (b *Bus) NewPort(name string) *Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := &Port{bus: b, name: name, cs: gpio.High}
	b.ports = append(b.ports, p)
	return p
}

func (p *Port) Attach(dev Device) {
	p.bus.mu.Lock()
	p.dev = dev
	p.bus.mu.Unlock()
}

func (p *Port) String() string { return p.name }

// Out sets the chip-select level and runs the device's edge handler.
func (p *Port) Out(l gpio.Level) error {
	p.bus.mu.Lock()
	changed := p.cs != l
	p.cs = l
	dev := p.dev
	p.bus.mu.Unlock()

	if changed && dev != nil {
		dev.OnChipSelect(l, time.Now())
	}
	return nil
}

func (p *Port) Drive() error {
	p.bus.mu.Lock()
	p.driving = true
	p.bus.mu.Unlock()
	return nil
}

func (p *Port) Release() error {
	p.bus.mu.Lock()
	p.driving = false
	p.bus.mu.Unlock()
	return nil
}

// Driving reports whether the port holds the transmit line.
func (p *Port) Driving() bool {
	p.bus.mu.Lock()
	defer p.bus.mu.Unlock()
	return p.driving
}

// Tx shifts w to every selected device and reads back the frame of the one
// driving device. With nobody driving the line reads all zeros.
func (b *Bus) Tx(w, r []byte) error {
	if len(w) != wire.FrameSize || len(r) != wire.FrameSize {
		return fmt.Errorf("sim: transfer of %d/%d bytes, want %d", len(w), len(r), wire.FrameSize)
	}

	b.mu.Lock()
	var selected []Device
	var driver Device
	drivers := 0
	for _, p := range b.ports {
		if p.cs == gpio.Low && p.dev != nil {
			selected = append(selected, p.dev)
		}
		if p.driving {
			driver = p.dev
			drivers++
		}
	}
	b.txs++
	b.mu.Unlock()

	if drivers > 1 {
		return ErrBusContention
	}

	var in wire.Frame
	if driver != nil {
		in = driver.Outgoing()
	}
	copy(r, in[:])

	var out wire.Frame
	copy(out[:], w)
	for _, d := range selected {
		d.Receive(out)
	}
	return nil
}

// Transfers counts Tx calls.
func (b *Bus) Transfers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.txs
}
