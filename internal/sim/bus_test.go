// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/wheel_load/internal/wire"
)

// responder drives the port while selected, like the sub's edge handler.
type responder struct {
	port     *Port
	out      wire.Frame
	received []wire.Frame
	edges    int
}

func (r *responder) OnChipSelect(l gpio.Level, _ time.Time) {
	r.edges++
	if l == gpio.Low {
		_ = r.port.Drive()
	} else {
		_ = r.port.Release()
	}
}

func (r *responder) Outgoing() wire.Frame { return r.out }

func (r *responder) Receive(f wire.Frame) { r.received = append(r.received, f) }

func attach(b *Bus, name string, out wire.Frame) *responder {
	p := b.NewPort(name)
	r := &responder{port: p, out: out}
	p.Attach(r)
	return r
}

func TestBusExchangesWithSelected(t *testing.T) {
	b := NewBus()
	one := attach(b, "one", wire.EncodeLoad(11))
	two := attach(b, "two", wire.EncodeLoad(22))

	require.NoError(t, two.port.Out(gpio.Low))
	assert.True(t, two.port.Driving())

	out := wire.TareFrame
	var in wire.Frame
	require.NoError(t, b.Tx(out[:], in[:]))
	require.NoError(t, two.port.Out(gpio.High))

	assert.Equal(t, wire.EncodeLoad(22), in)
	assert.Equal(t, []wire.Frame{wire.TareFrame}, two.received)
	assert.Empty(t, one.received)
	assert.Equal(t, 2, two.edges)
	assert.False(t, two.port.Driving())
}

func TestBusNobodyDriving(t *testing.T) {
	b := NewBus()
	attach(b, "one", wire.EncodeLoad(11))

	in := wire.Frame{1, 2, 3, 4}
	out := wire.IdleFrame
	require.NoError(t, b.Tx(out[:], in[:]))
	assert.True(t, in.IsZero())
}

func TestBusContention(t *testing.T) {
	b := NewBus()
	one := attach(b, "one", wire.EncodeLoad(11))
	two := attach(b, "two", wire.EncodeLoad(22))
	_ = one.port.Drive()
	_ = two.port.Drive()

	var in wire.Frame
	out := wire.IdleFrame
	assert.ErrorIs(t, b.Tx(out[:], in[:]), ErrBusContention)
}

func TestBusRepeatedLevelIsNotAnEdge(t *testing.T) {
	b := NewBus()
	one := attach(b, "one", wire.Frame{})
	_ = one.port.Out(gpio.High)
	assert.Zero(t, one.edges)
}

func TestBusRejectsShortTransfers(t *testing.T) {
	b := NewBus()
	assert.Error(t, b.Tx([]byte{1}, make([]byte, 1)))
}
