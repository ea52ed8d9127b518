// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/wheel_load/internal/wire"
)

// recordSurface keeps the last text drawn at each position and a log of
// every drawing call.
type recordSurface struct {
	texts   map[[2]int]string
	ops     []string
	flushes int
}

func newRecordSurface() *recordSurface {
	return &recordSurface{texts: map[[2]int]string{}}
}

func (s *recordSurface) Fill(c Color) {
	s.ops = append(s.ops, fmt.Sprintf("fill %d", c))
}

func (s *recordSurface) DrawText(x, y int, str string, fg, bg Color, scale int) {
	s.texts[[2]int{x, y}] = str
	s.ops = append(s.ops, fmt.Sprintf("text %d,%d %q x%d", x, y, str, scale))
}

func (s *recordSurface) FillRect(x, y, w, h int, c Color) {
	s.ops = append(s.ops, fmt.Sprintf("fillrect %d,%d %dx%d %d", x, y, w, h, c))
}

func (s *recordSurface) DrawRect(x, y, w, h int, c Color) {
	s.ops = append(s.ops, fmt.Sprintf("rect %d,%d %dx%d %d", x, y, w, h, c))
}

func (s *recordSurface) HLine(x, y, w int, c Color) {
	s.ops = append(s.ops, fmt.Sprintf("hline %d,%d %d %d", x, y, w, c))
}

func (s *recordSurface) VLine(x, y, h int, c Color) {
	s.ops = append(s.ops, fmt.Sprintf("vline %d,%d %d %d", x, y, h, c))
}

func (s *recordSurface) Flush() error {
	s.flushes++
	return nil
}

func (s *recordSurface) value(row int) string {
	return s.texts[[2]int{valueX, RowY[row]}]
}

func (s *recordSurface) label(row int) string {
	return s.texts[[2]int{labelX, RowY[row]}]
}

// fakeBus answers with the frame of whichever sub is selected.
type fakeBus struct {
	cs       [NumSubs]*gpiotest.Pin
	answers  [NumSubs]wire.Frame
	writes   []wire.Frame
	selected []int
	fail     bool
}

func (b *fakeBus) Tx(w, r []byte) error {
	if b.fail {
		return errors.New("bus fault")
	}
	sel := -1
	for i, p := range b.cs {
		if p.Read() == gpio.Low {
			if sel >= 0 {
				return errors.New("two subs selected")
			}
			sel = i
		}
	}
	if sel < 0 {
		return errors.New("no sub selected")
	}
	var f wire.Frame
	copy(f[:], w)
	b.writes = append(b.writes, f)
	b.selected = append(b.selected, sel)
	copy(r, b.answers[sel][:])
	return nil
}

func kg(v float64) wire.Frame {
	return wire.EncodeLoad(int32(v * KGCalibFactor))
}

type headRig struct {
	bus    *fakeBus
	leds   [NumSubs]*gpiotest.Pin
	btn    *gpiotest.Pin
	surf   *recordSurface
	client *Client
	unit   *Unit
	snaps  []Snapshot
	now    uint32
}

func newHeadRig(t *testing.T) *headRig {
	t.Helper()
	r := &headRig{
		bus:  &fakeBus{},
		btn:  &gpiotest.Pin{N: "BTN", L: gpio.High},
		surf: newRecordSurface(),
	}
	var cs, leds [NumSubs]Pin
	for i := 0; i < NumSubs; i++ {
		r.bus.cs[i] = &gpiotest.Pin{N: fmt.Sprintf("CS%d", i)}
		r.leds[i] = &gpiotest.Pin{N: fmt.Sprintf("LED%d", i)}
		cs[i] = r.bus.cs[i]
		leds[i] = r.leds[i]
	}
	client, err := NewClient(r.bus, cs, leds)
	require.NoError(t, err)
	client.SetSleep(func(time.Duration) {})
	r.client = client

	u, err := NewUnit(client, r.btn, NewScreen(r.surf))
	require.NoError(t, err)
	u.OnRender = func(s Snapshot) { r.snaps = append(r.snaps, s) }
	r.unit = u
	return r
}

// runTo ticks every millisecond up to and including end.
func (r *headRig) runTo(end uint32) {
	for ; r.now <= end; r.now++ {
		r.unit.Tick(r.now)
	}
}

func (r *headRig) setLoads(v ...float64) {
	for i := range v {
		r.bus.answers[i] = kg(v[i])
	}
}
