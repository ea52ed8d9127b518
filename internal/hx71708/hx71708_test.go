// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hx71708

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
)

// fakeChip shifts out queued 24-bit words on SCK the way the HX71708 does.
type fakeChip struct {
	words  []uint32
	sck    gpio.Level
	pulses int
	busy   bool
	failAt int // fail the Nth Out call when > 0
	outs   int
}

func (f *fakeChip) Out(l gpio.Level) error {
	f.outs++
	if f.failAt > 0 && f.outs == f.failAt {
		return errors.New("pin gone")
	}
	if l == gpio.High && f.sck == gpio.Low {
		f.pulses++
	}
	if l == gpio.Low && f.pulses == Pulses {
		f.pulses = 0
		if len(f.words) > 0 {
			f.words = f.words[1:]
		}
	}
	f.sck = l
	return nil
}

func (f *fakeChip) Read() gpio.Level {
	if f.pulses == 0 || f.pulses > DataBits {
		if f.busy {
			return gpio.High
		}
		return gpio.Low
	}
	if len(f.words) == 0 {
		return gpio.Low
	}
	return gpio.Level((f.words[0]>>(DataBits-f.pulses))&1 == 1)
}

func newFake(words ...uint32) (*fakeChip, *Sampler) {
	f := &fakeChip{words: words}
	return f, New("hx1", f, f, &Opts{})
}

func TestDecode24(t *testing.T) {
	tests := []struct {
		word uint32
		want int32
	}{
		{0x000000, 0},
		{0x000001, 1},
		{0x7FFFFF, 0x7FFFFF},
		{0x800000, -0x800000},
		{0xFFFFFF, -1},
		{0xFFFF00, -256},
		{0x1000005, 5}, // bits above 23 are ignored
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decode24(tt.word), "word=%#x", tt.word)
	}
}

func TestDecode24Property(t *testing.T) {
	for word := uint32(0); word < 1<<24; word += 4099 {
		want := int64(word)
		if word >= 1<<23 {
			want -= 1 << 24
		}
		require.Equal(t, want, int64(Decode24(word)))
	}
}

func TestAcquireClocksTwentyFivePulses(t *testing.T) {
	f, s := newFake(0x123456)
	_, err := s.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 2*Pulses, f.outs)
	assert.Equal(t, gpio.Low, f.sck)
}

func TestWarmupAndSmoothing(t *testing.T) {
	// 10, 20, 31 establish offset (61/3 = 20)
	_, s := newFake(10, 20, 31, 50, 80, 110, 140)

	for i := 0; i < OffsetSamples; i++ {
		v, err := s.Acquire()
		require.NoError(t, err)
		assert.Equal(t, int32(0), v, "warm-up sample %d", i)
	}
	assert.True(t, s.Warm())
	assert.Equal(t, int32(20), s.Offset())

	// history starts empty: (50+0+0)/3 - 20 = -4
	want := []int32{
		50/3 - 20,
		(50+80)/3 - 20,
		(50+80+110)/3 - 20,
		(80+110+140)/3 - 20,
	}
	for i, w := range want {
		v, err := s.Acquire()
		require.NoError(t, err)
		assert.Equal(t, w, v, "steady sample %d", i)
	}
	assert.Equal(t, want[len(want)-1], s.Output())
}

func TestNegativeSamples(t *testing.T) {
	// -3 three times is a baseline of -3
	_, s := newFake(0xFFFFFD, 0xFFFFFD, 0xFFFFFD, 0xFFFFF4)
	for i := 0; i < OffsetSamples; i++ {
		_, err := s.Acquire()
		require.NoError(t, err)
	}
	assert.Equal(t, int32(-3), s.Offset())
	v, err := s.Acquire()
	require.NoError(t, err)
	assert.Equal(t, int32(-12/3+3), v)
}

func TestResetOffsetRestartsWarmup(t *testing.T) {
	_, s := newFake(3, 3, 3, 9, 30, 30, 30, 40)
	for i := 0; i < 4; i++ {
		_, err := s.Acquire()
		require.NoError(t, err)
	}
	require.True(t, s.Warm())

	s.ResetOffset()
	assert.False(t, s.Warm())
	assert.Equal(t, int32(0), s.Offset())
	assert.Equal(t, 0, s.OffsetCount())

	for i := 0; i < OffsetSamples; i++ {
		v, err := s.Acquire()
		require.NoError(t, err)
		assert.Equal(t, int32(0), v)
	}
	assert.Equal(t, int32(30), s.Offset())

	// history keeps the pre-tare sample 9: (9+40+0)/3 - 30
	v, err := s.Acquire()
	require.NoError(t, err)
	assert.Equal(t, int32((9+40)/3-30), v)
}

func TestAcquirePinError(t *testing.T) {
	f, s := newFake(1)
	f.failAt = 3
	_, err := s.Acquire()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hx1")
}

func TestStatsInterval(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	f := &fakeChip{words: []uint32{1, 1, 1, 1, 1}}
	s := New("hx1", f, f, &Opts{Clock: func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * 100 * time.Millisecond)
	}})
	for i := 0; i < 5; i++ {
		_, err := s.Acquire()
		require.NoError(t, err)
	}
	st := s.Stats()
	assert.Equal(t, 100*time.Millisecond, st.Interval)
	assert.Equal(t, base.Add(200*time.Millisecond), st.Now)
}

func TestPairReady(t *testing.T) {
	a := &fakeChip{words: []uint32{1}}
	b := &fakeChip{words: []uint32{1}, busy: true}
	p := &Pair{A: New("a", a, a, nil), B: New("b", b, b, nil)}
	assert.False(t, p.Ready())
	b.busy = false
	assert.True(t, p.Ready())
}

func TestPairTare(t *testing.T) {
	a := &fakeChip{words: []uint32{5, 5, 5, 5, 5, 5, 5, 5}}
	b := &fakeChip{words: []uint32{7, 7, 7, 7, 7, 7, 7, 7}}
	p := &Pair{A: New("a", a, a, nil), B: New("b", b, b, nil)}
	for i := 0; i < 4; i++ {
		_, _, err := p.Acquire()
		require.NoError(t, err)
	}
	require.True(t, p.A.Warm())
	require.True(t, p.B.Warm())

	p.ResetOffsets()
	for i := 0; i < OffsetSamples; i++ {
		x, y, err := p.Acquire()
		require.NoError(t, err)
		assert.Zero(t, x)
		assert.Zero(t, y)
	}
	assert.Equal(t, int32(5), p.A.Offset())
	assert.Equal(t, int32(7), p.B.Offset())
}

func TestReset(t *testing.T) {
	a := &gpiotest.Pin{N: "SCK1"}
	b := &gpiotest.Pin{N: "SCK2"}
	var slept []time.Duration
	err := Reset(func(d time.Duration) {
		// lines are high during the pulse and low while settling
		want := gpio.High
		if len(slept) > 0 {
			want = gpio.Low
		}
		assert.Equal(t, want, a.Read())
		assert.Equal(t, want, b.Read())
		slept = append(slept, d)
	}, a, b)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{ResetPulse, ResetSettle}, slept)
}
