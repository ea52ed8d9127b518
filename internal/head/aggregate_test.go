// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func readings(v ...float64) [NumSubs]Reading {
	var rs [NumSubs]Reading
	for i := range v {
		rs[i] = Reading{Value: v[i], Seen: true}
	}
	return rs
}

func TestPadLeft(t *testing.T) {
	tests := []struct {
		x    float64
		want int
	}{
		{0, 3},
		{9.9, 3},
		{10, 2},
		{-0.5, 2},
		{-9.9, 2},
		{99.9, 2},
		{-10, 1},
		{100, 1},
		{239.9, 1},
		{-99.9, 1},
		{-100, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PadLeft(tt.x), "PadLeft(%v)", tt.x)
	}
}

func TestKilogramLines(t *testing.T) {
	rs := readings(5, -5, 150, -100)
	assert.Equal(t, [NumSubs]string{"   5.0", "  -5.0", " 150.0", "-100.0"}, KilogramLines(rs))

	rs[2] = Reading{OutOfRange: true}
	assert.Equal(t, "   OOR", KilogramLines(rs)[2])
}

func TestPercentages(t *testing.T) {
	p, ok := Percentages(readings(10, 20, 30, 40))
	assert.True(t, ok)
	assert.Equal(t, [NumSubs]int{10, 20, 30, 40}, p)
	assert.Equal(t, [NumSubs]string{"    10", "    20", "    30", "    40"}, PercentLines(readings(10, 20, 30, 40)))
}

func TestPercentagesTruncate(t *testing.T) {
	p, ok := Percentages(readings(1, 1, 1, 0))
	assert.True(t, ok)
	assert.Equal(t, [NumSubs]int{33, 33, 33, 0}, p)

	p, ok = Percentages(readings(-1, 2, 0, 0))
	assert.True(t, ok)
	assert.Equal(t, [NumSubs]int{-100, 200, 0, 0}, p)
	assert.Equal(t, "  -100", PercentLines(readings(-1, 2, 0, 0))[0])
}

func TestCrossPercentages(t *testing.T) {
	p, ok := CrossPercentages(readings(10, 20, 30, 40))
	assert.True(t, ok)
	assert.Equal(t, [NumSubs]int{30, 70, 50, 50}, p)
}

func TestSplitsNotAvailable(t *testing.T) {
	zero := readings(0, 0, 0, 0)
	oor := readings(10, 20, 30, 40)
	oor[3].OutOfRange = true
	cancelled := readings(10, -10, 0, 0)

	for name, rs := range map[string][NumSubs]Reading{"zero sum": zero, "out of range": oor, "cancelling": cancelled} {
		_, ok := Percentages(rs)
		assert.False(t, ok, name)
		_, ok = CrossPercentages(rs)
		assert.False(t, ok, name)
		for i := 0; i < NumSubs; i++ {
			assert.Equal(t, "    NA", PercentLines(rs)[i], name)
			assert.Equal(t, "    NA", CrossLines(rs)[i], name)
		}
	}
}

func TestLinesByMode(t *testing.T) {
	rs := readings(10, 20, 30, 40)
	assert.Equal(t, KilogramLines(rs), Lines(Kilogram, rs))
	assert.Equal(t, PercentLines(rs), Lines(Percent, rs))
	assert.Equal(t, CrossLines(rs), Lines(Cross, rs))
}
