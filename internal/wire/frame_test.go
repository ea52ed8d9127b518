// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wire

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		want  Command
		ok    bool
	}{
		{"idle", Frame{'N', 'O', 'N', 'E'}, CommandIdle, true},
		{"tare", Frame{'T', 'A', 'R', 'E'}, CommandTare, true},
		{"lowercase", Frame{'t', 'a', 'r', 'e'}, CommandIdle, false},
		{"zero", Frame{}, CommandIdle, false},
		{"garbage", Frame{0xFF, 0x00, 0x12, 0x80}, CommandIdle, false},
		{"partial", Frame{'T', 'A', 'R', 0}, CommandIdle, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseCommand(tt.frame)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandFrame(t *testing.T) {
	assert.Equal(t, TareFrame, CommandTare.Frame())
	assert.Equal(t, IdleFrame, CommandIdle.Frame())
	assert.Equal(t, "TARE", CommandTare.String())
	assert.Equal(t, "NONE", CommandIdle.String())
}

func TestInvert32Involution(t *testing.T) {
	for _, x := range []uint32{0, 1, 0x7FFFFFFF, 0x80000000, 0xDEADBEEF, math.MaxUint32} {
		assert.Equal(t, x, Invert32(Invert32(x)), "x=%#x", x)
	}
}

func TestEncodeLoad(t *testing.T) {
	// zero load is distinguishable from "not ready"
	assert.Equal(t, Frame{0xFF, 0xFF, 0xFF, 0xFF}, EncodeLoad(0))
	assert.Equal(t, Frame{0xFF, 0xFF, 0xFF, 0xFE}, EncodeLoad(1))
	assert.Equal(t, Frame{0x00, 0x00, 0x00, 0x00}, EncodeLoad(-1))
	assert.Equal(t, Frame{0xFF, 0xFF, 0x97, 0xB3}, EncodeLoad(26700))
}

func TestDecodeLoad(t *testing.T) {
	_, ok := DecodeLoad(Frame{})
	assert.False(t, ok, "all-zero frame means not ready")

	for _, v := range []int32{0, 1, 26700, -26700, 240 * 26700, math.MaxInt32, math.MinInt32} {
		got, ok := DecodeLoad(EncodeLoad(v))
		require.True(t, ok)
		assert.Equal(t, v, got)
	}
}

func TestFrameString(t *testing.T) {
	assert.Equal(t, "TARE", TareFrame.String())
	assert.Equal(t, "FF 00 7F 20", Frame{0xFF, 0x00, 0x7F, 0x20}.String())
}

func TestFrameUint32(t *testing.T) {
	f := FrameFromUint32(0x01020304)
	assert.Equal(t, Frame{1, 2, 3, 4}, f)
	assert.Equal(t, uint32(0x01020304), f.Uint32())
	assert.True(t, Frame{}.IsZero())
	assert.False(t, f.IsZero())
}
