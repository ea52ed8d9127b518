// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire holds the fixed 4-byte frame exchanged between the head unit
// and the per-wheel subs. There is no header, length or checksum: chip-select
// edges delimit a transaction.
package wire

import (
	"encoding/binary"
	"fmt"
)

// FrameSize is the number of bytes shifted per transaction in each direction.
const FrameSize = 4

// Frame is one bus transaction worth of bytes.
type Frame [FrameSize]byte

// Command is the head to sub instruction carried in a frame.
type Command uint8

const (
	CommandIdle Command = iota
	CommandTare
)

var (
	// IdleFrame is sent on every poll outside a tare window.
	IdleFrame = Frame{'N', 'O', 'N', 'E'}
	// TareFrame is broadcast to all four subs for one scheduling window.
	TareFrame = Frame{'T', 'A', 'R', 'E'}
)

// ParseCommand matches the frame byte for byte. Anything else is not a command
// and must be ignored by the caller.
func ParseCommand(f Frame) (Command, bool) {
	switch f {
	case IdleFrame:
		return CommandIdle, true
	case TareFrame:
		return CommandTare, true
	default:
		return CommandIdle, false
	}
}

// Frame returns the bytes that encode c.
func (c Command) Frame() Frame {
	if c == CommandTare {
		return TareFrame
	}
	return IdleFrame
}

func (c Command) String() string {
	switch c {
	case CommandIdle:
		return "NONE"
	case CommandTare:
		return "TARE"
	default:
		return fmt.Sprintf("Command(%d)", uint8(c))
	}
}

// Invert32 is the one's complement used on the sub to main direction.
func Invert32(x uint32) uint32 {
	return ^x
}

// EncodeLoad packs a calibrated load value as its bit inverse, big-endian.
// A true zero load therefore travels as 0xFFFFFFFF, leaving the all-zero
// frame free to mean "not ready".
func EncodeLoad(v int32) Frame {
	var f Frame
	binary.BigEndian.PutUint32(f[:], Invert32(uint32(v)))
	return f
}

// DecodeLoad reverses EncodeLoad. It reports false for the all-zero frame.
func DecodeLoad(f Frame) (int32, bool) {
	raw := binary.BigEndian.Uint32(f[:])
	if raw == 0 {
		return 0, false
	}
	return int32(Invert32(raw)), true
}

// Uint32 returns the frame as a big-endian word.
func (f Frame) Uint32() uint32 {
	return binary.BigEndian.Uint32(f[:])
}

// FrameFromUint32 is the inverse of Frame.Uint32.
func FrameFromUint32(v uint32) Frame {
	var f Frame
	binary.BigEndian.PutUint32(f[:], v)
	return f
}

// IsZero reports whether every byte is zero.
func (f Frame) IsZero() bool {
	return f == Frame{}
}

// String prints printable ASCII frames as text and anything else as hex.
func (f Frame) String() string {
	for _, b := range f {
		if b < 0x20 || b > 0x7e {
			return fmt.Sprintf("%02X %02X %02X %02X", f[0], f[1], f[2], f[3])
		}
	}
	return string(f[:])
}
