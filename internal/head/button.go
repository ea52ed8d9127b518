// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

import "periph.io/x/conn/v3/gpio"

// ButtonEvent is the outcome of one button scan.
type ButtonEvent uint8

const (
	ButtonNone ButtonEvent = iota
	ButtonModeAdvance
	ButtonTareArm
)

const (
	// ShortPressScans must be exceeded for a release to count as a press.
	ShortPressScans = 1
	// LongPressScans must be exceeded while held to arm a tare.
	LongPressScans = 20
)

// Button decodes the active-low push button, scanned every 100 ms. A short
// press and release advances the mode; holding it arms a tare.
type Button struct {
	last gpio.Level
	hold int
}

// NewButton starts from the level read at boot.
func NewButton(initial gpio.Level) *Button {
	return &Button{last: initial}
}

// Scan feeds one sample of the button line.
func (b *Button) Scan(level gpio.Level) ButtonEvent {
	ev := ButtonNone
	switch {
	case level != b.last && level == gpio.Low:
		b.hold++
	case level != b.last:
		if b.hold > ShortPressScans {
			b.hold = 0
			ev = ButtonModeAdvance
		}
	case level == gpio.Low:
		if b.hold > 0 {
			b.hold++
		}
		if b.hold > LongPressScans {
			b.hold = 0
			ev = ButtonTareArm
		}
	}
	b.last = level
	return ev
}

// Hold is the number of scans the current press has lasted.
func (b *Button) Hold() int { return b.hold }
