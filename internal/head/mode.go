// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

import "fmt"

// Mode selects what the four rows show.
type Mode uint8

const (
	Kilogram Mode = iota
	Percent
	Cross
)

// NumModes is the length of the mode cycle.
const NumModes = 3

// Next is the mode a short button press advances to.
func (m Mode) Next() Mode {
	return (m + 1) % NumModes
}

// String is also the overlay text shown while switching to m.
func (m Mode) String() string {
	switch m {
	case Kilogram:
		return "kg"
	case Percent:
		return "%"
	case Cross:
		return "cr"
	default:
		return fmt.Sprintf("Mode(%d)", uint8(m))
	}
}
