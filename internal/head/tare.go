// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

import "github.com/relabs-tech/wheel_load/internal/wire"

// TareFlag sequences one tare broadcast. Armed puts TARE on the bus for one
// 200 ms window, Commanded puts NONE back for the next.
type TareFlag uint8

const (
	TareIdle TareFlag = iota
	TareArmed
	TareCommanded
)

// Arm requests a tare. Arming while a broadcast is in flight restarts it.
func (t *TareFlag) Arm() {
	*t = TareArmed
}

// Advance runs at the start of every 200 ms window and updates the shared
// command frame.
func (t *TareFlag) Advance(cmd *wire.Frame) {
	switch *t {
	case TareArmed:
		*cmd = wire.TareFrame
		*t = TareCommanded
	case TareCommanded:
		*cmd = wire.IdleFrame
		*t = TareIdle
	}
}

func (t TareFlag) String() string {
	switch t {
	case TareArmed:
		return "armed"
	case TareCommanded:
		return "commanded"
	default:
		return "idle"
	}
}
