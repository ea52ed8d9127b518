// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package telemetry holds the JSON payloads exchanged over MQTT and the web
// API.
package telemetry

import (
	"fmt"
	"time"

	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/sub"
)

// WheelNames labels the four rows, in bus order.
var WheelNames = [head.NumSubs]string{"FL", "FR", "RL", "RR"}

// WheelStatus is one row of the head display.
type WheelStatus struct {
	Name       string  `json:"name"`
	Kg         float64 `json:"kg"`
	OutOfRange bool    `json:"oor"`
	Seen       bool    `json:"seen"` // false until the sub sent a sample
	Line       string  `json:"line"` // text as rendered
}

// Snapshot is the head unit state after a render.
type Snapshot struct {
	Time      string                    `json:"time"` // RFC3339 with ms
	Tick      uint32                    `json:"tick"`
	Mode      string                    `json:"mode"` // "kg", "%" or "cr"
	NextMode  string                    `json:"next_mode"`
	Switching bool                      `json:"switching"`
	Command   string                    `json:"command"` // frame sent to the subs
	Tare      string                    `json:"tare"`
	Wheels    [head.NumSubs]WheelStatus `json:"wheels"`
	Percent   *[head.NumSubs]int        `json:"percent,omitempty"` // nil when NA
	Cross     *[head.NumSubs]int        `json:"cross,omitempty"`
	TotalKg   float64                   `json:"total_kg"`
}

// FromHead converts a head snapshot.
func FromHead(s head.Snapshot) Snapshot {
	out := Snapshot{
		Time:      s.At.Format("2006-01-02T15:04:05.000Z07:00"),
		Tick:      s.Tick,
		Mode:      s.Mode.String(),
		NextMode:  s.Next.String(),
		Switching: s.Switching,
		Command:   s.Command.String(),
		Tare:      s.Tare.String(),
	}
	for i, r := range s.Readings {
		out.Wheels[i] = WheelStatus{
			Name:       WheelNames[i],
			Kg:         r.Value,
			OutOfRange: r.OutOfRange,
			Seen:       r.Seen,
			Line:       s.Lines[i],
		}
		out.TotalKg += r.Value
	}
	if p, ok := head.Percentages(s.Readings); ok {
		out.Percent = &p
	}
	if c, ok := head.CrossPercentages(s.Readings); ok {
		out.Cross = &c
	}
	return out
}

// SubStatus is a sub's diagnostics page.
type SubStatus struct {
	Wheel          int     `json:"wheel"`
	Name           string  `json:"name"`
	Time           string  `json:"time"`
	A              int32   `json:"hx1"`
	B              int32   `json:"hx2"`
	OffsetA        int32   `json:"hx1_offset"`
	OffsetB        int32   `json:"hx2_offset"`
	IntervalAms    float64 `json:"hx1_interval_ms"`
	IntervalBms    float64 `json:"hx2_interval_ms"`
	SelectWindowUs int64   `json:"timer_diff_us"`
	Calibration    string  `json:"calibration"` // "d.ddd"
	LastReceived   string  `json:"in_buffer"`
	Outgoing       string  `json:"out_buffer"`
	Kg             float64 `json:"kg"`
	Ready          bool    `json:"ready"`
	TxFaults       uint32  `json:"tx_faults"`
}

// FromDiagnostics converts a sub snapshot taken at t.
func FromDiagnostics(wheel int, d sub.Diagnostics, t time.Time) SubStatus {
	kg, ready := head.Decode(d.Outgoing)
	name := fmt.Sprintf("W%d", wheel+1)
	if wheel >= 0 && wheel < head.NumSubs {
		name = WheelNames[wheel]
	}
	return SubStatus{
		Wheel:          wheel,
		Name:           name,
		Time:           t.Format(time.RFC3339),
		A:              d.A,
		B:              d.B,
		OffsetA:        d.OffsetA,
		OffsetB:        d.OffsetB,
		IntervalAms:    float64(d.IntervalA) / float64(time.Millisecond),
		IntervalBms:    float64(d.IntervalB) / float64(time.Millisecond),
		SelectWindowUs: d.SelectWindow.Microseconds(),
		Calibration:    d.Calibration.String(),
		LastReceived:   d.LastReceived.String(),
		Outgoing:       d.Outgoing.String(),
		Kg:             kg,
		Ready:          ready,
		TxFaults:       d.TxFaults,
	}
}

// SubTopic is the diagnostics topic of one wheel under base.
func SubTopic(base string, wheel int) string {
	return fmt.Sprintf("%s/%d/diag", base, wheel)
}
