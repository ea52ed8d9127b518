// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package hx71708

import "time"

// Pair is the two ADC channels of one wheel. They are only read together so
// both halves of a measurement come from the same conversion period.
type Pair struct {
	A, B *Sampler
}

// Ready reports whether both chips have a conversion waiting.
func (p *Pair) Ready() bool {
	return p.A.Ready() && p.B.Ready()
}

// Acquire reads A then B.
func (p *Pair) Acquire() (a, b int32, err error) {
	if a, err = p.A.Acquire(); err != nil {
		return 0, 0, err
	}
	if b, err = p.B.Acquire(); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// ResetOffsets zeroes both baselines so the next OffsetSamples reads
// establish a new one.
func (p *Pair) ResetOffsets() {
	p.A.ResetOffset()
	p.B.ResetOffset()
}

// Reset pulses both clock lines together.
func (p *Pair) Reset(sleep func(time.Duration)) error {
	return Reset(sleep, p.A.sck, p.B.sck)
}
