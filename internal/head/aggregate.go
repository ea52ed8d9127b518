// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

import "fmt"

// MaxPadding is the left padding of a single-digit value.
const MaxPadding = 3

const (
	oorText = "   OOR"
	naText  = "    NA"
)

// PadLeft returns the spaces needed to right-align x in a row.
func PadLeft(x float64) int {
	switch {
	case x <= -100:
		return 0
	case x >= 100 || x <= -10:
		return MaxPadding - 2
	case x >= 10 || x < 0:
		return MaxPadding - 1
	default:
		return MaxPadding
	}
}

// KilogramLines formats each wheel to one decimal, or OOR.
func KilogramLines(rs [NumSubs]Reading) [NumSubs]string {
	var lines [NumSubs]string
	for i, r := range rs {
		if r.OutOfRange {
			lines[i] = oorText
			continue
		}
		lines[i] = fmt.Sprintf("%*s%.1f", PadLeft(r.Value), "", r.Value)
	}
	return lines
}

// total sums the wheels and reports whether a split can be shown at all.
func total(rs [NumSubs]Reading) (float64, bool) {
	var sum float64
	ok := true
	for _, r := range rs {
		sum += r.Value
		if r.OutOfRange {
			ok = false
		}
	}
	return sum, ok && sum != 0
}

func share(part, sum float64) int {
	return int((part * 100) / sum)
}

// Percentages is each wheel's share of the total, truncated toward zero.
func Percentages(rs [NumSubs]Reading) ([NumSubs]int, bool) {
	var out [NumSubs]int
	sum, ok := total(rs)
	if !ok {
		return out, false
	}
	for i, r := range rs {
		out[i] = share(r.Value, sum)
	}
	return out, true
}

// CrossPercentages is the front, rear and the two diagonal shares.
func CrossPercentages(rs [NumSubs]Reading) ([NumSubs]int, bool) {
	var out [NumSubs]int
	sum, ok := total(rs)
	if !ok {
		return out, false
	}
	fl, fr := rs[FrontLeft].Value, rs[FrontRight].Value
	rl, rr := rs[RearLeft].Value, rs[RearRight].Value
	out[0] = share(fl+fr, sum)
	out[1] = share(rl+rr, sum)
	out[2] = share(fl+rr, sum)
	out[3] = share(fr+rl, sum)
	return out, true
}

func PercentLines(rs [NumSubs]Reading) [NumSubs]string {
	return percentLines(Percentages(rs))
}

func CrossLines(rs [NumSubs]Reading) [NumSubs]string {
	return percentLines(CrossPercentages(rs))
}

func percentLines(p [NumSubs]int, ok bool) [NumSubs]string {
	var lines [NumSubs]string
	for i, v := range p {
		if !ok {
			lines[i] = naText
			continue
		}
		lines[i] = fmt.Sprintf("%*s%d", PadLeft(float64(v))+2, "", v)
	}
	return lines
}

// Lines renders the rows for mode m.
func Lines(m Mode, rs [NumSubs]Reading) [NumSubs]string {
	switch m {
	case Percent:
		return PercentLines(rs)
	case Cross:
		return CrossLines(rs)
	default:
		return KilogramLines(rs)
	}
}
