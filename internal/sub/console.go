// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sub

import (
	"bufio"
	"fmt"
	"io"
	"log"
)

const (
	keyCalibrate = 'k'
	keyBackspace = 8
	keyDelete    = 0x7F
	keyEnter     = 13

	// rawPerUnit converts an HX reading to the units shown on the console.
	rawPerUnit = 26.7

	clearScreen = "\x1b[2J"
)

type consoleMode int

const (
	modeDiagnostics consoleMode = iota
	modeCalibration
)

// Console is the two-mode serial interface of a sub: a live diagnostics
// screen, and entry of a new calibration factor after pressing "k".
type Console struct {
	ctrl  *Controller
	mode  consoleMode
	entry Calibration
	count int
}

func NewConsole(ctrl *Controller) *Console {
	return &Console{ctrl: ctrl}
}

// Entering reports whether a calibration entry is in progress.
func (c *Console) Entering() bool {
	return c.mode == modeCalibration
}

// Step redraws the screen on w and then applies key, if one arrived since
// the last step.
func (c *Console) Step(w io.Writer, key byte, have bool) error {
	bw := bufio.NewWriter(w)
	switch c.mode {
	case modeDiagnostics:
		c.renderDiagnostics(bw)
		if have && key == keyCalibrate {
			c.count = 0
			c.entry = Calibration{'x', 'x', 'x', 'x'}
			c.mode = modeCalibration
		}
	case modeCalibration:
		c.renderEntry(bw)
		if have {
			c.handleEntryKey(key)
		}
	}
	return bw.Flush()
}

func (c *Console) handleEntryKey(key byte) {
	switch {
	case key >= '0' && key <= '9':
		if c.count < CalibrationDigits {
			c.entry[c.count] = key
			c.count++
		}
	case key == keyBackspace || key == keyDelete:
		if c.count > 0 {
			c.count--
			c.entry[c.count] = 'x'
		}
	case key == keyEnter:
		if c.count == CalibrationDigits {
			if err := c.ctrl.SetCalibration(c.entry); err != nil {
				log.Printf("console: %v", err)
			}
		} else if err := c.ctrl.ReloadCalibration(); err != nil {
			log.Printf("console: %v", err)
		}
		c.mode = modeDiagnostics
	}
}

func (c *Console) renderDiagnostics(w io.Writer) {
	d := c.ctrl.Diagnostics()
	fmt.Fprint(w, clearScreen)
	fmt.Fprintln(w, `Press "k" to enter Calibration Mode.`)
	fmt.Fprintf(w, "HX1: %.1f\t%d\t%d\n", float64(d.A)/rawPerUnit, d.OffsetA, d.IntervalA.Milliseconds())
	fmt.Fprintf(w, "HX2: %.1f\t%d\t%d\n", float64(d.B)/rawPerUnit, d.OffsetB, d.IntervalB.Milliseconds())
	fmt.Fprintf(w, "Total: %.1f\n", float64(d.A+d.B)/rawPerUnit)
	fmt.Fprintf(w, "Timerdiff: %d\n", d.SelectWindow.Microseconds())
	fmt.Fprintf(w, "Calibration Factor: %s\n", d.Calibration)
	fmt.Fprintf(w, "In Buffer: %s\n", d.LastReceived)
}

func (c *Console) renderEntry(w io.Writer) {
	fmt.Fprint(w, clearScreen)
	fmt.Fprintln(w, "Calibration Mode:")
	fmt.Fprintln(w, "Enter calibration factor as integer in the format x.xxx.")
	fmt.Fprintln(w, "Examples 1.051 or 0.964.")
	fmt.Fprintln(w, "Store value by pressing enter.")
	fmt.Fprintf(w, "New Calibration Factor: %s\n", c.entry)
}
