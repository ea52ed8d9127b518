// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

// TransitionSteps is how many render phases a mode switch lasts before it
// is committed.
const TransitionSteps = 10

// ModeMachine runs the timed switch between display modes. At most one
// switch is in flight: requests made during a switch target the same mode.
type ModeMachine struct {
	now   Mode
	next  Mode
	count int
}

func (m *ModeMachine) Now() Mode  { return m.now }
func (m *ModeMachine) Next() Mode { return m.next }

// Switching reports whether a transition is in flight.
func (m *ModeMachine) Switching() bool { return m.now != m.next }

// Request asks for the mode after the active one.
func (m *ModeMachine) Request() {
	m.next = m.now.Next()
}

// Step runs on the render phase. It returns true when no switch is pending
// and the caller should render the active mode.
func (m *ModeMachine) Step(sc *Screen) bool {
	if m.now == m.next {
		return true
	}
	m.count++
	switch {
	case m.count == 1:
		sc.ShowOverlay(m.next)
	case m.count > TransitionSteps:
		sc.ClearOverlay(m.next)
		sc.Chrome()
		sc.MoveSidebar(m.now, m.next)
		sc.Labels(m.next)
		m.now = m.next
		m.count = 0
	}
	return false
}
