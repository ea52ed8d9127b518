// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package head

// Color is a display color. The panel only shows two.
type Color uint8

const (
	Black Color = iota
	White
)

// Surface is a drawing target laid out as a 160x128 landscape panel.
// Drawing calls clip silently; Flush pushes the frame to the device.
type Surface interface {
	Fill(c Color)
	DrawText(x, y int, s string, fg, bg Color, scale int)
	FillRect(x, y, w, h int, c Color)
	DrawRect(x, y, w, h int, c Color)
	HLine(x, y, w int, c Color)
	VLine(x, y, h int, c Color)
	Flush() error
}

const (
	ScreenWidth  = 160
	ScreenHeight = 128

	labelX       = 5
	valueX       = 39
	rowScale     = 3
	overlayScale = 6
)

// RowY is the top of each wheel row.
var RowY = [NumSubs]int{4, 36, 68, 100}

var separatorY = [...]int{30, 62, 94}

const (
	separatorX = 10
	separatorW = 100
)

type box struct {
	x, y, w, h int
}

// overlayBox is the indicator drawn while switching to m.
func overlayBox(m Mode) box {
	if m == Percent {
		return box{62, 40, 36, 48}
	}
	return box{44, 40, 72, 48}
}

type span struct {
	y, h int
}

// sidebar is the marker on the left edge showing the active mode.
var sidebar = [NumModes]span{
	Kilogram: {0, 43},
	Percent:  {44, 42},
	Cross:    {85, 43},
}

// Labels returns the row labels for m.
func Labels(m Mode) [NumSubs]string {
	if m == Cross {
		return [NumSubs]string{"12", "34", "14", "23"}
	}
	return [NumSubs]string{"1:", "2:", "3:", "4:"}
}

// Screen is the layout of the head display on top of a Surface.
type Screen struct {
	s Surface
}

func NewScreen(s Surface) *Screen {
	return &Screen{s: s}
}

// Init draws the boot screen for Kilogram mode.
func (sc *Screen) Init() error {
	sc.s.Fill(Black)
	sc.Chrome()
	sc.s.VLine(0, sidebar[Kilogram].y, sidebar[Kilogram].h, White)
	sc.Labels(Kilogram)
	return sc.s.Flush()
}

// Chrome draws the row separators.
func (sc *Screen) Chrome() {
	for _, y := range separatorY {
		sc.s.HLine(separatorX, y, separatorW, White)
	}
}

func (sc *Screen) Labels(m Mode) {
	for i, l := range Labels(m) {
		sc.s.DrawText(labelX, RowY[i], l, White, Black, rowScale)
	}
}

// ShowOverlay announces a switch to m.
func (sc *Screen) ShowOverlay(m Mode) {
	b := overlayBox(m)
	sc.s.FillRect(b.x, b.y, b.w, b.h, Black)
	sc.s.DrawRect(b.x, b.y, b.w, b.h, White)
	sc.s.DrawText(b.x+3, b.y+3, m.String(), White, Black, overlayScale)
}

// ClearOverlay erases the box and its text. The rows underneath are
// repainted by the next render.
func (sc *Screen) ClearOverlay(m Mode) {
	b := overlayBox(m)
	sc.s.DrawRect(b.x, b.y, b.w, b.h, Black)
	blank := "  "
	if m == Percent {
		blank = " "
	}
	sc.s.DrawText(b.x+3, b.y+3, blank, White, Black, overlayScale)
}

// MoveSidebar moves the mode marker.
func (sc *Screen) MoveSidebar(from, to Mode) {
	sc.s.VLine(0, sidebar[from].y, sidebar[from].h, Black)
	sc.s.VLine(0, sidebar[to].y, sidebar[to].h, White)
}

// Values draws the four value rows.
func (sc *Screen) Values(lines [NumSubs]string) {
	for i, l := range lines {
		sc.s.DrawText(valueX, RowY[i], l, White, Black, rowScale)
	}
}

func (sc *Screen) Flush() error {
	return sc.s.Flush()
}
