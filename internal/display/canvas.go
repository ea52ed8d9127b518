// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package display renders the head screen into memory and pushes it to
// whatever panel is attached.
package display

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/bmp"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/relabs-tech/wheel_load/internal/head"
)

// Glyph cell at scale 1. Text advances by CellW*scale per character.
const (
	CellW = 6
	CellH = 8
)

// Sink receives every flushed frame.
type Sink interface {
	Show(img *image.Gray) error
}

// Canvas is the in-memory head screen. It implements head.Surface.
type Canvas struct {
	mu    sync.Mutex
	img   *image.Gray
	sinks []Sink
	masks map[maskKey]*image.Alpha
}

type maskKey struct {
	r     rune
	scale int
}

func NewCanvas(sinks ...Sink) *Canvas {
	return &Canvas{
		img:   image.NewGray(image.Rect(0, 0, head.ScreenWidth, head.ScreenHeight)),
		sinks: sinks,
		masks: map[maskKey]*image.Alpha{},
	}
}

func gray(c head.Color) color.Gray {
	if c == head.White {
		return color.Gray{Y: 0xFF}
	}
	return color.Gray{Y: 0}
}

func (c *Canvas) Fill(col head.Color) {
	c.FillRect(0, 0, head.ScreenWidth, head.ScreenHeight, col)
}

func (c *Canvas) FillRect(x, y, w, h int, col head.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	xdraw.Draw(c.img, image.Rect(x, y, x+w, y+h), image.NewUniform(gray(col)), image.Point{}, xdraw.Src)
}

func (c *Canvas) DrawRect(x, y, w, h int, col head.Color) {
	c.HLine(x, y, w, col)
	c.HLine(x, y+h-1, w, col)
	c.VLine(x, y, h, col)
	c.VLine(x+w-1, y, h, col)
}

func (c *Canvas) HLine(x, y, w int, col head.Color) {
	c.FillRect(x, y, w, 1, col)
}

func (c *Canvas) VLine(x, y, h int, col head.Color) {
	c.FillRect(x, y, 1, h, col)
}

// DrawText paints each character cell in bg, then the glyph in fg.
func (c *Canvas) DrawText(x, y int, s string, fg, bg head.Color, scale int) {
	if scale < 1 {
		scale = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	w, h := CellW*scale, CellH*scale
	for _, r := range s {
		cell := image.Rect(x, y, x+w, y+h)
		xdraw.Draw(c.img, cell, image.NewUniform(gray(bg)), image.Point{}, xdraw.Src)
		if r != ' ' {
			xdraw.DrawMask(c.img, cell, image.NewUniform(gray(fg)), image.Point{}, c.mask(r, scale), image.Point{}, xdraw.Over)
		}
		x += w
	}
}

// mask is the glyph for r stretched to one cell, cached per scale.
func (c *Canvas) mask(r rune, scale int) *image.Alpha {
	key := maskKey{r, scale}
	if m, ok := c.masks[key]; ok {
		return m
	}

	face := basicfont.Face7x13
	src := image.NewAlpha(image.Rect(0, 0, face.Advance, face.Height))
	d := &font.Drawer{
		Dst:  src,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(string(r))

	m := image.NewAlpha(image.Rect(0, 0, CellW*scale, CellH*scale))
	xdraw.NearestNeighbor.Scale(m, m.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	c.masks[key] = m
	return m
}

// Flush hands the frame to every sink. All sinks are tried.
func (c *Canvas) Flush() error {
	if len(c.sinks) == 0 {
		return nil
	}
	img := c.Snapshot()
	var first error
	for _, s := range c.sinks {
		if err := s.Show(img); err != nil && first == nil {
			first = fmt.Errorf("display: %w", err)
		}
	}
	return first
}

// Snapshot returns a copy of the current frame.
func (c *Canvas) Snapshot() *image.Gray {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := image.NewGray(c.img.Rect)
	copy(cp.Pix, c.img.Pix)
	return cp
}

// At is the pixel value at x, y.
func (c *Canvas) At(x, y int) head.Color {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.img.GrayAt(x, y).Y >= 0x80 {
		return head.White
	}
	return head.Black
}

// WriteBMP encodes the current frame.
func (c *Canvas) WriteBMP(w io.Writer) error {
	return bmp.Encode(w, c.Snapshot())
}

// EncodeBMP is WriteBMP for an already captured frame.
func EncodeBMP(w io.Writer, img *image.Gray) error {
	return bmp.Encode(w, img)
}
