// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/relabs-tech/wheel_load/internal/head"
)

var _ head.Surface = (*Canvas)(nil)

func countWhite(c *Canvas, r image.Rectangle) int {
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if c.At(x, y) == head.White {
				n++
			}
		}
	}
	return n
}

func TestCanvasLines(t *testing.T) {
	c := NewCanvas()
	c.HLine(10, 30, 100, head.White)
	assert.Equal(t, head.White, c.At(10, 30))
	assert.Equal(t, head.White, c.At(109, 30))
	assert.Equal(t, head.Black, c.At(110, 30))
	assert.Equal(t, head.Black, c.At(10, 31))

	c.VLine(0, 44, 42, head.White)
	assert.Equal(t, 42, countWhite(c, image.Rect(0, 0, 1, head.ScreenHeight)))
}

func TestCanvasRect(t *testing.T) {
	c := NewCanvas()
	c.DrawRect(62, 40, 36, 48, head.White)
	assert.Equal(t, head.White, c.At(62, 40))
	assert.Equal(t, head.White, c.At(97, 87))
	assert.Equal(t, head.Black, c.At(70, 60), "outline only")
	assert.Equal(t, 2*36+2*48-4, countWhite(c, image.Rect(0, 0, head.ScreenWidth, head.ScreenHeight)))

	c.FillRect(62, 40, 36, 48, head.White)
	assert.Equal(t, 36*48, countWhite(c, image.Rect(62, 40, 98, 88)))
}

func TestCanvasClips(t *testing.T) {
	c := NewCanvas()
	c.FillRect(150, 120, 50, 50, head.White)
	assert.Equal(t, 10*8, countWhite(c, image.Rect(0, 0, head.ScreenWidth, head.ScreenHeight)))
	c.DrawText(150, 120, "88", head.White, head.Black, 3)
}

func TestCanvasText(t *testing.T) {
	c := NewCanvas()
	c.Fill(head.White)
	c.DrawText(39, 4, "  ", head.White, head.Black, 3)
	assert.Zero(t, countWhite(c, image.Rect(39, 4, 39+2*CellW*3, 4+CellH*3)), "spaces paint the background")

	c.DrawText(39, 4, "8", head.White, head.Black, 3)
	cell := image.Rect(39, 4, 39+CellW*3, 4+CellH*3)
	lit := countWhite(c, cell)
	assert.Greater(t, lit, 0)
	assert.Less(t, lit, cell.Dx()*cell.Dy())
}

func TestCanvasTextScales(t *testing.T) {
	small, big := NewCanvas(), NewCanvas()
	small.DrawText(0, 0, "%", head.White, head.Black, 1)
	big.DrawText(0, 0, "%", head.White, head.Black, 6)

	s := countWhite(small, image.Rect(0, 0, CellW, CellH))
	b := countWhite(big, image.Rect(0, 0, CellW*6, CellH*6))
	assert.Greater(t, s, 0)
	assert.Greater(t, b, s)
}

type recordSink struct {
	frames []*image.Gray
	err    error
}

func (r *recordSink) Show(img *image.Gray) error {
	r.frames = append(r.frames, img)
	return r.err
}

func TestCanvasFlush(t *testing.T) {
	ok := &recordSink{}
	bad := &recordSink{err: errors.New("nack")}
	c := NewCanvas(bad, ok)
	c.HLine(0, 0, 5, head.White)

	err := c.Flush()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nack")
	require.Len(t, ok.frames, 1, "later sinks still get the frame")

	c.HLine(0, 1, 5, head.White)
	assert.Equal(t, uint8(0), ok.frames[0].GrayAt(0, 1).Y, "sinks get a copy")
}

func TestWriteBMP(t *testing.T) {
	c := NewCanvas()
	c.FillRect(0, 0, 10, 10, head.White)

	var buf bytes.Buffer
	require.NoError(t, c.WriteBMP(&buf))

	img, err := bmp.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, head.ScreenWidth, head.ScreenHeight), img.Bounds())
	r, _, _, _ := img.At(5, 5).RGBA()
	assert.Equal(t, uint32(0xFFFF), r)
	r, _, _, _ = img.At(20, 20).RGBA()
	assert.Zero(t, r)
}

type fakePanel struct {
	drawn image.Image
}

func (p *fakePanel) Bounds() image.Rectangle { return image.Rect(0, 0, 128, 64) }

func (p *fakePanel) Draw(_ image.Rectangle, src image.Image, _ image.Point) error {
	p.drawn = src
	return nil
}

func TestSSD1306SinkScales(t *testing.T) {
	p := &fakePanel{}
	sink := NewSSD1306Sink(p)
	c := NewCanvas(sink)
	c.FillRect(0, 0, 80, 64, head.White)
	require.NoError(t, c.Flush())

	require.NotNil(t, p.drawn)
	f := sink.Frame()
	assert.Equal(t, image1bit.On, f.BitAt(0, 0))
	assert.Equal(t, image1bit.On, f.BitAt(63, 31))
	assert.Equal(t, image1bit.Off, f.BitAt(64, 0))
	assert.Equal(t, image1bit.Off, f.BitAt(0, 32))
}
