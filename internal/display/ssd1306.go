// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package display

import (
	"fmt"
	"image"
	"log"

	xdraw "golang.org/x/image/draw"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Panel is the part of ssd1306.Dev the sink uses.
type Panel interface {
	Bounds() image.Rectangle
	Draw(r image.Rectangle, src image.Image, sp image.Point) error
}

// SSD1306Sink shrinks the 160x128 frame onto a monochrome OLED.
type SSD1306Sink struct {
	panel Panel
	buf   *image1bit.VerticalLSB
}

// OpenSSD1306 initializes a 128x64 panel at the default I2C address.
func OpenSSD1306(bus i2c.Bus) (*SSD1306Sink, error) {
	opts := ssd1306.DefaultOpts
	dev, err := ssd1306.NewI2C(bus, &opts)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize display: %w", err)
	}
	log.Printf("display: ssd1306 initialized, %v", dev.Bounds().Size())
	return NewSSD1306Sink(dev), nil
}

func NewSSD1306Sink(p Panel) *SSD1306Sink {
	return &SSD1306Sink{
		panel: p,
		buf:   image1bit.NewVerticalLSB(p.Bounds()),
	}
}

func (s *SSD1306Sink) Show(img *image.Gray) error {
	xdraw.NearestNeighbor.Scale(s.buf, s.buf.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return s.panel.Draw(s.panel.Bounds(), s.buf, image.Point{})
}

// Frame is the last image sent to the panel.
func (s *SSD1306Sink) Frame() *image1bit.VerticalLSB { return s.buf }
