// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package sensors opens the GPIO, SPI and I2C resources named in the
// configuration.
package sensors

import (
	"fmt"
	"log"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/wheel_load/internal/config"
	"github.com/relabs-tech/wheel_load/internal/display"
	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/hx71708"
	"github.com/relabs-tech/wheel_load/internal/softspi"
)

var (
	hostOnce    sync.Once
	hostInitErr error
)

// Init loads the periph host drivers once.
func Init() error {
	hostOnce.Do(func() {
		if _, err := host.Init(); err != nil {
			hostInitErr = fmt.Errorf("periph host init: %w", err)
		}
	})
	return hostInitErr
}

// Pin looks up a GPIO by name. role only appears in errors.
func Pin(role, name string) (gpio.PinIO, error) {
	if name == "" {
		return nil, fmt.Errorf("%s: no pin configured", role)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%s: pin %q not found", role, name)
	}
	return p, nil
}

// Head is the main unit's bus and front panel.
type Head struct {
	Bus    spi.Conn
	CS     [head.NumSubs]head.Pin
	LED    [head.NumSubs]head.Pin
	Button gpio.PinIn

	port spi.PortCloser
}

// OpenHead opens the SPI port with hardware chip select disabled. The four
// chip selects are plain GPIOs driven by the exchange client.
func OpenHead(cfg *config.Config) (*Head, error) {
	if err := Init(); err != nil {
		return nil, err
	}

	port, err := spireg.Open(cfg.HeadSPIDevice)
	if err != nil {
		return nil, fmt.Errorf("head: SPI open (%s): %w", cfg.HeadSPIDevice, err)
	}
	freq := physic.Frequency(cfg.HeadSPISpeedKHz) * physic.KiloHertz
	conn, err := port.Connect(freq, spi.Mode3|spi.NoCS, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("head: SPI connect (%s): %w", cfg.HeadSPIDevice, err)
	}

	h := &Head{Bus: conn, port: port}
	for i := 0; i < head.NumSubs; i++ {
		cs, err := Pin("head CS "+config.WheelSuffixes[i], cfg.HeadCSPins[i])
		if err != nil {
			port.Close()
			return nil, err
		}
		h.CS[i] = cs

		if cfg.HeadLEDPins[i] == "" {
			continue
		}
		led, err := Pin("head LED "+config.WheelSuffixes[i], cfg.HeadLEDPins[i])
		if err != nil {
			port.Close()
			return nil, err
		}
		h.LED[i] = led
	}

	if cfg.HeadButtonPin != "" {
		btn, err := Pin("head button", cfg.HeadButtonPin)
		if err != nil {
			port.Close()
			return nil, err
		}
		if err := btn.In(gpio.PullUp, gpio.NoEdge); err != nil {
			port.Close()
			return nil, fmt.Errorf("head button: %w", err)
		}
		h.Button = btn
	}

	log.Printf("head: SPI %s at %s, mode 3", cfg.HeadSPIDevice, freq)
	return h, nil
}

// Close releases the SPI port.
func (h *Head) Close() error {
	return h.port.Close()
}

// OpenDisplay attaches the SSD1306 on the configured I2C bus. The returned
// close function releases the bus.
func OpenDisplay(cfg *config.Config) (*display.SSD1306Sink, func() error, error) {
	if err := Init(); err != nil {
		return nil, nil, err
	}
	bus, err := i2creg.Open(cfg.DisplayI2CBus)
	if err != nil {
		return nil, nil, fmt.Errorf("display: I2C open (%q): %w", cfg.DisplayI2CBus, err)
	}
	sink, err := display.OpenSSD1306(bus)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	return sink, bus.Close, nil
}

// Sub is one wheel unit: two ADCs, the status LED and the bus responder.
type Sub struct {
	Pair      *hx71708.Pair
	LED       gpio.PinOut
	Responder *softspi.Responder
}

// OpenSub configures the ADC lines (SCK low, DOUT input) and the responder.
func OpenSub(cfg *config.Config) (*Sub, error) {
	if err := Init(); err != nil {
		return nil, err
	}

	adc := func(name, sckName, doutName string) (*hx71708.Sampler, error) {
		sck, err := Pin(name+" SCK", sckName)
		if err != nil {
			return nil, err
		}
		if err := sck.Out(gpio.Low); err != nil {
			return nil, fmt.Errorf("%s SCK: %w", name, err)
		}
		dout, err := Pin(name+" DOUT", doutName)
		if err != nil {
			return nil, err
		}
		if err := dout.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return nil, fmt.Errorf("%s DOUT: %w", name, err)
		}
		return hx71708.New(name, sck, dout, nil), nil
	}

	a, err := adc("hx1", cfg.SubHX1SCKPin, cfg.SubHX1DOUTPin)
	if err != nil {
		return nil, err
	}
	b, err := adc("hx2", cfg.SubHX2SCKPin, cfg.SubHX2DOUTPin)
	if err != nil {
		return nil, err
	}

	s := &Sub{Pair: &hx71708.Pair{A: a, B: b}}
	if cfg.SubLEDPin != "" {
		led, err := Pin("sub LED", cfg.SubLEDPin)
		if err != nil {
			return nil, err
		}
		s.LED = led
	}

	var bus [4]gpio.PinIO
	for i, p := range []struct{ role, name string }{
		{"bus CS", cfg.SubBusCSPin},
		{"bus SCK", cfg.SubBusSCKPin},
		{"bus MOSI", cfg.SubBusMOSIPin},
		{"bus MISO", cfg.SubBusMISOPin},
	} {
		if bus[i], err = Pin(p.role, p.name); err != nil {
			return nil, err
		}
	}
	if s.Responder, err = softspi.New(bus[0], bus[1], bus[2], bus[3]); err != nil {
		return nil, err
	}

	log.Printf("sub: wheel %s pins ready (hx1 %s/%s, hx2 %s/%s)",
		config.WheelSuffixes[cfg.SubWheel], cfg.SubHX1SCKPin, cfg.SubHX1DOUTPin, cfg.SubHX2SCKPin, cfg.SubHX2DOUTPin)
	return s, nil
}
