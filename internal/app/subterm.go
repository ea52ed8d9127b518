// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"os"

	"go.bug.st/serial"

	"github.com/relabs-tech/wheel_load/internal/config"
)

// keyTranslator turns line endings from a cooked terminal into the carriage
// return the sub console expects.
type keyTranslator struct {
	w io.Writer
}

func (k keyTranslator) Write(p []byte) (int, error) {
	buf := make([]byte, len(p))
	for i, b := range p {
		if b == '\n' {
			b = '\r'
		}
		buf[i] = b
	}
	return k.w.Write(buf)
}

// RunSubTerm bridges this terminal to a sub console. With no port
// configured it lists the serial ports instead.
func RunSubTerm() error {
	cfg := config.Get()

	if cfg.SubConsolePort == "" {
		ports, err := serial.GetPortsList()
		if err != nil {
			return fmt.Errorf("subterm: list ports: %w", err)
		}
		if len(ports) == 0 {
			log.Println("subterm: no serial ports found")
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return nil
	}

	port, err := serial.Open(cfg.SubConsolePort, &serial.Mode{
		BaudRate: cfg.SubConsoleBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("subterm: open %s: %w", cfg.SubConsolePort, err)
	}
	log.Printf("subterm: %s at %d baud, Ctrl+C to quit", cfg.SubConsolePort, cfg.SubConsoleBaud)

	ctx, stop := signalContext()
	defer stop()

	// stdin may stay blocked in Read after we return; the process exits anyway
	errc := make(chan error, 2)
	go func() {
		_, err := io.Copy(os.Stdout, port)
		if err == nil {
			err = io.EOF
		}
		errc <- fmt.Errorf("subterm: port read: %w", err)
	}()
	go func() {
		_, err := io.Copy(keyTranslator{port}, os.Stdin)
		if err == nil {
			err = io.EOF
		}
		errc <- fmt.Errorf("subterm: stdin: %w", err)
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errc:
	}
	port.Close()
	log.Println("subterm: closed")
	return err
}
