// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"log"

	"github.com/relabs-tech/wheel_load/internal/app"
	"github.com/relabs-tech/wheel_load/internal/config"
)

func main() {
	log.Println("starting wheel-load sub terminal")

	// Load configuration
	if err := config.InitGlobal("wheel_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	log.Println("Note: leave SUB_CONSOLE_PORT empty to list serial ports")

	if err := app.RunSubTerm(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
