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
	log.Println("starting wheel-load sub unit")

	// Load configuration
	if err := config.InitGlobal("wheel_config.txt"); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := app.RunSub(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
