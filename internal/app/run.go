// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/wheel_load/internal/telemetry"
)

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// shutdown maps the cancellation that ends every Run loop to a clean exit.
func shutdown(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// connectOptional connects when a broker is configured. A nil client means
// MQTT is off.
func connectOptional(broker, clientID, component string) (mqtt.Client, error) {
	if broker == "" {
		return nil, nil
	}
	client, err := telemetry.Connect(broker, clientID)
	if err != nil {
		return nil, err
	}
	log.Printf("%s: connected to MQTT broker at %s", component, broker)
	return client, nil
}
