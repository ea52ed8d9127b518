// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"context"
	"fmt"
	"log"
	"time"

	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/hx71708"
	"github.com/relabs-tech/wheel_load/internal/sub"
)

// SimWheel is one emulated sub and its load cells.
type SimWheel struct {
	Name  string
	A, B  *Chip
	Port  *Port
	LED   *gpiotest.Pin
	Store *sub.MemStore
	Ctrl  *sub.Controller
	Kg    float64
}

// Rig is four subs on one bus, driven by a scenario.
type Rig struct {
	Scenario *Scenario
	Bus      *Bus
	Wheels   [head.NumSubs]*SimWheel

	// OnAction receives tare and mode steps; the subs only see loads.
	OnAction func(Step)
	// OnDiagnostics is called from RunSubs every DiagEvery.
	OnDiagnostics func(wheel int, d sub.Diagnostics)
	DiagEvery     time.Duration

	next int
}

func NewRig(sc *Scenario) (*Rig, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	r := &Rig{
		Scenario:  sc,
		Bus:       NewBus(),
		DiagEvery: time.Second,
	}
	for i := range r.Wheels {
		cfg := sc.Wheels[i]
		w := &SimWheel{
			Name: cfg.Name,
			A:    NewChip(sc.ConversionPeriod),
			B:    NewChip(sc.ConversionPeriod),
			Port: r.Bus.NewPort(cfg.Name),
			LED:  &gpiotest.Pin{N: cfg.Name + "_LED"},
			Kg:   cfg.Kg,
		}
		var blob []byte
		if cfg.Calibration != "" {
			blob = []byte(cfg.Calibration)
		}
		w.Store = sub.NewMemStore(blob)

		pair := &hx71708.Pair{
			A: hx71708.New(cfg.Name+"/hx1", w.A, w.A, &hx71708.Opts{}),
			B: hx71708.New(cfg.Name+"/hx2", w.B, w.B, &hx71708.Opts{}),
		}
		ctrl, err := sub.New(pair, w.Store, w.Port, w.LED)
		if err != nil {
			return nil, fmt.Errorf("sim: wheel %s: %w", cfg.Name, err)
		}
		w.Ctrl = ctrl
		w.Port.Attach(ctrl)
		r.Wheels[i] = w
	}
	r.Apply(0)
	return r, nil
}

// ChipSelects are the head side of the bus.
func (r *Rig) ChipSelects() [head.NumSubs]head.Pin {
	var cs [head.NumSubs]head.Pin
	for i, w := range r.Wheels {
		cs[i] = w.Port
	}
	return cs
}

// Apply fires the steps due by elapsed and updates every cell reading.
func (r *Rig) Apply(elapsed time.Duration) {
	for r.next < len(r.Scenario.Steps) && r.Scenario.Steps[r.next].At <= elapsed {
		st := r.Scenario.Steps[r.next]
		r.next++
		log.Printf("sim: step %s", st)
		if st.Action == ActionLoad {
			r.Wheels[st.Wheel].Kg = st.Kg
		} else if r.OnAction != nil {
			r.OnAction(st)
		}
	}
	for i, w := range r.Wheels {
		a, b := r.Scenario.ChannelRaw(i, w.Kg, elapsed)
		w.A.SetRaw(a)
		w.B.SetRaw(b)
	}
}

// Poll runs one main-loop pass on every sub.
func (r *Rig) Poll() error {
	for _, w := range r.Wheels {
		if _, err := w.Ctrl.Poll(); err != nil {
			return fmt.Errorf("sim: wheel %s: %w", w.Name, err)
		}
	}
	return nil
}

// RunSubs steps the scenario and the sub loops every millisecond until ctx
// is done.
func (r *Rig) RunSubs(ctx context.Context) error {
	start := time.Now()
	lastDiag := start
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()

	log.Printf("sim: %d subs running", len(r.Wheels))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			r.Apply(now.Sub(start))
			if err := r.Poll(); err != nil {
				log.Printf("%v", err)
			}
			if r.OnDiagnostics != nil && now.Sub(lastDiag) >= r.DiagEvery {
				lastDiag = now
				for i, w := range r.Wheels {
					r.OnDiagnostics(i, w.Ctrl.Diagnostics())
				}
			}
		}
	}
}
