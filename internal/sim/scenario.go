// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sim

import (
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/relabs-tech/wheel_load/internal/head"
	"github.com/relabs-tech/wheel_load/internal/sub"
)

// Step actions. A step with no action changes a wheel load.
const (
	ActionLoad = ""
	ActionTare = "tare"
	ActionMode = "mode"
)

// Scenario describes the simulated vehicle and what happens to it.
type Scenario struct {
	// RawPerKg is the ADC count per kilogram, both channels together.
	RawPerKg float64 `yaml:"raw_per_kg"`
	// Noise is the peak noise on each channel, in ADC counts.
	Noise float64 `yaml:"noise"`
	// ConversionPeriod is the emulated ADC output rate.
	ConversionPeriod time.Duration `yaml:"conversion_period"`
	Wheels           []Wheel       `yaml:"wheels"`
	Steps            []Step        `yaml:"steps"`
}

// Wheel is one simulated sub.
type Wheel struct {
	Name string  `yaml:"name"`
	Kg   float64 `yaml:"kg"`
	// Bias is the unloaded cell reading per channel, removed by warm-up.
	Bias int32 `yaml:"bias"`
	// RawPerKg overrides the scenario value, to exercise calibration.
	RawPerKg float64 `yaml:"raw_per_kg"`
	// Calibration is the stored factor as four digits; empty reads as
	// erased storage.
	Calibration string `yaml:"calibration"`
}

// Step fires once At has elapsed.
type Step struct {
	At     time.Duration `yaml:"at"`
	Action string        `yaml:"action"`
	Wheel  int           `yaml:"wheel"`
	Kg     float64       `yaml:"kg"`
}

func (s Step) String() string {
	if s.Action == ActionLoad {
		return fmt.Sprintf("%v wheel %d -> %.1f kg", s.At, s.Wheel, s.Kg)
	}
	return fmt.Sprintf("%v %s", s.At, s.Action)
}

// DefaultScenario is an empty scale that a car rolls onto after two
// seconds, followed by a tare and a mode change.
func DefaultScenario() *Scenario {
	return &Scenario{
		RawPerKg:         head.KGCalibFactor,
		Noise:            40,
		ConversionPeriod: 12500 * time.Microsecond,
		Wheels: []Wheel{
			{Name: "FL", Bias: 8200},
			{Name: "FR", Bias: -3100},
			{Name: "RL", Bias: 500, RawPerKg: 25500, Calibration: "1047"},
			{Name: "RR", Bias: 12000},
		},
		Steps: []Step{
			{At: 2 * time.Second, Wheel: 0, Kg: 212.5},
			{At: 2 * time.Second, Wheel: 1, Kg: 207.0},
			{At: 2500 * time.Millisecond, Wheel: 2, Kg: 168.4},
			{At: 2500 * time.Millisecond, Wheel: 3, Kg: 171.9},
			{At: 10 * time.Second, Action: ActionMode},
			{At: 16 * time.Second, Action: ActionMode},
			{At: 30 * time.Second, Action: ActionTare},
		},
	}
}

// LoadScenario reads a YAML scenario. A missing file yields the default.
func LoadScenario(filename string) (*Scenario, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultScenario(), nil
		}
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	sc := &Scenario{}
	if err := yaml.Unmarshal(data, sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	sc.ensureDefaults()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Scenario) ensureDefaults() {
	def := DefaultScenario()
	if s.RawPerKg == 0 {
		s.RawPerKg = def.RawPerKg
	}
	if len(s.Wheels) == 0 {
		s.Wheels = def.Wheels
	}
	for i := range s.Wheels {
		if s.Wheels[i].Name == "" {
			s.Wheels[i].Name = fmt.Sprintf("W%d", i+1)
		}
	}
	sort.SliceStable(s.Steps, func(i, j int) bool { return s.Steps[i].At < s.Steps[j].At })
}

// Validate checks wheel count, calibrations and step targets.
func (s *Scenario) Validate() error {
	if len(s.Wheels) != head.NumSubs {
		return fmt.Errorf("scenario: %d wheels, want %d", len(s.Wheels), head.NumSubs)
	}
	for _, w := range s.Wheels {
		if w.Calibration == "" {
			continue
		}
		if _, err := sub.ParseCalibration(w.Calibration); err != nil {
			return fmt.Errorf("scenario: wheel %s: %w", w.Name, err)
		}
	}
	for _, st := range s.Steps {
		switch st.Action {
		case ActionLoad:
			if st.Wheel < 0 || st.Wheel >= head.NumSubs {
				return fmt.Errorf("scenario: step at %v: wheel %d out of range", st.At, st.Wheel)
			}
		case ActionTare, ActionMode:
		default:
			return fmt.Errorf("scenario: step at %v: unknown action %q", st.At, st.Action)
		}
	}
	return nil
}

func (s *Scenario) rawPerKg(w int) float64 {
	if r := s.Wheels[w].RawPerKg; r != 0 {
		return r
	}
	return s.RawPerKg
}

// ChannelRaw is the reading of each of wheel w's two cells carrying kg,
// with noise evaluated at elapsed.
func (s *Scenario) ChannelRaw(w int, kg float64, elapsed time.Duration) (a, b int32) {
	half := kg * s.rawPerKg(w) / 2
	bias := float64(s.Wheels[w].Bias)
	var na, nb float64
	if s.Noise != 0 {
		t := float64(elapsed.Nanoseconds()) * 1e-6
		na = s.Noise * math.Sin(t*0.37+float64(w))
		nb = s.Noise * math.Sin(t*0.53+float64(w)*1.7)
	}
	return int32(math.Round(bias + half + na)), int32(math.Round(bias + half + nb))
}
