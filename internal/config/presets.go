package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sebastiankruger/fiber-twin/internal/twin"
)

// Scenario is an offline run: a model variant driven by a setpoint schedule
// with a fixed synthetic step.
type Scenario struct {
	Variant  twin.Variant  `yaml:"variant"`
	Step     time.Duration `yaml:"step"`
	Duration time.Duration `yaml:"duration"`
	Params   twin.Params   `yaml:"params"`
	Schedule []Setpoints   `yaml:"schedule"`
}

// Setpoints applied at simulated time At. Nil fields are left unchanged.
type Setpoints struct {
	At            time.Duration `yaml:"at"`
	HeaterPower   *float64      `yaml:"heater_power,omitempty"`
	FeedFrequency *float64      `yaml:"feed_frequency,omitempty"`
	SpoolPower    *float64      `yaml:"spool_power,omitempty"`
	WindDirection *int          `yaml:"wind_direction,omitempty"`
}

func pf(v float64) *float64 { return &v }

// Presets are built-in scenarios by name.
var Presets = map[string]*Scenario{
	"warmup": {
		Variant: twin.RegressionDynamic, Step: 100 * time.Millisecond, Duration: 3 * time.Minute,
		Schedule: []Setpoints{{At: 0, HeaterPower: pf(0.3)}},
	},
	"extrude": {
		Variant: twin.RegressionDynamic, Step: 100 * time.Millisecond, Duration: 10 * time.Minute,
		Schedule: []Setpoints{
			{At: 0, HeaterPower: pf(0.35)},
			{At: 2 * time.Minute, FeedFrequency: pf(50), SpoolPower: pf(0.5)},
		},
	},
	"cooldown": {
		Variant: twin.RegressionDynamic, Step: 100 * time.Millisecond, Duration: 6 * time.Minute,
		Schedule: []Setpoints{
			{At: 0, HeaterPower: pf(0.35)},
			{At: 3 * time.Minute, HeaterPower: pf(0)},
		},
	},
	"basic": {
		Variant: twin.BasicState, Step: 50 * time.Millisecond, Duration: time.Minute,
		Schedule: []Setpoints{{At: 0, HeaterPower: pf(0.3), FeedFrequency: pf(40), SpoolPower: pf(0.4)}},
	},
	"layered": {
		Variant: twin.BasicDynamic, Step: 100 * time.Millisecond, Duration: 5 * time.Minute,
		Schedule: []Setpoints{
			{At: 0, HeaterPower: pf(0.6)},
			{At: time.Minute, FeedFrequency: pf(80), SpoolPower: pf(0.8)},
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Scenario {
	s, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *s
	c.Params = twin.DefaultParams()
	c.Schedule = append([]Setpoints(nil), s.Schedule...)
	return &c
}

// ListPresets returns the preset names in sorted order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	s := &Scenario{Variant: twin.RegressionDynamic, Params: twin.DefaultParams()}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the step and duration and sorts the schedule by time.
func (s *Scenario) Validate() error {
	if s.Step <= 0 {
		return fmt.Errorf("scenario step must be positive, got %v", s.Step)
	}
	if s.Duration < s.Step {
		return fmt.Errorf("scenario duration %v is shorter than one step", s.Duration)
	}
	sort.SliceStable(s.Schedule, func(i, j int) bool { return s.Schedule[i].At < s.Schedule[j].At })
	return nil
}

// Actuators is the setpoint surface of a twin.
type Actuators interface {
	SetHeaterPower(float64) float64
	SetFeedFrequency(float64) float64
	SetSpoolPower(float64) float64
	SetWindDirection(int) int
}

// Apply writes the non-nil setpoints to tw.
func (p Setpoints) Apply(tw Actuators) {
	if p.HeaterPower != nil {
		tw.SetHeaterPower(*p.HeaterPower)
	}
	if p.FeedFrequency != nil {
		tw.SetFeedFrequency(*p.FeedFrequency)
	}
	if p.SpoolPower != nil {
		tw.SetSpoolPower(*p.SpoolPower)
	}
	if p.WindDirection != nil {
		tw.SetWindDirection(*p.WindDirection)
	}
}
