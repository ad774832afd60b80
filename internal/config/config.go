/*
Package config loads simulation parameters from a YAML file.

Fields missing from the file keep the values of Default, so a file only needs
to name what it changes:

	grid:
	  width: 60
	  height: 40
	population: 120
	masks:
	  policy: fixed
	  level: surgical
*/
package config

import (
	"fmt"
	"log"
	"os"

	"gopkg.in/yaml.v3"

	"epigrid/internal/sim"
)

const (
	PolicyRandom = "random"
	PolicyFixed  = "fixed"
)

// File mirrors the YAML layout.
type File struct {
	Grid struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"grid"`
	Population int   `yaml:"population"`
	Steps      int   `yaml:"steps"`
	Seed       int64 `yaml:"seed"`

	ExposureDistance       float64 `yaml:"exposure_distance"`
	MaxStep                int     `yaml:"max_step"`
	BaseTransmissionChance float64 `yaml:"base_transmission_chance"`
	IncubationPeriod       int     `yaml:"incubation_period"`

	Masks struct {
		Policy string `yaml:"policy"`
		Level  string `yaml:"level"`
	} `yaml:"masks"`

	Distancing struct {
		Policy    string  `yaml:"policy"`
		Adherence float64 `yaml:"adherence"`
	} `yaml:"distancing"`

	Progression struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"progression"`

	Hospital struct {
		Capacity           int     `yaml:"capacity"`
		OverloadMultiplier float64 `yaml:"overload_multiplier"`
	} `yaml:"hospital"`

	// Placements seeds agents at fixed cells instead of random ones.
	Placements []Placement `yaml:"placements"`
}

// Placement is one scripted agent position.
type Placement struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// Default returns the reference scenario.
func Default() File {
	var f File
	f.Grid.Width = 100
	f.Grid.Height = 100
	f.Population = 50
	f.Steps = 100
	f.ExposureDistance = 3
	f.MaxStep = 3
	f.BaseTransmissionChance = 0.25
	f.IncubationPeriod = 4
	f.Masks.Policy = PolicyRandom
	f.Masks.Level = sim.MaskNone.String()
	f.Distancing.Policy = PolicyRandom
	f.Distancing.Adherence = 1
	f.Hospital.OverloadMultiplier = 1
	return f
}

// Load reads path over the defaults.
func Load(path string) (File, error) {
	f := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config %s: %w", path, err)
	}
	return f, nil
}

// SimConfig converts the file into engine parameters. Invalid values are
// reported as *sim.ConfigError.
func (f File) SimConfig() (sim.Config, error) {
	cfg := sim.Config{
		Width:                       f.Grid.Width,
		Height:                      f.Grid.Height,
		Population:                  f.Population,
		Steps:                       f.Steps,
		Seed:                        f.Seed,
		ExposureDistance:            f.ExposureDistance,
		MaxStep:                     f.MaxStep,
		BaseTransmission:            f.BaseTransmissionChance,
		IncubationPeriod:            f.IncubationPeriod,
		HospitalCapacity:            f.Hospital.Capacity,
		DeathRateOverloadMultiplier: f.Hospital.OverloadMultiplier,
	}

	switch f.Masks.Policy {
	case PolicyRandom:
		cfg.Masks.Random = true
	case PolicyFixed:
		level, ok := sim.ParseMaskLevel(f.Masks.Level)
		if !ok {
			return cfg, &sim.ConfigError{Field: "masks.level", Reason: fmt.Sprintf("unknown level %q", f.Masks.Level)}
		}
		cfg.Masks.Level = level
	default:
		return cfg, &sim.ConfigError{Field: "masks.policy", Reason: fmt.Sprintf("unknown policy %q", f.Masks.Policy)}
	}

	switch f.Distancing.Policy {
	case PolicyRandom:
		cfg.Distancing.Random = true
	case PolicyFixed:
		cfg.Distancing.Adherence = f.Distancing.Adherence
	default:
		return cfg, &sim.ConfigError{Field: "distancing.policy", Reason: fmt.Sprintf("unknown policy %q", f.Distancing.Policy)}
	}

	if f.Progression.Enabled {
		cfg.Progression = sim.DefaultProgression()
	}
	if len(f.Placements) > 0 {
		cfg.Population = len(f.Placements)
	}

	return cfg, cfg.Validate()
}

// Points returns the scripted placements, if any.
func (f File) Points() []sim.Point {
	if len(f.Placements) == 0 {
		return nil
	}
	points := make([]sim.Point, len(f.Placements))
	for i, p := range f.Placements {
		points[i] = sim.Point{X: p.X, Y: p.Y}
	}
	return points
}

// NewSimulation builds the engine described by the file and seeds the scripted
// placements, if any. Without placements the caller seeds the population.
func (f File) NewSimulation(logger *log.Logger) (*sim.Simulation, error) {
	cfg, err := f.SimConfig()
	if err != nil {
		return nil, err
	}
	cfg.Logger = logger
	s, err := sim.New(cfg)
	if err != nil {
		return nil, err
	}
	if points := f.Points(); points != nil {
		if err := s.SeedAt(points); err != nil {
			return nil, err
		}
	}
	return s, nil
}
