// Package config loads, validates and serializes run configurations.
// A Config is pure data: the harness turns it into engine parameters,
// a modus and dynamics, and the trace store keeps its JSON form so a
// recorded run can be rebuilt bit-for-bit later.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/dynamics"
	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
)

// Modus names accepted by Validate.
const (
	ModusBox    = "box"
	ModusSphere = "sphere"
)

// Multiplicity is one entry of the initial content.
type Multiplicity struct {
	PDG   int32 `yaml:"pdg" json:"pdg"`
	Count int   `yaml:"count" json:"count"`
}

// Modus selects the initial condition and its geometry. Length applies
// to the box modus, Radius to the sphere modus; the inactive one is
// ignored.
type Modus struct {
	Name        string         `yaml:"name" json:"name" env:"CASCADE_MODUS"`
	Length      float64        `yaml:"length" json:"length" env:"CASCADE_LENGTH"`
	Radius      float64        `yaml:"radius" json:"radius" env:"CASCADE_RADIUS"`
	Temperature float64        `yaml:"temperature" json:"temperature" env:"CASCADE_TEMPERATURE"`
	Particles   []Multiplicity `yaml:"particles" json:"particles"`
}

// Store sizes the particle arena.
type Store struct {
	Capacity        int     `yaml:"capacity" json:"capacity" env:"CASCADE_STORE_CAPACITY"`
	CompactFraction float64 `yaml:"compact_fraction" json:"compact_fraction" env:"CASCADE_COMPACT_FRACTION"`
}

// Config is a complete run description.
type Config struct {
	// Events is the number of independent events to evolve.
	Events int `yaml:"events" json:"events" env:"CASCADE_EVENTS"`

	// DeltaTime is the tick width in fm.
	DeltaTime float64 `yaml:"delta_time" json:"delta_time" env:"CASCADE_DELTA_TIME"`

	// EndTime is the simulated time each event evolves until, in fm.
	EndTime float64 `yaml:"end_time" json:"end_time" env:"CASCADE_END_TIME"`

	// OutputInterval is the simulated time between intermediate outputs,
	// in fm. Zero disables intermediate output.
	OutputInterval float64 `yaml:"output_interval" json:"output_interval" env:"CASCADE_OUTPUT_INTERVAL"`

	// SigmaMb is the constant total cross section in millibarn.
	SigmaMb float64 `yaml:"sigma_mb" json:"sigma_mb" env:"CASCADE_SIGMA_MB"`

	// Testparticles scales the ensemble statistics; cross sections are
	// divided by it so rates stay physical.
	Testparticles int `yaml:"testparticles" json:"testparticles" env:"CASCADE_TESTPARTICLES"`

	// Tolerance bounds the conserved four-momentum drift in GeV.
	Tolerance float64 `yaml:"tolerance" json:"tolerance" env:"CASCADE_TOLERANCE"`

	// Seed feeds the run's random source. Negative means derive one
	// from the wall clock at build time.
	Seed int64 `yaml:"seed" json:"seed" env:"CASCADE_SEED"`

	Modus Modus `yaml:"modus" json:"modus"`
	Store Store `yaml:"store" json:"store"`

	// Catalog is a species definition file or directory. Empty selects
	// the built-in catalog.
	Catalog string `yaml:"catalog" json:"catalog" env:"CASCADE_CATALOG"`
}

// Default returns a runnable configuration: one event of a pion-pair
// box, evolved for 10 fm.
func Default() *Config {
	return &Config{
		Events:         1,
		DeltaTime:      0.1,
		EndTime:        10,
		OutputInterval: 1,
		SigmaMb:        dynamics.DefaultSigmaMb,
		Testparticles:  1,
		Tolerance:      phys.ReallySmall,
		Seed:           -1,
		Modus: Modus{
			Name:        ModusBox,
			Length:      10,
			Temperature: 0.15,
			Particles: []Multiplicity{
				{PDG: 211, Count: 1},
				{PDG: -211, Count: 1},
			},
		},
		Store: Store{
			Capacity:        ensemble.DefaultCapacity,
			CompactFraction: 0.5,
		},
	}
}

// Load reads a YAML configuration file over the defaults, then applies
// CASCADE_* environment overrides. Unknown YAML keys are an error, on
// the theory that a typoed key silently running the default is worse
// than failing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and applies environment
// overrides.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}

	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseEnv overlays CASCADE_* environment variables onto cfg. Unset
// variables leave the corresponding fields untouched.
func ParseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// FromJSON rebuilds a configuration from its stored JSON form.
func FromJSON(data string) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return nil, fmt.Errorf("decode stored config: %w", err)
	}
	return &cfg, nil
}

// JSON is the serialization stored with a recorded run.
func (c *Config) JSON() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	return string(data), nil
}

// Validate checks all field ranges and the modus shape.
func (c *Config) Validate() error {
	if c.Events < 1 {
		return fmt.Errorf("events must be at least 1, got %d", c.Events)
	}
	if c.DeltaTime <= 0 {
		return fmt.Errorf("delta_time must be positive, got %g", c.DeltaTime)
	}
	if c.EndTime <= 0 {
		return fmt.Errorf("end_time must be positive, got %g", c.EndTime)
	}
	if c.OutputInterval < 0 {
		return fmt.Errorf("output_interval must not be negative, got %g", c.OutputInterval)
	}
	if c.SigmaMb <= 0 {
		return fmt.Errorf("sigma_mb must be positive, got %g", c.SigmaMb)
	}
	if c.Testparticles < 1 {
		return fmt.Errorf("testparticles must be at least 1, got %d", c.Testparticles)
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", c.Tolerance)
	}
	if err := c.validateModus(); err != nil {
		return err
	}
	if c.Store.Capacity < 1 {
		return fmt.Errorf("store capacity must be at least 1, got %d", c.Store.Capacity)
	}
	if c.Store.CompactFraction <= 0 || c.Store.CompactFraction > 1 {
		return fmt.Errorf("compact_fraction must be in (0,1], got %g", c.Store.CompactFraction)
	}
	return nil
}

func (c *Config) validateModus() error {
	switch c.Modus.Name {
	case ModusBox:
		if c.Modus.Length <= 0 {
			return fmt.Errorf("box length must be positive, got %g", c.Modus.Length)
		}
	case ModusSphere:
		if c.Modus.Radius <= 0 {
			return fmt.Errorf("sphere radius must be positive, got %g", c.Modus.Radius)
		}
	default:
		return fmt.Errorf("unknown modus %q (want %q or %q)", c.Modus.Name, ModusBox, ModusSphere)
	}
	if c.Modus.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %g", c.Modus.Temperature)
	}
	if len(c.Modus.Particles) == 0 {
		return fmt.Errorf("modus particles must not be empty")
	}
	for i, m := range c.Modus.Particles {
		if m.Count < 1 {
			return fmt.Errorf("particles[%d]: count must be at least 1, got %d", i, m.Count)
		}
		if m.PDG == 0 {
			return fmt.Errorf("particles[%d]: pdg must not be zero", i)
		}
	}
	return nil
}
