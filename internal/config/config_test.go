package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1, cfg.Events)
	assert.Equal(t, 0.1, cfg.DeltaTime)
	assert.Equal(t, ModusBox, cfg.Modus.Name)
	assert.Negative(t, cfg.Seed)
}

func TestParse_OverridesDefaults(t *testing.T) {
	src := `
events: 3
end_time: 20
seed: 42
modus:
  name: sphere
  radius: 5
  temperature: 0.2
  particles:
    - pdg: 111
      count: 10
`
	cfg, err := Parse([]byte(src))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3, cfg.Events)
	assert.Equal(t, 20.0, cfg.EndTime)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, ModusSphere, cfg.Modus.Name)
	assert.Equal(t, 5.0, cfg.Modus.Radius)
	require.Len(t, cfg.Modus.Particles, 1)
	assert.Equal(t, int32(111), cfg.Modus.Particles[0].PDG)

	// Untouched fields keep their defaults.
	assert.Equal(t, 0.1, cfg.DeltaTime)
	assert.Equal(t, 1, cfg.Testparticles)
}

func TestParse_UnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte("event: 3\n"))
	require.Error(t, err)
}

func TestParse_MalformedYAML(t *testing.T) {
	_, err := Parse([]byte("events: [not an int\n"))
	require.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("events: 2\nseed: 7\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Events)
	assert.Equal(t, int64(7), cfg.Seed)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestParseEnv_Overrides(t *testing.T) {
	t.Setenv("CASCADE_EVENTS", "5")
	t.Setenv("CASCADE_SEED", "99")
	t.Setenv("CASCADE_TEMPERATURE", "0.3")

	cfg, err := Parse([]byte("events: 2\nseed: 1\n"))
	require.NoError(t, err)

	// Environment wins over file values.
	assert.Equal(t, 5, cfg.Events)
	assert.Equal(t, int64(99), cfg.Seed)
	assert.Equal(t, 0.3, cfg.Modus.Temperature)
}

func TestParseEnv_UnsetLeavesValues(t *testing.T) {
	cfg := Default()
	cfg.Events = 4

	require.NoError(t, ParseEnv(cfg))
	assert.Equal(t, 4, cfg.Events)
}

func TestConfig_JSON_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Seed = 42
	cfg.Modus.Name = ModusSphere
	cfg.Modus.Radius = 3

	data, err := cfg.JSON()
	require.NoError(t, err)

	got, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestFromJSON_Malformed(t *testing.T) {
	_, err := FromJSON("{nope")
	require.Error(t, err)
}

func TestConfig_Validate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero events", func(c *Config) { c.Events = 0 }},
		{"zero delta_time", func(c *Config) { c.DeltaTime = 0 }},
		{"negative end_time", func(c *Config) { c.EndTime = -1 }},
		{"negative output_interval", func(c *Config) { c.OutputInterval = -0.5 }},
		{"zero sigma_mb", func(c *Config) { c.SigmaMb = 0 }},
		{"zero testparticles", func(c *Config) { c.Testparticles = 0 }},
		{"zero tolerance", func(c *Config) { c.Tolerance = 0 }},
		{"unknown modus", func(c *Config) { c.Modus.Name = "tube" }},
		{"zero temperature", func(c *Config) { c.Modus.Temperature = 0 }},
		{"empty particles", func(c *Config) { c.Modus.Particles = nil }},
		{"zero count", func(c *Config) { c.Modus.Particles = []Multiplicity{{PDG: 211, Count: 0}} }},
		{"zero pdg", func(c *Config) { c.Modus.Particles = []Multiplicity{{PDG: 0, Count: 1}} }},
		{"zero capacity", func(c *Config) { c.Store.Capacity = 0 }},
		{"compact fraction above one", func(c *Config) { c.Store.CompactFraction = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_Validate_BoxNeedsLength(t *testing.T) {
	cfg := Default()
	cfg.Modus.Name = ModusBox
	cfg.Modus.Length = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_SphereNeedsRadius(t *testing.T) {
	cfg := Default()
	cfg.Modus.Name = ModusSphere
	cfg.Modus.Radius = 0
	assert.Error(t, cfg.Validate())

	cfg.Modus.Radius = 4
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_SphereIgnoresLength(t *testing.T) {
	cfg := Default()
	cfg.Modus.Name = ModusSphere
	cfg.Modus.Radius = 4
	cfg.Modus.Length = 0
	assert.NoError(t, cfg.Validate())
}
