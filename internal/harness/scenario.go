package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/config"
)

// Scenario is one declarative test case: a pinned configuration plus
// the expectations its run must satisfy.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Config      config.Config `yaml:"config"`
	Expect      []Assertion   `yaml:"expect"`
}

// Assertion is one expected outcome of a scenario run.
type Assertion struct {
	// Type selects the check; one of the Assert* constants.
	Type string `yaml:"type"`

	// Process names the interaction kind counted by process_count.
	Process string `yaml:"process,omitempty"`

	// Count pins an exact value. Mutually exclusive with Min and Max.
	Count *int `yaml:"count,omitempty"`

	// Min and Max bound the value inclusively; either may be omitted.
	Min *int `yaml:"min,omitempty"`
	Max *int `yaml:"max,omitempty"`

	// Tolerance overrides the config tolerance for conserved checks,
	// in GeV. Zero means use the run's own tolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Assertion types.
const (
	// AssertFinalCount checks the live particle count at the end of
	// every evolved event.
	AssertFinalCount = "final_count"

	// AssertInteractions checks the total number of committed
	// interactions across the run.
	AssertInteractions = "interactions"

	// AssertProcessCount checks how many committed interactions carry
	// the named process across the run.
	AssertProcessCount = "process_count"

	// AssertConserved audits the recorded interactions of every event:
	// outgoing four-momentum must balance incoming within tolerance.
	AssertConserved = "conserved"
)

// LoadScenario reads and parses a scenario YAML file. The config block
// is decoded over the package defaults, unknown fields are rejected,
// and the result is validated.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}

	scenario := Scenario{Config: *config.Default()}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Expect) == 0 {
		return fmt.Errorf("expect list is required and must be non-empty")
	}

	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if s.Config.Seed < 0 {
		return fmt.Errorf("config: seed must be pinned (seed >= 0) for a reproducible run")
	}

	for i, a := range s.Expect {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("expect[%d]: type is required", index)
	case AssertFinalCount, AssertInteractions:
		return validateBounds(index, a)
	case AssertProcessCount:
		if a.Process == "" {
			return fmt.Errorf("expect[%d]: process is required for %s", index, AssertProcessCount)
		}
		if !action.Process(a.Process).Known() {
			return fmt.Errorf("expect[%d]: unknown process %q", index, a.Process)
		}
		return validateBounds(index, a)
	case AssertConserved:
		if a.Tolerance < 0 {
			return fmt.Errorf("expect[%d]: tolerance must not be negative", index)
		}
		return nil
	default:
		return fmt.Errorf("expect[%d]: unknown assertion type %q", index, a.Type)
	}
}

// validateBounds checks the count / min / max combination of a counting
// assertion.
func validateBounds(index int, a *Assertion) error {
	if a.Count == nil && a.Min == nil && a.Max == nil {
		return fmt.Errorf("expect[%d]: %s requires count or min/max", index, a.Type)
	}
	if a.Count != nil && (a.Min != nil || a.Max != nil) {
		return fmt.Errorf("expect[%d]: count and min/max are mutually exclusive", index)
	}
	if a.Count != nil && *a.Count < 0 {
		return fmt.Errorf("expect[%d]: count must not be negative", index)
	}
	if a.Min != nil && *a.Min < 0 {
		return fmt.Errorf("expect[%d]: min must not be negative", index)
	}
	if a.Min != nil && a.Max != nil && *a.Max < *a.Min {
		return fmt.Errorf("expect[%d]: max %d is below min %d", index, *a.Max, *a.Min)
	}
	return nil
}
