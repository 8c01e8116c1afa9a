package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/config"
	"github.com/roach88/cascade/internal/harness"
)

// ValidationResult holds the outcome of validating one configuration.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Config  string   `json:"config"`
	Modus   string   `json:"modus,omitempty"`
	Events  int      `json:"events,omitempty"`
	Species int      `json:"species,omitempty"`
	Seed    *int64   `json:"seed,omitempty"` // nil when the seed comes from the wall clock
	Errors  []string `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Validate a configuration without running it",
		Long: `Validate a run configuration.

Checks the YAML shape and value ranges, compiles the particle catalog
it references and resolves every species in the initial content. A
valid configuration is one the run command would accept, environment
overrides included.

Exit codes:
  0 - configuration valid
  1 - configuration invalid
  2 - command error (file not readable)

Examples:
  cascade validate box.yaml
  cascade validate box.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd, args[0], rootOpts)
		},
	}

	return cmd
}

func validateConfig(cmd *cobra.Command, path string, opts *RootOptions) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return outputValidateError(formatter, "CONFIG_UNREADABLE", fmt.Sprintf("cannot read %s", path), err.Error())
	}

	cfg, err := config.Parse(data)
	if err != nil {
		return outputValidationFailure(formatter, path, []string{err.Error()})
	}
	if err := cfg.Validate(); err != nil {
		return outputValidationFailure(formatter, path, []string{err.Error()})
	}

	// Dry build: compiles the catalog, resolves every species in the
	// initial content and constructs the modus. Nothing runs.
	sim, err := harness.NewSimulation(cfg)
	if err != nil {
		return outputValidationFailure(formatter, path, []string{err.Error()})
	}

	result := ValidationResult{
		Valid:   true,
		Config:  path,
		Modus:   sim.Modus.String(),
		Events:  cfg.Events,
		Species: sim.Table.Len(),
	}
	if cfg.Seed >= 0 {
		result.Seed = &cfg.Seed
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s is valid\n", path)
	fmt.Fprintf(w, "  Modus: %s\n", result.Modus)
	fmt.Fprintf(w, "  Events: %d\n", result.Events)
	fmt.Fprintf(w, "  Species: %d\n", result.Species)
	if result.Seed != nil {
		fmt.Fprintf(w, "  Seed: %d\n", *result.Seed)
	} else {
		fmt.Fprintln(w, "  Seed: wall clock")
	}
	return nil
}

// outputValidateError outputs a command-level validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Unreadable input is a command-level error (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationFailure outputs the errors of an invalid configuration.
func outputValidationFailure(formatter *OutputFormatter, path string, errs []string) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Config: path,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    "INVALID_CONFIG",
				Message: errs[0],
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintf(formatter.Writer, "✗ %s is invalid\n", path)
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		fmt.Fprintf(formatter.Writer, "  %s\n", e)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
