package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/harness"
)

// TestOptions holds options for the test command.
type TestOptions struct {
	*RootOptions
	Filter string // glob over scenario names
	Update bool   // rewrite golden snapshots instead of comparing
}

// TestSummary is the payload of the test command.
type TestSummary struct {
	harness.SuiteResult
	Updated int `json:"updated,omitempty"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir | scenario.yaml...>",
		Short: "Run scenario files and check their expectations",
		Long: `Run scenarios and check their expectations.

A directory argument runs every scenario under it; file arguments run
exactly those scenarios. A scenario pins its seed, so every run is
reproducible. A scenario passes when its expectations hold and its
snapshot matches the golden file in the golden/ directory next to it.
--update rewrites the snapshots instead of comparing them;
expectations are still checked.

Exit codes:
  0 - all scenarios passed
  1 - one or more scenarios failed
  2 - command error (path missing, invalid filter)

Examples:
  cascade test scenarios/
  cascade test scenarios/rho-gas.yaml scenarios/elastic-pair.yaml
  cascade test scenarios/ --filter 'rho-*'
  cascade test scenarios/ --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioSuite(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only scenarios whose name matches this glob")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite golden snapshots from this run")

	return cmd
}

func runScenarioSuite(cmd *cobra.Command, args []string, opts *TestOptions) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Filter != "" {
		if _, err := filepath.Match(opts.Filter, "probe"); err != nil {
			return WrapExitError(ExitCommandError, "invalid filter pattern", err)
		}
	}

	paths, err := collectScenarioPaths(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to collect scenarios", err)
	}
	if opts.Filter != "" {
		paths = filterScenarios(paths, opts.Filter)
	}
	if len(paths) == 0 {
		return NewExitError(ExitCommandError, "no scenarios match")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	summary := &TestSummary{}

	for _, path := range paths {
		summary.Total++
		name := scenarioName(path)

		sc, err := harness.LoadScenario(path)
		if err != nil {
			recordFailure(summary, formatter, name, path, []string{err.Error()})
			continue
		}

		res, err := harness.Run(ctx, sc)
		if err != nil {
			recordFailure(summary, formatter, sc.Name, path, []string{err.Error()})
			continue
		}

		errs := append([]string(nil), res.Errors...)

		snap, err := harness.Snapshot(res)
		if err != nil {
			errs = append(errs, fmt.Sprintf("snapshot: %v", err))
		} else {
			// Goldens live in a golden/ directory next to the scenario.
			goldenPath := filepath.Join(filepath.Dir(path), "golden", sc.Name+".golden")
			if opts.Update {
				if werr := writeGolden(goldenPath, snap); werr != nil {
					errs = append(errs, fmt.Sprintf("update golden: %v", werr))
				} else {
					summary.Updated++
				}
			} else if msg := compareGolden(goldenPath, snap); msg != "" {
				errs = append(errs, msg)
			}
		}

		if len(errs) > 0 {
			recordFailure(summary, formatter, sc.Name, path, errs)
			continue
		}

		summary.Passed++
		printOutcome(formatter, true, sc.Name)
		formatter.VerboseLog("  seed %d digest %s", res.Seed, shortDigest(res.RunDigest))
	}

	return outputTestSummary(formatter, summary, opts.Update)
}

// recordFailure books a failed scenario and prints its progress line.
func recordFailure(summary *TestSummary, formatter *OutputFormatter, name, path string, errs []string) {
	summary.Failed++
	summary.Failures = append(summary.Failures, harness.ScenarioFailure{
		Scenario: name,
		Path:     path,
		Errors:   errs,
	})
	printOutcome(formatter, false, name)
}

// printOutcome prints one progress line in text mode.
func printOutcome(formatter *OutputFormatter, pass bool, name string) {
	if formatter.Format == "json" {
		return
	}
	mark := "✓"
	if !pass {
		mark = "✗"
	}
	fmt.Fprintf(formatter.Writer, "%s %s\n", mark, name)
}

func outputTestSummary(formatter *OutputFormatter, summary *TestSummary, updated bool) error {
	if formatter.Format == "json" {
		if summary.Failed > 0 {
			response := CLIResponse{
				Status: "error",
				Data:   summary,
				Error: &CLIError{
					Code:    "SCENARIOS_FAILED",
					Message: fmt.Sprintf("%d of %d scenario(s) failed", summary.Failed, summary.Total),
				},
			}
			encoder := json.NewEncoder(formatter.Writer)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(response); err != nil {
				return err
			}
			return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", summary.Failed, summary.Total))
		}
		return formatter.Success(summary)
	}

	w := formatter.Writer
	fmt.Fprintln(w)

	if summary.Failed == 0 {
		if updated {
			fmt.Fprintf(w, "✓ %d scenario(s) passed, %d golden file(s) updated\n", summary.Passed, summary.Updated)
		} else {
			fmt.Fprintf(w, "✓ %d scenario(s) passed\n", summary.Passed)
		}
		return nil
	}

	fmt.Fprintf(w, "✗ %d of %d scenario(s) failed\n\n", summary.Failed, summary.Total)
	for _, f := range summary.Failures {
		fmt.Fprintf(w, "  %s (%s)\n", f.Scenario, f.Path)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "    %s\n", e)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", summary.Failed, summary.Total))
}

// collectScenarioPaths resolves the command arguments: a single
// directory is walked, explicit files are taken in the given order.
func collectScenarioPaths(args []string) ([]string, error) {
	if len(args) == 1 {
		info, err := os.Stat(args[0])
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return harness.FindScenarios(args[0])
		}
	}
	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory; pass either one directory or scenario files", path)
		}
	}
	return args, nil
}

// filterScenarios keeps the paths whose scenario name matches pattern.
func filterScenarios(paths []string, pattern string) []string {
	var kept []string
	for _, p := range paths {
		if ok, _ := filepath.Match(pattern, scenarioName(p)); ok {
			kept = append(kept, p)
		}
	}
	return kept
}

// scenarioName is the file base name without its extension.
func scenarioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// compareGolden checks a snapshot against its golden file.
func compareGolden(path string, snap []byte) string {
	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Sprintf("golden %s missing (run with --update to create it)", filepath.Base(path))
	}
	if err != nil {
		return fmt.Sprintf("read golden: %v", err)
	}
	if !bytes.Equal(want, snap) {
		return fmt.Sprintf("golden %s differs (run with --update to accept)", filepath.Base(path))
	}
	return ""
}

// writeGolden writes a snapshot, creating the golden directory on first
// use.
func writeGolden(path string, snap []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, snap, 0o644)
}
