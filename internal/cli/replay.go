package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/config"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/harness"
	"github.com/roach88/cascade/internal/trace"
)

// ReplayOptions holds options for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplayRunResult holds the verification outcome for one recorded run.
type ReplayRunResult struct {
	RunID         string `json:"run_id"`
	Seed          int64  `json:"seed"`
	Events        int    `json:"events"`
	Interactions  int    `json:"interactions"`
	Deterministic bool   `json:"deterministic"`
	Skipped       bool   `json:"skipped,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// ReplayResult aggregates verification across runs.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	TotalRuns        int               `json:"total_runs"`
	Verified         int               `json:"verified"`
	Skipped          int               `json:"skipped,omitempty"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded runs and verify their digests",
		Long: `Re-run recorded runs and verify determinism.

Each recorded run is rebuilt from its stored configuration and seed,
run again, and compared digest by digest against the stored trace. A
run recorded by a different engine version is reported as unverifiable
rather than re-run; a run that never finished is skipped.

Exit codes:
  0 - every verified run replayed identically
  1 - at least one run diverged
  2 - command error (database missing, run not found)

Examples:
  cascade replay --db runs.db
  cascade replay --db runs.db --run 01890a5d-ac96-774b-bcce-b302099a8057`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "verify a single run only")

	return cmd
}

func runReplay(cmd *cobra.Command, opts *ReplayOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Opening a missing path would create an empty database; refuse it
	// up front instead.
	if _, err := os.Stat(opts.Database); err != nil {
		return WrapExitError(ExitCommandError, "trace database not found", err)
	}

	ts, err := trace.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	defer func() { _ = ts.Close() }()

	var runs []trace.RunRecord
	if opts.RunID != "" {
		rec, err := ts.ReadRun(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read run %s", opts.RunID), err)
		}
		runs = []trace.RunRecord{rec}
	} else {
		runs, err = ts.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
	}

	if len(runs) == 0 {
		if opts.Format == "json" {
			result := ReplayResult{Runs: []ReplayRunResult{}, AllDeterministic: true}
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded in database.")
		return nil
	}

	// Replay logs are noise unless something goes wrong; keep them
	// behind --verbose.
	logW := io.Discard
	if opts.Verbose {
		logW = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(logW, &slog.HandlerOptions{Level: slog.LevelDebug}))

	result := ReplayResult{
		Runs:             make([]ReplayRunResult, 0, len(runs)),
		TotalRuns:        len(runs),
		AllDeterministic: true,
	}

	for _, rec := range runs {
		runResult, err := replayAndVerifyRun(ctx, ts, rec, logger)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", rec.RunID), err)
		}

		result.Runs = append(result.Runs, runResult)
		switch {
		case runResult.Skipped:
			result.Skipped++
		case runResult.Deterministic:
			result.Verified++
		default:
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAndVerifyRun rebuilds one run from its stored recipe, runs it
// again and compares digests event by event.
func replayAndVerifyRun(ctx context.Context, ts *trace.Store, rec trace.RunRecord, logger *slog.Logger) (ReplayRunResult, error) {
	out := ReplayRunResult{RunID: rec.RunID, Seed: rec.Seed}

	if rec.Digest == "" {
		out.Skipped = true
		out.Reason = "run never finished, nothing to verify"
		return out, nil
	}
	if rec.EngineVersion != engine.Version {
		out.Reason = fmt.Sprintf("recorded with engine %s, this binary is %s", rec.EngineVersion, engine.Version)
		return out, nil
	}

	cfg, err := config.FromJSON(rec.Config)
	if err != nil {
		return out, err
	}
	// The stored config already pins the resolved seed; assert the pair
	// anyway so a hand-edited database cannot silently verify.
	cfg.Seed = rec.Seed

	col := trace.NewCollector(rec.RunID, rec.Seed)
	sim, err := harness.NewSimulation(cfg,
		engine.WithObservers(col),
		engine.WithLogger(logger),
	)
	if err != nil {
		return out, fmt.Errorf("rebuild simulation: %w", err)
	}
	if _, err := sim.Engine.Run(ctx); err != nil {
		return out, fmt.Errorf("re-run: %w", err)
	}
	if err := col.Err(); err != nil {
		return out, err
	}

	replayed := col.Events()
	out.Events = len(replayed)
	out.Interactions = len(col.Interactions())

	// Event digests first: a mismatch names the first diverging event.
	stored, err := ts.EventDigests(ctx, rec.RunID)
	if err != nil {
		return out, err
	}
	if len(stored) != len(replayed) {
		out.Reason = fmt.Sprintf("event count diverged: recorded %d, replayed %d", len(stored), len(replayed))
		return out, nil
	}
	for i, want := range stored {
		if replayed[i].Digest != want {
			out.Reason = fmt.Sprintf("event %d digest diverged", i)
			return out, nil
		}
	}

	digest, err := col.RunDigest()
	if err != nil {
		return out, err
	}
	if digest != rec.Digest {
		out.Reason = "run digest diverged"
		return out, nil
	}

	out.Deterministic = true
	return out, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "REPLAY_DIVERGED",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		switch {
		case run.Skipped:
			status = "-"
		case !run.Deterministic:
			status = "✗"
		}
		fmt.Fprintf(w, "%s Run: %s\n", status, run.RunID)

		if verbose {
			fmt.Fprintf(w, "  Seed: %d\n", run.Seed)
			fmt.Fprintf(w, "  Events: %d\n", run.Events)
			fmt.Fprintf(w, "  Interactions: %d\n", run.Interactions)
		}
		if run.Reason != "" {
			fmt.Fprintf(w, "  %s\n", run.Reason)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		if result.Skipped > 0 {
			fmt.Fprintf(w, "✓ %d run(s) verified deterministic, %d skipped\n", result.Verified, result.Skipped)
		} else {
			fmt.Fprintln(w, "✓ All runs verified deterministic")
		}
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
