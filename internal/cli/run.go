package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/config"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/harness"
	"github.com/roach88/cascade/internal/output"
	"github.com/roach88/cascade/internal/trace"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	*RootOptions
	Database string // SQLite trace database path (optional)
	Binary   string // binary particle block output path (optional)
}

// RunResult is the payload reported after a completed run.
type RunResult struct {
	Seed         int64  `json:"seed"`
	Events       int    `json:"events"`
	Interactions int    `json:"interactions"`
	Elapsed      string `json:"elapsed"`
	RunID        string `json:"run_id,omitempty"`
	RunDigest    string `json:"run_digest,omitempty"`
	Database     string `json:"database,omitempty"`
	Binary       string `json:"binary,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [config.yaml]",
		Short: "Run a simulation",
		Long: `Run a simulation from a configuration file.

Without a configuration file the built-in defaults are used. CASCADE_*
environment variables override either source. A negative seed is
resolved from the wall clock before the run starts, so a recorded
trace always carries the seed that actually drove the run.

Exit codes:
  0 - run completed
  1 - run aborted (conservation violation, interrupt)
  2 - command error (unreadable config, database, output file)

Examples:
  cascade run                          # built-in defaults
  cascade run box.yaml                 # explicit configuration
  cascade run box.yaml --db runs.db    # record the trace
  cascade run box.yaml --bin parts.bin # binary particle blocks`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run trace to this SQLite database")
	cmd.Flags().StringVar(&opts.Binary, "bin", "", "write binary particle blocks to this file")

	return cmd
}

func runSimulation(cmd *cobra.Command, args []string, opts *RunOptions) error {
	// Structured logs go to stderr so stdout stays parseable.
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	cfg, err := loadRunConfig(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	// Pin a wall-clock seed before anything observes the config: the
	// recorder stores the config verbatim, and replay needs the seed
	// that actually drove the run.
	if cfg.Seed < 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	// Setup signal handling for graceful shutdown.
	// Use command's context if available (for testing), otherwise create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// The per-event measurement table prints as the run progresses. In
	// JSON mode it moves to stderr so stdout stays a single document.
	reportW := cmd.OutOrStdout()
	if opts.Format == "json" {
		reportW = cmd.ErrOrStderr()
	}

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithReportWriter(reportW),
	}

	var rec *trace.Recorder
	if opts.Database != "" {
		ts, err := trace.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer func() {
			if cerr := ts.Close(); cerr != nil {
				logger.Error("closing trace database", "error", cerr)
			}
		}()

		rec, err = beginTrace(ctx, ts, cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to begin trace run", err)
		}
		engOpts = append(engOpts, engine.WithObservers(rec))
	}

	var bin *output.Binary
	if opts.Binary != "" {
		f, err := os.Create(opts.Binary)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create binary output", err)
		}
		defer f.Close()

		bin, err = output.NewBinary(f)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to write binary header", err)
		}
		engOpts = append(engOpts, engine.WithObservers(bin))
	}

	sim, err := harness.NewSimulation(cfg, engOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build simulation", err)
	}

	sum, err := sim.Engine.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return WrapExitError(ExitFailure, "run interrupted", err)
		}
		return WrapExitError(ExitFailure, "run failed", err)
	}

	result := RunResult{
		Seed:         cfg.Seed,
		Events:       len(sum.Events),
		Interactions: sum.Interactions,
		Elapsed:      sum.Elapsed.String(),
	}

	if rec != nil {
		digest, err := rec.Finish(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to finish trace run", err)
		}
		result.RunID = rec.RunID()
		result.RunDigest = digest
		result.Database = opts.Database
	}
	if bin != nil {
		if err := bin.Err(); err != nil {
			return WrapExitError(ExitCommandError, "binary output failed", err)
		}
		result.Binary = opts.Binary
	}

	return outputRunResult(cmd, opts, result)
}

// loadRunConfig resolves the run configuration: an explicit file when
// given, built-in defaults otherwise, environment overrides on top of
// either.
func loadRunConfig(args []string) (*config.Config, error) {
	if len(args) == 1 {
		return config.Load(args[0])
	}
	cfg := config.Default()
	if err := config.ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// beginTrace opens a new run row and returns the recorder wired to it.
func beginTrace(ctx context.Context, ts *trace.Store, cfg *config.Config) (*trace.Recorder, error) {
	runID, err := trace.NewRunID()
	if err != nil {
		return nil, err
	}
	cfgJSON, err := cfg.JSON()
	if err != nil {
		return nil, err
	}
	return trace.NewRecorder(ctx, ts, trace.RunRecord{
		RunID:         runID,
		CreatedAt:     time.Now().UTC(),
		Seed:          cfg.Seed,
		EngineVersion: engine.Version,
		Config:        cfgJSON,
	})
}

// outputRunResult outputs the run summary in the configured format.
func outputRunResult(cmd *cobra.Command, opts *RunOptions, result RunResult) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run complete: %d event(s), %d interaction(s) in %s (seed %d)\n",
		result.Events, result.Interactions, result.Elapsed, result.Seed)
	if result.RunID != "" {
		fmt.Fprintf(w, "Trace recorded: run %s digest %s\n", result.RunID, shortDigest(result.RunDigest))
	}
	if result.Binary != "" {
		fmt.Fprintf(w, "Binary output: %s\n", result.Binary)
	}
	return nil
}

// shortDigest abbreviates a hex digest for text output.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
