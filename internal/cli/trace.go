package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/cascade/internal/trace"
)

// TraceOptions holds options for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	List     bool
	Event    int
	Process  string
	PDG      int32
}

// RunInfo is one run row in listings and timelines.
type RunInfo struct {
	RunID         string `json:"run_id"`
	CreatedAt     string `json:"created_at"`
	Seed          int64  `json:"seed"`
	EngineVersion string `json:"engine_version"`
	Events        int    `json:"events"`
	Interactions  int    `json:"interactions"`
	Finished      bool   `json:"finished"`
	Digest        string `json:"digest,omitempty"`
}

// RunListing is the payload of trace --list.
type RunListing struct {
	Runs  []RunInfo `json:"runs"`
	Total int       `json:"total"`
}

// TimelineEvent is one event row of a run timeline.
type TimelineEvent struct {
	Event        int    `json:"event"`
	StartCount   int    `json:"start_count"`
	EndCount     int    `json:"end_count"`
	Interactions int    `json:"interactions"`
	Digest       string `json:"digest"`
}

// TimelineInteraction is one interaction row of a run timeline.
type TimelineInteraction struct {
	Event   int     `json:"event"`
	Seq     int     `json:"seq"`
	Time    float64 `json:"time"`
	Process string  `json:"process"`
	In      []int32 `json:"in"`
	Out     []int32 `json:"out"`
}

// TraceTimeline is the payload of the trace command.
type TraceTimeline struct {
	Run          RunInfo               `json:"run"`
	Events       []TimelineEvent       `json:"events"`
	Interactions []TimelineInteraction `json:"interactions"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded runs",
		Long: `Inspect the trace of a recorded run.

Without --run the most recent run is shown. The timeline lists every
event with its interactions in commit order; --event, --process and
--pdg narrow the interaction listing. --list shows all recorded runs
instead of a timeline.

Exit codes:
  0 - trace printed
  2 - command error (database missing, run not found)

Examples:
  cascade trace --db runs.db
  cascade trace --db runs.db --list
  cascade trace --db runs.db --run 01890a5d-... --event 0
  cascade trace --db runs.db --process decay --pdg 113`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show this run instead of the latest")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs instead of a timeline")
	cmd.Flags().IntVar(&opts.Event, "event", -1, "show interactions of this event only")
	cmd.Flags().StringVar(&opts.Process, "process", "", "show interactions of this process only")
	cmd.Flags().Int32Var(&opts.PDG, "pdg", 0, "show interactions involving this PDG code only")

	return cmd
}

func runTrace(cmd *cobra.Command, opts *TraceOptions) error {
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

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.List {
		return listTraceRuns(ctx, formatter, ts)
	}

	var rec trace.RunRecord
	if opts.RunID != "" {
		rec, err = ts.ReadRun(ctx, opts.RunID)
	} else {
		rec, err = ts.LatestRun(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	events, err := ts.ReadEvents(ctx, rec.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	filter := trace.Filter{Event: opts.Event, Process: opts.Process, PDG: opts.PDG}
	ints, err := ts.ReadInteractions(ctx, rec.RunID, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read interactions", err)
	}

	timeline := TraceTimeline{
		Run:          describeRun(rec),
		Events:       make([]TimelineEvent, 0, len(events)),
		Interactions: make([]TimelineInteraction, 0, len(ints)),
	}
	for _, ev := range events {
		timeline.Events = append(timeline.Events, TimelineEvent{
			Event:        ev.Event,
			StartCount:   ev.StartCount,
			EndCount:     ev.EndCount,
			Interactions: ev.Interactions,
			Digest:       ev.Digest,
		})
	}
	for _, rec := range ints {
		timeline.Interactions = append(timeline.Interactions, describeInteraction(rec))
	}

	if formatter.Format == "json" {
		return formatter.Success(timeline)
	}

	return outputTimelineText(formatter, timeline)
}

// listTraceRuns outputs all recorded runs, newest first.
func listTraceRuns(ctx context.Context, formatter *OutputFormatter, ts *trace.Store) error {
	runs, err := ts.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	listing := RunListing{Runs: make([]RunInfo, 0, len(runs)), Total: len(runs)}
	for _, rec := range runs {
		listing.Runs = append(listing.Runs, describeRun(rec))
	}

	if formatter.Format == "json" {
		return formatter.Success(listing)
	}

	w := formatter.Writer
	if listing.Total == 0 {
		fmt.Fprintln(w, "No runs recorded in database.")
		return nil
	}

	fmt.Fprintf(w, "Recorded runs: %d\n\n", listing.Total)
	for _, run := range listing.Runs {
		state := "finished"
		if !run.Finished {
			state = "unfinished"
		}
		fmt.Fprintf(w, "%s  %s\n", run.RunID, state)
		fmt.Fprintf(w, "  Created: %s  Seed: %d  Engine: %s\n", run.CreatedAt, run.Seed, run.EngineVersion)
		fmt.Fprintf(w, "  Events: %d  Interactions: %d\n", run.Events, run.Interactions)
		if run.Digest != "" {
			fmt.Fprintf(w, "  Digest: %s\n", shortDigest(run.Digest))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// outputTimelineText prints a run timeline with interactions grouped
// under their event.
func outputTimelineText(formatter *OutputFormatter, timeline TraceTimeline) error {
	w := formatter.Writer
	run := timeline.Run

	state := "finished"
	if !run.Finished {
		state = "unfinished"
	}
	fmt.Fprintf(w, "Run %s (seed %d, engine %s, %s)\n", run.RunID, run.Seed, run.EngineVersion, state)
	fmt.Fprintf(w, "  Created: %s\n", run.CreatedAt)
	fmt.Fprintf(w, "  Events: %d, Interactions: %d\n", run.Events, run.Interactions)
	if run.Digest != "" {
		fmt.Fprintf(w, "  Digest: %s\n", shortDigest(run.Digest))
	}
	fmt.Fprintln(w)

	byEvent := make(map[int][]TimelineInteraction, len(timeline.Events))
	for _, in := range timeline.Interactions {
		byEvent[in.Event] = append(byEvent[in.Event], in)
	}

	for _, ev := range timeline.Events {
		fmt.Fprintf(w, "Event %d: %d -> %d particles, %d interaction(s)\n",
			ev.Event, ev.StartCount, ev.EndCount, ev.Interactions)
		for _, in := range byEvent[ev.Event] {
			fmt.Fprintf(w, "  [%d] t=%.3f %s: %s -> %s\n",
				in.Seq, in.Time, in.Process, joinPDG(in.In), joinPDG(in.Out))
		}
	}
	return nil
}

// describeRun flattens a run row for output.
func describeRun(rec trace.RunRecord) RunInfo {
	return RunInfo{
		RunID:         rec.RunID,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
		Seed:          rec.Seed,
		EngineVersion: rec.EngineVersion,
		Events:        rec.Events,
		Interactions:  rec.Interactions,
		Finished:      rec.Digest != "",
		Digest:        rec.Digest,
	}
}

// describeInteraction flattens an interaction row for output.
func describeInteraction(rec trace.InteractionRecord) TimelineInteraction {
	out := TimelineInteraction{
		Event:   rec.Event,
		Seq:     rec.Seq,
		Time:    rec.Time,
		Process: rec.Process,
		In:      make([]int32, 0, len(rec.In)),
		Out:     make([]int32, 0, len(rec.Out)),
	}
	for _, p := range rec.In {
		out.In = append(out.In, int32(p.PDG))
	}
	for _, p := range rec.Out {
		out.Out = append(out.Out, int32(p.PDG))
	}
	return out
}

// joinPDG renders PDG codes for a timeline line.
func joinPDG(codes []int32) string {
	parts := make([]string, 0, len(codes))
	for _, c := range codes {
		parts = append(parts, fmt.Sprintf("%d", c))
	}
	return strings.Join(parts, " ")
}
