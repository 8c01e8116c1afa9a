package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cascade/internal/trace"
)

// Snapshot renders a result as canonical JSON for golden comparison.
// Kinematic times ride as IEEE-754 bit patterns and every record is
// pinned by its digest, so a golden file fixes the run bit-for-bit.
func Snapshot(res *Result) ([]byte, error) {
	events := make([]any, len(res.Events))
	for i, ev := range res.Events {
		events[i] = map[string]any{
			"event":        ev.Event,
			"start_count":  ev.StartCount,
			"end_count":    ev.EndCount,
			"interactions": ev.Interactions,
			"digest":       ev.Digest,
		}
	}
	interactions := make([]any, len(res.Interactions))
	for i, rec := range res.Interactions {
		interactions[i] = map[string]any{
			"event":   rec.Event,
			"seq":     rec.Seq,
			"time":    trace.Float64(rec.Time),
			"process": rec.Process,
			"digest":  rec.Digest,
		}
	}
	payload := map[string]any{
		"scenario":     res.Scenario,
		"seed":         res.Seed,
		"run_digest":   res.RunDigest,
		"events":       events,
		"interactions": interactions,
	}
	return trace.MarshalCanonical(payload)
}

// RunWithGolden executes the scenario and compares its snapshot against
// testdata/golden/<name>.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, sc *Scenario) *Result {
	t.Helper()

	res, err := Run(context.Background(), sc)
	if err != nil {
		t.Fatalf("run scenario %s: %v", sc.Name, err)
	}
	snap, err := Snapshot(res)
	if err != nil {
		t.Fatalf("snapshot scenario %s: %v", sc.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, sc.Name, snap)
	return res
}
