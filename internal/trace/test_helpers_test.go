package trace

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/cascade/internal/phys"
)

// createTestStore creates a store backed by a temp file.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun returns a run record with fixed identity fields.
func createTestRun(runID string, seed int64) RunRecord {
	return RunRecord{
		RunID:         runID,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Seed:          seed,
		EngineVersion: "0.1.0",
		Config:        `{"events":1}`,
	}
}

// createTestInteraction returns an elastic two-body interaction record
// with deterministic kinematics derived from seq.
func createTestInteraction(runID string, event, seq int, process string) InteractionRecord {
	mom := phys.FourVector{1.0 + float64(seq), 0.1, 0.2, 0.3}
	pos := phys.FourVector{0.5, float64(seq), 0, 0}
	state := ParticleState{PDG: 211, Momentum: mom, Position: pos}
	return InteractionRecord{
		RunID:   runID,
		Event:   event,
		Seq:     seq,
		Time:    0.1 * float64(seq+1),
		Process: process,
		In:      []ParticleState{state, state},
		Out:     []ParticleState{state, state},
		Digest:  "digest-placeholder",
	}
}
