package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// BeginRun inserts the run row. The digest column stays NULL until
// FinishRun; a run without a digest is either still going or crashed.
//
// Idempotent: re-inserting the same run_id is a no-op.
func (s *Store) BeginRun(ctx context.Context, rec RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, created_at, seed, engine_version, config)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, rec.RunID, rec.CreatedAt.UTC().Format(time.RFC3339Nano), rec.Seed, rec.EngineVersion, rec.Config)
	if err != nil {
		return fmt.Errorf("failed to write run %s: %w", rec.RunID, err)
	}
	return nil
}

// WriteEvent inserts one event summary row.
//
// Idempotent: re-inserting the same (run_id, event) is a no-op.
func (s *Store) WriteEvent(ctx context.Context, rec EventRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (run_id, event, start_count, end_count, interactions, digest)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, event) DO NOTHING
	`, rec.RunID, rec.Event, rec.StartCount, rec.EndCount, rec.Interactions, rec.Digest)
	if err != nil {
		return fmt.Errorf("failed to write event %d of run %s: %w", rec.Event, rec.RunID, err)
	}
	return nil
}

// WriteInteraction inserts one interaction row. The in/out particle
// states are stored as JSON arrays.
//
// Idempotent: re-inserting the same (run_id, event, seq) is a no-op.
func (s *Store) WriteInteraction(ctx context.Context, rec InteractionRecord) error {
	stateIn, err := json.Marshal(rec.In)
	if err != nil {
		return fmt.Errorf("failed to marshal incoming states: %w", err)
	}
	stateOut, err := json.Marshal(rec.Out)
	if err != nil {
		return fmt.Errorf("failed to marshal outgoing states: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO interactions (run_id, event, seq, time, process, state_in, state_out, digest)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, event, seq) DO NOTHING
	`, rec.RunID, rec.Event, rec.Seq, rec.Time, rec.Process, string(stateIn), string(stateOut), rec.Digest)
	if err != nil {
		return fmt.Errorf("failed to write interaction %d/%d of run %s: %w", rec.Event, rec.Seq, rec.RunID, err)
	}
	return nil
}

// FinishRun stamps the run digest and final counters once all events
// have been written.
func (s *Store) FinishRun(ctx context.Context, runID, digest string, events, interactions int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET digest = ?, events = ?, interactions = ?
		WHERE run_id = ?
	`, digest, events, interactions, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}
