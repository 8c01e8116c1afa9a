package trace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Filter narrows a timeline query. Zero values mean "no constraint".
type Filter struct {
	// Event selects a single event; negative means all events.
	Event int

	// Process selects one process tag ("elastic", "decay", ...).
	Process string

	// PDG keeps only interactions with the species among the incoming
	// or outgoing particles.
	PDG int32
}

// NoFilter matches every interaction of a run.
var NoFilter = Filter{Event: -1}

// ListRuns returns all recorded runs, newest first. Ties on timestamp
// fall back to run_id so the order is reproducible.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, created_at, seed, engine_version, config, events, interactions, digest
		FROM runs
		ORDER BY created_at DESC, run_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// ReadRun returns the run row for the given id.
func (s *Store) ReadRun(ctx context.Context, runID string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, seed, engine_version, config, events, interactions, digest
		FROM runs
		WHERE run_id = ?
	`, runID)

	rec, err := scanRunRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("run not found: %s", runID)
	}
	return rec, err
}

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, created_at, seed, engine_version, config, events, interactions, digest
		FROM runs
		ORDER BY created_at DESC, run_id ASC
		LIMIT 1
	`)

	rec, err := scanRunRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, errors.New("no runs recorded")
	}
	return rec, err
}

// ReadEvents returns the event summaries of a run in event order.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, event, start_count, end_count, interactions, digest
		FROM events
		WHERE run_id = ?
		ORDER BY event ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var rec EventRecord
		if err := rows.Scan(&rec.RunID, &rec.Event, &rec.StartCount, &rec.EndCount, &rec.Interactions, &rec.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, rec)
	}
	return events, rows.Err()
}

// EventDigests returns the digest column of a run's events in event
// order, the exact sequence RunDigest folds over.
func (s *Store) EventDigests(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT digest FROM events
		WHERE run_id = ?
		ORDER BY event ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query event digests: %w", err)
	}
	defer rows.Close()

	digests := []string{}
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan digest: %w", err)
		}
		digests = append(digests, d)
	}
	return digests, rows.Err()
}

// ReadInteractions returns a run's interactions in (event, seq) order,
// narrowed by the filter. Event and process constraints go into SQL;
// the PDG constraint needs the decoded states, so it is applied after
// scanning.
func (s *Store) ReadInteractions(ctx context.Context, runID string, f Filter) ([]InteractionRecord, error) {
	query := `
		SELECT run_id, event, seq, time, process, state_in, state_out, digest
		FROM interactions
	`
	clauses := []string{"run_id = ?"}
	args := []any{runID}
	if f.Event >= 0 {
		clauses = append(clauses, "event = ?")
		args = append(args, f.Event)
	}
	if f.Process != "" {
		clauses = append(clauses, "process = ?")
		args = append(args, f.Process)
	}
	query += "WHERE " + strings.Join(clauses, " AND ") + "\nORDER BY event ASC, seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	records := []InteractionRecord{}
	for rows.Next() {
		rec, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		if f.PDG != 0 && !involvesPDG(rec, f.PDG) {
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func involvesPDG(rec InteractionRecord, pdg int32) bool {
	for _, st := range rec.In {
		if int32(st.PDG) == pdg {
			return true
		}
	}
	for _, st := range rec.Out {
		if int32(st.PDG) == pdg {
			return true
		}
	}
	return false
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var rec RunRecord
	var createdAt string
	var digest sql.NullString
	if err := rows.Scan(&rec.RunID, &createdAt, &rec.Seed, &rec.EngineVersion, &rec.Config, &rec.Events, &rec.Interactions, &digest); err != nil {
		return RunRecord{}, fmt.Errorf("failed to scan run: %w", err)
	}
	return finishRunScan(rec, createdAt, digest)
}

func scanRunRow(row *sql.Row) (RunRecord, error) {
	var rec RunRecord
	var createdAt string
	var digest sql.NullString
	if err := row.Scan(&rec.RunID, &createdAt, &rec.Seed, &rec.EngineVersion, &rec.Config, &rec.Events, &rec.Interactions, &digest); err != nil {
		return RunRecord{}, err
	}
	return finishRunScan(rec, createdAt, digest)
}

func finishRunScan(rec RunRecord, createdAt string, digest sql.NullString) (RunRecord, error) {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to parse created_at %q: %w", createdAt, err)
	}
	rec.CreatedAt = t
	if digest.Valid {
		rec.Digest = digest.String
	}
	return rec, nil
}

func scanInteraction(rows *sql.Rows) (InteractionRecord, error) {
	var rec InteractionRecord
	var stateIn, stateOut string
	if err := rows.Scan(&rec.RunID, &rec.Event, &rec.Seq, &rec.Time, &rec.Process, &stateIn, &stateOut, &rec.Digest); err != nil {
		return InteractionRecord{}, fmt.Errorf("failed to scan interaction: %w", err)
	}
	if err := json.Unmarshal([]byte(stateIn), &rec.In); err != nil {
		return InteractionRecord{}, fmt.Errorf("failed to decode incoming states: %w", err)
	}
	if err := json.Unmarshal([]byte(stateOut), &rec.Out); err != nil {
		return InteractionRecord{}, fmt.Errorf("failed to decode outgoing states: %w", err)
	}
	return rec, nil
}
