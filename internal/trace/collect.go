package trace

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ensemble"
)

// NewRunID returns a time-ordered unique run identifier.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// Collector is an engine observer that accumulates the trace of a run
// in memory: one record per committed interaction and one summary per
// event, each with its digest computed on the spot.
//
// Digest computation can fail only on a marshaling bug, but observer
// hooks cannot return errors, so the first failure is held and every
// later hook becomes a no-op. Check Err before trusting the records.
type Collector struct {
	runID string
	seed  int64

	event        int
	startCount   int
	pending      []string
	events       []EventRecord
	interactions []InteractionRecord
	err          error
}

var _ engine.Observer = (*Collector)(nil)

// NewCollector returns a collector for the given run identity.
func NewCollector(runID string, seed int64) *Collector {
	return &Collector{runID: runID, seed: seed}
}

// RunID returns the identifier the records are tagged with.
func (c *Collector) RunID() string { return c.runID }

// AtEventStart implements engine.Observer.
func (c *Collector) AtEventStart(st *ensemble.Store, event int) {
	if c.err != nil {
		return
	}
	c.event = event
	c.startCount = st.Len()
	c.pending = c.pending[:0]
}

// AtInteraction implements engine.Observer.
func (c *Collector) AtInteraction(act *action.Action) {
	if c.err != nil {
		return
	}
	rec := NewInteractionRecord(c.runID, c.event, len(c.pending), act)
	digest, err := InteractionDigest(rec)
	if err != nil {
		c.err = err
		return
	}
	rec.Digest = digest
	c.pending = append(c.pending, digest)
	c.interactions = append(c.interactions, rec)
}

// AtEventEnd implements engine.Observer.
func (c *Collector) AtEventEnd(st *ensemble.Store, event int) {
	if c.err != nil {
		return
	}
	digest, err := EventDigest(event, c.startCount, st.Len(), c.pending)
	if err != nil {
		c.err = err
		return
	}
	c.events = append(c.events, EventRecord{
		RunID:        c.runID,
		Event:        event,
		StartCount:   c.startCount,
		EndCount:     st.Len(),
		Interactions: len(c.pending),
		Digest:       digest,
	})
}

// AtIntermediate implements engine.Observer.
func (c *Collector) AtIntermediate(st *ensemble.Store, event int, clk *engine.Clock) {}

// Events returns the collected event summaries in event order.
func (c *Collector) Events() []EventRecord { return c.events }

// Interactions returns the collected interactions in commit order.
func (c *Collector) Interactions() []InteractionRecord { return c.interactions }

// EventDigests returns the digests of the collected events in order.
func (c *Collector) EventDigests() []string {
	digests := make([]string, len(c.events))
	for i, ev := range c.events {
		digests[i] = ev.Digest
	}
	return digests
}

// RunDigest folds the collected events into the run-level digest.
func (c *Collector) RunDigest() (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return RunDigest(c.seed, engine.Version, c.EventDigests())
}

// Err returns the first digest failure, if any.
func (c *Collector) Err() error { return c.err }
