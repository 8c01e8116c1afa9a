package trace

import (
	"context"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ensemble"
)

// Recorder is an engine observer that persists the trace as the run
// progresses: the run row up front, each interaction as it commits,
// each event summary as the event ends, and the run digest on Finish.
// A crash mid-run therefore leaves a readable partial trace whose run
// row has no digest.
//
// Observer hooks cannot return errors, so the first write failure is
// held and every later hook becomes a no-op; Finish reports it. The
// context given to NewRecorder bounds the writes issued from hooks.
type Recorder struct {
	ctx   context.Context
	store *Store
	col   *Collector
	err   error
}

var _ engine.Observer = (*Recorder)(nil)

// NewRecorder writes the run row and returns a recorder persisting to
// the given store.
func NewRecorder(ctx context.Context, store *Store, run RunRecord) (*Recorder, error) {
	if err := store.BeginRun(ctx, run); err != nil {
		return nil, err
	}
	return &Recorder{
		ctx:   ctx,
		store: store,
		col:   NewCollector(run.RunID, run.Seed),
	}, nil
}

// RunID returns the identifier the trace is recorded under.
func (r *Recorder) RunID() string { return r.col.RunID() }

// AtEventStart implements engine.Observer.
func (r *Recorder) AtEventStart(st *ensemble.Store, event int) {
	if r.err != nil {
		return
	}
	r.col.AtEventStart(st, event)
}

// AtInteraction implements engine.Observer.
func (r *Recorder) AtInteraction(act *action.Action) {
	if r.err != nil {
		return
	}
	r.col.AtInteraction(act)
	if err := r.col.Err(); err != nil {
		r.err = err
		return
	}
	recs := r.col.Interactions()
	r.err = r.store.WriteInteraction(r.ctx, recs[len(recs)-1])
}

// AtEventEnd implements engine.Observer.
func (r *Recorder) AtEventEnd(st *ensemble.Store, event int) {
	if r.err != nil {
		return
	}
	r.col.AtEventEnd(st, event)
	if err := r.col.Err(); err != nil {
		r.err = err
		return
	}
	evs := r.col.Events()
	r.err = r.store.WriteEvent(r.ctx, evs[len(evs)-1])
}

// AtIntermediate implements engine.Observer.
func (r *Recorder) AtIntermediate(st *ensemble.Store, event int, clk *engine.Clock) {}

// Finish computes the run digest and stamps it on the run row. It
// returns the first error seen across all hooks, so callers get a
// failed recording even when the simulation itself succeeded.
func (r *Recorder) Finish(ctx context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	digest, err := r.col.RunDigest()
	if err != nil {
		return "", err
	}
	evs := r.col.Events()
	if err := r.store.FinishRun(ctx, r.col.RunID(), digest, len(evs), len(r.col.Interactions())); err != nil {
		return "", err
	}
	return digest, nil
}

// Err returns the first hook failure, if any.
func (r *Recorder) Err() error { return r.err }
