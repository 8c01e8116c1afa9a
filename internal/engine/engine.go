// Package engine drives the discrete-event evolution of a particle
// ensemble: a fixed-timestep clock, a scheduler that orders and commits
// candidate actions optimistically, and the per-event driver that ties
// store, dynamics, conservation checks and observers together.
package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/conserve"
	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
)

// Params are the evolution controls shared by every event of a run.
type Params struct {
	// Events is the number of independent events to evolve.
	Events int

	// Dt is the tick width in fm.
	Dt float64

	// EndTime is the simulated time each event evolves until, in fm.
	EndTime float64

	// OutputInterval is the simulated time between intermediate reports,
	// in fm. Zero disables intermediate output.
	OutputInterval float64

	// Tolerance bounds the per-component four-momentum drift the
	// conservation monitor accepts, in GeV.
	Tolerance float64

	// CompactFraction is the holes-to-capacity ratio above which the
	// store is compacted between ticks.
	CompactFraction float64
}

// DefaultParams returns the documented defaults.
func DefaultParams() Params {
	return Params{
		Events:          1,
		Dt:              0.1,
		EndTime:         10,
		OutputInterval:  1,
		Tolerance:       phys.ReallySmall,
		CompactFraction: 0.5,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.Events < 1 {
		return fmt.Errorf("events must be at least 1, got %d", p.Events)
	}
	if p.Dt <= 0 {
		return fmt.Errorf("delta time must be positive, got %g", p.Dt)
	}
	if p.EndTime <= 0 {
		return fmt.Errorf("end time must be positive, got %g", p.EndTime)
	}
	if p.OutputInterval < 0 {
		return fmt.Errorf("output interval must not be negative, got %g", p.OutputInterval)
	}
	if p.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %g", p.Tolerance)
	}
	if p.CompactFraction <= 0 || p.CompactFraction > 1 {
		return fmt.Errorf("compact fraction must be in (0,1], got %g", p.CompactFraction)
	}
	return nil
}

// Engine evolves events. All state mutation happens on the goroutine that
// calls Run; nothing here is safe for concurrent use.
//
// The random source is deliberately shared across events and never reset
// between them, so an N-event run is one continuous random sequence and is
// reproducible from (seed, config) alone.
type Engine struct {
	store     *ensemble.Store
	table     *species.Table
	modus     Modus
	params    Params
	rng       *rand.Rand
	sched     *Scheduler
	observers []Observer
	log       *slog.Logger
	reportW   io.Writer
	wallNow   func() time.Time
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithGenerators registers the action generators. Slice order is the
// tie-break order for simultaneous candidates and must stay fixed for a
// run to be reproducible.
func WithGenerators(gens ...action.Generator) Option {
	return func(e *Engine) {
		e.sched = NewScheduler(gens...)
	}
}

// WithObservers registers lifecycle observers in notification order.
func WithObservers(obs ...Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, obs...)
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithReportWriter directs the per-event measurement table to w.
// Defaults to io.Discard.
func WithReportWriter(w io.Writer) Option {
	return func(e *Engine) {
		e.reportW = w
	}
}

// WithWallClock overrides the wall-time source used for elapsed-time
// columns. Tests inject a fixed clock to keep report output stable.
func WithWallClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.wallNow = now
	}
}

// New creates an engine over the given store, species table, modus and
// random source. The rng must be dedicated to this engine; sharing it
// with anything else breaks reproducibility.
func New(st *ensemble.Store, tab *species.Table, modus Modus, params Params, rng *rand.Rand, opts ...Option) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("engine params: %w", err)
	}
	if st == nil || tab == nil || modus == nil || rng == nil {
		return nil, fmt.Errorf("engine requires store, table, modus and rng")
	}
	e := &Engine{
		store:   st,
		table:   tab,
		modus:   modus,
		params:  params,
		rng:     rng,
		sched:   NewScheduler(),
		log:     slog.Default(),
		reportW: io.Discard,
		wallNow: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// EventSummary captures the outcome of one evolved event.
type EventSummary struct {
	Event          int
	StartTime      float64
	EndTime        float64
	InitialCount   int
	FinalCount     int
	Interactions   int
	Stale          int
	ScatteringRate float64
	Elapsed        time.Duration
}

// Summary captures the outcome of a whole run.
type Summary struct {
	Events       []EventSummary
	Interactions int
	Elapsed      time.Duration
}

// Run evolves the configured number of events. Cancellation is honored
// between events and between ticks. The returned summary covers all
// events that ran, including a partially evolved one on failure; the
// error, when non-nil, ended the run.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	runStart := e.wallNow()
	sum := &Summary{}
	e.log.Info("run starting",
		"modus", e.modus.String(),
		"events", e.params.Events,
		"dt", e.params.Dt,
		"end_time", e.params.EndTime)

	for ev := 0; ev < e.params.Events; ev++ {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("run canceled before event %d: %w", ev, err)
		}
		evSum, err := e.runEvent(ctx, ev)
		if evSum != nil {
			sum.Events = append(sum.Events, *evSum)
			sum.Interactions += evSum.Interactions
		}
		if err != nil {
			return sum, err
		}
	}

	sum.Elapsed = e.wallNow().Sub(runStart)
	e.log.Info("run finished",
		"events", len(sum.Events),
		"interactions", sum.Interactions,
		"elapsed", sum.Elapsed)
	return sum, nil
}

// runEvent drives one event through Init, Evolving and Finished.
func (e *Engine) runEvent(ctx context.Context, ev int) (*EventSummary, error) {
	evStart := e.wallNow()
	e.store.Reset()

	start, err := e.modus.InitialConditions(e.store, e.rng)
	if err != nil {
		return nil, fmt.Errorf("event %d: initial conditions: %w", ev, err)
	}
	clk := NewClock(start, e.params.Dt, e.params.OutputInterval)

	initial, err := conserve.Capture(e.store, e.table)
	if err != nil {
		return nil, fmt.Errorf("event %d: %w", ev, err)
	}

	sum := &EventSummary{Event: ev, StartTime: start, InitialCount: e.store.Len()}
	e.log.Debug("event initialized",
		"event", ev,
		"particles", sum.InitialCount,
		"start_time", start)

	for _, o := range e.observers {
		o.AtEventStart(e.store, ev)
	}

	rep := newReporter(e.reportW, start, e.wallNow)
	rep.header(ev)
	rep.line(clk.Now(), conserve.Report{}, 0, e.store.Len())

	observe := func(act *action.Action) {
		for _, o := range e.observers {
			o.AtInteraction(act)
		}
	}

	interactions, stale := 0, 0
	finish := func() {
		sum.EndTime = clk.Now()
		sum.FinalCount = e.store.Len()
		sum.Interactions = interactions
		sum.Stale = stale
		sum.ScatteringRate = scatteringRate(interactions, sum.FinalCount, clk.Now()-start)
		sum.Elapsed = e.wallNow().Sub(evStart)
	}

	for clk.Next() <= e.params.EndTime+phys.ReallySmall {
		if err := ctx.Err(); err != nil {
			finish()
			return sum, fmt.Errorf("run canceled at t=%.2f: %w", clk.Now(), err)
		}

		stats, err := e.sched.RunTick(e.store, clk, ev, e.rng, observe)
		interactions += stats.Committed
		stale += stats.Stale
		if err != nil {
			finish()
			return sum, err
		}

		e.modus.Propagate(e.store, clk.Next())
		due := clk.OutputDue()
		clk.Advance()

		devi, err := initial.Deviation(e.store, e.table)
		if err != nil {
			finish()
			return sum, fmt.Errorf("event %d: %w", ev, err)
		}
		if !devi.Conserved(e.params.Tolerance) {
			finish()
			return sum, newConservationError(ev, &conserve.ViolationError{
				Report:    devi,
				Tolerance: e.params.Tolerance,
				Time:      clk.Now(),
				Tick:      clk.Tick(),
			})
		}

		if due {
			rep.line(clk.Now(), devi, interactions, e.store.Len())
			for _, o := range e.observers {
				o.AtIntermediate(e.store, ev, clk)
			}
		}

		if e.store.Holes() > int(e.params.CompactFraction*float64(e.store.Capacity())) {
			e.store.Compact()
		}
	}

	finish()
	rep.summary(ev, clk.Now(), interactions, sum.FinalCount, sum.ScatteringRate)

	for _, o := range e.observers {
		o.AtEventEnd(e.store, ev)
	}

	e.log.Info("event finished",
		"event", ev,
		"interactions", interactions,
		"stale", stale,
		"particles", sum.FinalCount,
		"elapsed", sum.Elapsed)
	return sum, nil
}

// scatteringRate is interactions normalized per particle and unit time:
// 2*n/(particles*span), counting both partners of each scattering.
func scatteringRate(interactions, particles int, span float64) float64 {
	if span <= phys.ReallySmall || particles == 0 {
		return 0
	}
	return 2 * float64(interactions) / (float64(particles) * span)
}
