package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/catalog"
	"github.com/roach88/cascade/internal/config"
	"github.com/roach88/cascade/internal/dynamics"
	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/modus"
	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
	"github.com/roach88/cascade/internal/trace"
)

// Simulation is a fully wired run: catalog, modus, store, seeded random
// source and the engine itself, all built from one configuration.
type Simulation struct {
	Config *config.Config
	Table  *species.Table
	Modus  engine.Modus
	Store  *ensemble.Store
	Seed   int64
	RNG    *rand.Rand
	Engine *engine.Engine
}

// NewSimulation builds a runnable simulation from cfg. A negative seed
// is replaced with one derived from the wall clock; the resolved value
// is recorded in Seed. Extra engine options are applied after the
// defaults, so callers can attach observers, loggers and writers.
func NewSimulation(cfg *config.Config, opts ...engine.Option) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tab, err := loadCatalog(cfg.Catalog)
	if err != nil {
		return nil, err
	}
	mod, err := buildModus(tab, cfg)
	if err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed < 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)))

	st := ensemble.New(ensemble.WithCapacity(cfg.Store.Capacity))

	params := engine.Params{
		Events:          cfg.Events,
		Dt:              cfg.DeltaTime,
		EndTime:         cfg.EndTime,
		OutputInterval:  cfg.OutputInterval,
		Tolerance:       cfg.Tolerance,
		CompactFraction: cfg.Store.CompactFraction,
	}

	// Decays before scatterings: registration order is the tie-break
	// for simultaneous candidates and is part of the run's identity.
	gens := []action.Generator{
		dynamics.NewDecayFinder(tab),
		dynamics.NewScatterFinder(tab,
			dynamics.WithSigmaMb(cfg.SigmaMb),
			dynamics.WithTestparticles(cfg.Testparticles)),
	}

	engOpts := append([]engine.Option{engine.WithGenerators(gens...)}, opts...)
	eng, err := engine.New(st, tab, mod, params, rng, engOpts...)
	if err != nil {
		return nil, err
	}

	return &Simulation{
		Config: cfg,
		Table:  tab,
		Modus:  mod,
		Store:  st,
		Seed:   seed,
		RNG:    rng,
		Engine: eng,
	}, nil
}

// loadCatalog resolves the species table: the built-in catalog for an
// empty path, otherwise a CUE file or a directory of CUE files.
func loadCatalog(path string) (*species.Table, error) {
	if path == "" {
		return catalog.Default()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	if info.IsDir() {
		return catalog.LoadDir(path)
	}
	return catalog.Load(path)
}

// buildModus constructs the configured initial-condition provider.
func buildModus(tab *species.Table, cfg *config.Config) (engine.Modus, error) {
	content := make([]modus.Multiplicity, len(cfg.Modus.Particles))
	for i, m := range cfg.Modus.Particles {
		content[i] = modus.Multiplicity{PDG: phys.PDG(m.PDG), Count: m.Count}
	}
	switch cfg.Modus.Name {
	case config.ModusBox:
		return modus.NewBox(tab, cfg.Modus.Length, cfg.Modus.Temperature, content)
	case config.ModusSphere:
		return modus.NewSphere(tab, cfg.Modus.Radius, cfg.Modus.Temperature, content)
	default:
		return nil, fmt.Errorf("unsupported modus %q", cfg.Modus.Name)
	}
}

// Run executes a scenario: build the simulation from its pinned
// configuration, evolve every event with a trace collector attached,
// then evaluate the expectations. Engine failures and failed
// expectations land in the result's error list; the returned error is
// reserved for harness breakage such as an unloadable catalog.
func Run(ctx context.Context, sc *Scenario) (*Result, error) {
	runID, err := trace.NewRunID()
	if err != nil {
		return nil, err
	}

	cfg := sc.Config
	col := trace.NewCollector(runID, cfg.Seed)
	sim, err := NewSimulation(&cfg,
		engine.WithObservers(col),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	result := NewResult(sc.Name, sim.Seed)
	sum, err := sim.Engine.Run(ctx)
	result.Summary = sum
	if err != nil {
		result.AddError(fmt.Sprintf("run: %v", err))
	}
	if err := col.Err(); err != nil {
		result.AddError(fmt.Sprintf("trace: %v", err))
	}

	result.Events = col.Events()
	result.Interactions = col.Interactions()
	if result.Pass {
		digest, err := col.RunDigest()
		if err != nil {
			result.AddError(fmt.Sprintf("trace: %v", err))
		} else {
			result.RunDigest = digest
		}
	}

	for _, msg := range evaluateAssertions(result, sc) {
		result.AddError(msg)
	}
	return result, nil
}
