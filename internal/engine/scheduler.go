package engine

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/ensemble"
)

// Scheduler runs the per-tick action protocol: collect candidates from
// every generator, order them, then validate and commit one at a time.
//
// Ordering is a deterministic total order. Candidates are gathered in
// generator registration order, keeping each generator's own discovery
// order, and then stable-sorted by execution time. Exact time ties
// therefore resolve to the earlier generator, then to earlier discovery,
// and two runs over the same state commit in the same order.
//
// Conflicts are resolved optimistically. Candidates hold weak handles
// captured at discovery; by the time a candidate is reached, an earlier
// commit may have consumed one of its particles. Such stale candidates
// are skipped silently. The first committed action on a particle wins
// purely by order, which is why the total order above is load-bearing.
type Scheduler struct {
	generators []action.Generator
}

// NewScheduler creates a scheduler over the given generators. Slice order
// is the tie-break order for simultaneous candidates.
func NewScheduler(gens ...action.Generator) *Scheduler {
	return &Scheduler{generators: gens}
}

// TickStats summarizes one scheduler pass.
type TickStats struct {
	// Candidates is the number of actions proposed by all generators.
	Candidates int

	// Committed is the number of actions whose final state was applied.
	Committed int

	// Stale is the number of candidates discarded because a handle was
	// invalidated by an earlier commit in the same tick.
	Stale int
}

// RunTick discovers, orders, validates and commits the actions of the
// window [clk.Now(), clk.Next()). The observe callback, when non-nil, is
// invoked synchronously after each commit; the action passed to it must
// not be retained. The returned error, if any, is fatal for the run.
func (s *Scheduler) RunTick(st *ensemble.Store, clk *Clock, event int, rng *rand.Rand, observe func(*action.Action)) (TickStats, error) {
	var stats TickStats

	var cands []*action.Action
	now, dt := clk.Now(), clk.Dt()
	for _, g := range s.generators {
		cands = append(cands, g.FindActions(st, now, dt, rng)...)
	}
	stats.Candidates = len(cands)
	if len(cands) == 0 {
		return stats, nil
	}

	// Stable sort: ties keep collection order.
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Time < cands[j].Time })

	for _, act := range cands {
		valid := true
		for _, h := range act.Incoming {
			if !st.IsValid(h) {
				valid = false
				break
			}
		}
		if !valid {
			stats.Stale++
			continue
		}

		if err := act.Resolver.Resolve(act, rng); err != nil {
			return stats, newResolutionError(event, clk.Tick(), act, err)
		}
		if !act.Process.Known() {
			return stats, newUnknownProcessError(event, clk.Tick(), act)
		}
		if len(act.Outgoing) == 0 {
			return stats, newResolutionError(event, clk.Tick(), act,
				fmt.Errorf("resolver produced no outgoing particles"))
		}

		if _, err := st.Replace(act.Incoming, act.Outgoing); err != nil {
			// Handles were validated just above; reaching this means the
			// store was mutated behind the scheduler's back.
			return stats, fmt.Errorf("commit %v: %w", act, err)
		}
		stats.Committed++

		if observe != nil {
			observe(act)
		}
	}
	return stats, nil
}
