package dynamics

import (
	"fmt"
	"math/rand/v2"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
)

// DecayFinder samples decay candidates for unstable formed particles.
// The decay probability over a window dt is Gamma*dt/hbarc reduced by the
// time-dilation factor m/E; the execution time is uniform in the window.
type DecayFinder struct {
	tab      *species.Table
	resolver action.Resolver
}

// NewDecayFinder returns a finder whose candidates resolve through a
// DecayResolver over the same table.
func NewDecayFinder(tab *species.Table) *DecayFinder {
	return &DecayFinder{tab: tab, resolver: NewDecayResolver(tab)}
}

// FindActions implements action.Generator.
func (f *DecayFinder) FindActions(st *ensemble.Store, now, dt float64, rng *rand.Rand) []*action.Action {
	var found []*action.Action
	st.ForEach(func(h ensemble.Handle, p phys.Particle) bool {
		sp, ok := f.tab.Lookup(p.PDG)
		if !ok || sp.Stable() || len(sp.Decays) == 0 {
			return true
		}
		if !p.FormedBy(now) || p.Momentum[0] <= 0 {
			return true
		}
		invGamma := p.EffectiveMass() / p.Momentum[0]
		prob := sp.Width * dt * invGamma / phys.HbarC
		if rng.Float64() >= prob {
			return true
		}
		t := now + rng.Float64()*dt
		found = append(found, action.NewDecay(t, h, p, f.resolver))
		return true
	})
	return found
}

// DecayResolver picks a decay channel by branching ratio and populates a
// two-body final state: isotropic phase-space momenta in the parent rest
// frame boosted to the computational frame, daughters at the parent's
// propagated position.
type DecayResolver struct {
	tab *species.Table
}

func NewDecayResolver(tab *species.Table) *DecayResolver {
	return &DecayResolver{tab: tab}
}

// Resolve implements action.Resolver.
func (r *DecayResolver) Resolve(act *action.Action, rng *rand.Rand) error {
	if len(act.In) != 1 {
		return fmt.Errorf("decay of %d particles", len(act.In))
	}
	parent := act.In[0]
	sp, ok := r.tab.Lookup(parent.PDG)
	if !ok {
		return fmt.Errorf("decay of unknown species %v", parent.PDG)
	}
	if len(sp.Decays) == 0 {
		return fmt.Errorf("species %s has no decay modes", sp.Name)
	}

	ch := pickChannel(sp.Decays, rng)
	da, ok := r.tab.Lookup(ch.Daughters[0])
	if !ok {
		return fmt.Errorf("decay %s: unknown daughter %v", sp.Name, ch.Daughters[0])
	}
	db, ok := r.tab.Lookup(ch.Daughters[1])
	if !ok {
		return fmt.Errorf("decay %s: unknown daughter %v", sp.Name, ch.Daughters[1])
	}

	// The parent decays at its actual invariant mass, not the pole mass.
	srts := parent.EffectiveMass()
	if srts < da.Mass+db.Mass {
		return fmt.Errorf("decay %s -> %s %s below threshold: sqrt(s)=%.4f",
			sp.Name, da.Name, db.Name, srts)
	}

	pa, pb := twoBodyMomenta(srts, da.Mass, db.Mass, parent.Velocity(), rng)
	pos := interactionPoint(act.In, act.Time)
	out := []phys.Particle{
		{PDG: da.PDG, Momentum: pa, Position: pos},
		{PDG: db.PDG, Momentum: pb, Position: pos},
	}
	inheritFormation(out, act.In, act.Time)

	act.Process = action.ProcessDecay
	act.Outgoing = out
	return nil
}

// pickChannel draws a channel from the branching ratios with one uniform.
func pickChannel(chs []species.DecayChannel, rng *rand.Rand) species.DecayChannel {
	u := rng.Float64()
	acc := 0.0
	for _, ch := range chs {
		acc += ch.Ratio
		if u < acc {
			return ch
		}
	}
	return chs[len(chs)-1]
}
