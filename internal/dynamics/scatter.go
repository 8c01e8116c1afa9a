package dynamics

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/roach88/cascade/internal/action"
	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
)

// DefaultSigmaMb is the constant total cross section, in millibarn, a
// ScatterFinder uses unless configured otherwise.
const DefaultSigmaMb = 10.0

// ScatterFinder detects two-body collision candidates over an ordered
// pair loop: a pair collides when its closest approach falls inside the
// tick window and the UrQMD transverse distance satisfies d2 < sigma/pi.
// The geometric criterion is deterministic; only resolution draws random
// numbers.
type ScatterFinder struct {
	tab           *species.Table
	resolver      action.Resolver
	sigmaMb       float64
	testparticles int
}

// ScatterFinderOption configures a ScatterFinder.
type ScatterFinderOption func(*ScatterFinder)

// WithSigmaMb sets the constant total cross section in millibarn.
func WithSigmaMb(mb float64) ScatterFinderOption {
	return func(f *ScatterFinder) { f.sigmaMb = mb }
}

// WithTestparticles reduces every cross section by the testparticle count.
func WithTestparticles(n int) ScatterFinderOption {
	return func(f *ScatterFinder) {
		if n > 0 {
			f.testparticles = n
		}
	}
}

// WithResolver overrides the resolver attached to emitted candidates.
func WithResolver(r action.Resolver) ScatterFinderOption {
	return func(f *ScatterFinder) { f.resolver = r }
}

// NewScatterFinder returns a finder with the default cross section and a
// ScatterResolver over the same table.
func NewScatterFinder(tab *species.Table, opts ...ScatterFinderOption) *ScatterFinder {
	f := &ScatterFinder{tab: tab, sigmaMb: DefaultSigmaMb, testparticles: 1}
	for _, opt := range opts {
		opt(f)
	}
	if f.resolver == nil {
		f.resolver = NewScatterResolver(tab)
	}
	return f
}

// FindActions implements action.Generator.
func (f *ScatterFinder) FindActions(st *ensemble.Store, now, dt float64, _ *rand.Rand) []*action.Action {
	handles := st.Handles()
	var found []*action.Action
	for i := 0; i < len(handles); i++ {
		a, ok := st.Get(handles[i])
		if !ok {
			continue
		}
		for j := i + 1; j < len(handles); j++ {
			b, ok := st.Get(handles[j])
			if !ok {
				continue
			}
			if act := f.check(handles[i], handles[j], a, b, now, dt); act != nil {
				found = append(found, act)
			}
		}
	}
	return found
}

func (f *ScatterFinder) check(ha, hb ensemble.Handle, a, b phys.Particle, now, dt float64) *action.Action {
	// Products of the same committed process never re-collide with each
	// other until one of them interacts again.
	if a.ProcessID == b.ProcessID {
		return nil
	}
	if a.Momentum[0] <= 0 || b.Momentum[0] <= 0 {
		return nil
	}

	sigma := f.sigmaMb * phys.Fm2PerMb * a.ScaleAt(now) * b.ScaleAt(now) / float64(f.testparticles)
	if sigma <= 0 {
		return nil
	}

	dr := a.Position.Spatial().Sub(b.Position.Spatial())
	dv := a.Velocity().Sub(b.Velocity())
	dv2 := dv.Sqr()
	if dv2 < phys.ReallySmall {
		return nil
	}
	tc := -dr.Dot(dv) / dv2
	if tc < 0 || tc >= dt {
		return nil
	}

	if transverseDistanceSqr(a, b) >= sigma/math.Pi {
		return nil
	}

	return action.NewScatter(now+tc, ha, hb, a, b, f.resolver)
}

// transverseDistanceSqr is the UrQMD squared impact parameter, evaluated
// in the pair center-of-momentum frame:
//
//	d2 = dr2 - (dr.dp)^2 / dp2
func transverseDistanceSqr(a, b phys.Particle) float64 {
	beta := a.Momentum.Add(b.Momentum).Velocity()
	dp := a.Momentum.Boost(beta).Spatial().Sub(b.Momentum.Boost(beta).Spatial())
	dr := a.Position.Boost(beta).Spatial().Sub(b.Position.Boost(beta).Spatial())

	dp2 := dp.Sqr()
	dr2 := dr.Sqr()
	if dp2 < phys.ReallySmall {
		return dr2
	}
	drdp := dr.Dot(dp)
	return dr2 - drdp*drdp/dp2
}

// DefaultResonanceAttempts bounds the Breit-Wigner rejection sampling in
// resonance formation before the resolver falls back to elastic.
const DefaultResonanceAttempts = 10

// ScatterResolver realizes a collision candidate as either a 2->1
// resonance formation or an elastic 2->2 scattering. Resonance selection
// is bounded rejection sampling against the Breit-Wigner peak; when the
// attempts are exhausted, or no resonance matches the pair, the collision
// falls back to elastic and the tick proceeds normally.
type ScatterResolver struct {
	tab      *species.Table
	attempts int
	twoToOne bool
}

// ScatterResolverOption configures a ScatterResolver.
type ScatterResolverOption func(*ScatterResolver)

// WithResonanceAttempts sets the rejection-sampling bound.
func WithResonanceAttempts(n int) ScatterResolverOption {
	return func(r *ScatterResolver) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithTwoToOne enables or disables resonance formation entirely.
func WithTwoToOne(enabled bool) ScatterResolverOption {
	return func(r *ScatterResolver) { r.twoToOne = enabled }
}

func NewScatterResolver(tab *species.Table, opts ...ScatterResolverOption) *ScatterResolver {
	r := &ScatterResolver{tab: tab, attempts: DefaultResonanceAttempts, twoToOne: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve implements action.Resolver.
func (r *ScatterResolver) Resolve(act *action.Action, rng *rand.Rand) error {
	if len(act.In) != 2 {
		return fmt.Errorf("scattering of %d particles", len(act.In))
	}
	if r.twoToOne && r.tryResonance(act, rng) {
		return nil
	}
	return r.elastic(act, rng)
}

// tryResonance attempts 2->1 formation. The formed resonance carries the
// exact pair four-momentum, so its mass is sqrt(s) rather than the pole
// mass; acceptance weighs each attempt by the Breit-Wigner value at
// sqrt(s) relative to the peak.
func (r *ScatterResolver) tryResonance(act *action.Action, rng *rand.Rand) bool {
	srts := act.SqrtS()
	candidates := r.resonances(act.In[0].PDG, act.In[1].PDG)
	if len(candidates) == 0 {
		return false
	}
	for try := 0; try < r.attempts; try++ {
		sp := candidates[rng.IntN(len(candidates))]
		accept := phys.BreitWigner(srts, sp.Mass, sp.Width) * math.Pi * sp.Width / 2
		if rng.Float64() >= accept {
			continue
		}
		out := phys.Particle{
			PDG:      sp.PDG,
			Momentum: act.TotalMomentum(),
			Position: interactionPoint(act.In, act.Time),
		}
		res := []phys.Particle{out}
		inheritFormation(res, act.In, act.Time)
		act.Process = action.ProcessTwoToOne
		act.Outgoing = res
		return true
	}
	return false
}

// resonances lists the unstable species with a decay mode matching the
// pair, in PDG order.
func (r *ScatterResolver) resonances(pa, pb phys.PDG) []species.Type {
	var out []species.Type
	for _, sp := range r.tab.All() {
		if sp.Stable() {
			continue
		}
		for _, ch := range sp.Decays {
			if matchesPair(ch, pa, pb) {
				out = append(out, sp)
				break
			}
		}
	}
	return out
}

func matchesPair(ch species.DecayChannel, pa, pb phys.PDG) bool {
	return (ch.Daughters[0] == pa && ch.Daughters[1] == pb) ||
		(ch.Daughters[0] == pb && ch.Daughters[1] == pa)
}

// elastic resamples the center-of-mass direction isotropically at fixed
// masses. Positions and formation state carry over unchanged.
func (r *ScatterResolver) elastic(act *action.Action, rng *rand.Rand) error {
	a, b := act.In[0], act.In[1]
	pa, pb := twoBodyMomenta(act.SqrtS(), a.EffectiveMass(), b.EffectiveMass(),
		act.TotalMomentum().Velocity(), rng)

	outA, outB := a, b
	outA.Momentum = pa
	outB.Momentum = pb

	act.Process = action.ProcessElastic
	act.Outgoing = []phys.Particle{outA, outB}
	return nil
}
