// Package modus provides the built-in run geometries: an infinite-matter
// box with periodic boundaries and thermal initial momenta, and an
// expanding sphere that free-streams. Both populate a freshly reset store
// at event start and move surviving records between ticks.
package modus

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
)

// Multiplicity is one entry of the initial content: how many particles
// of a species an event starts with.
type Multiplicity struct {
	PDG   phys.PDG
	Count int
}

type config struct {
	startTime float64
}

// Option configures a modus at construction time.
type Option func(*config)

// WithStartTime sets the computational-frame time of the initial state.
func WithStartTime(t float64) Option {
	return func(c *config) { c.startTime = t }
}

func checkContent(tab *species.Table, content []Multiplicity) error {
	if len(content) == 0 {
		return errors.New("empty initial multiplicities")
	}
	for _, c := range content {
		if c.Count <= 0 {
			return fmt.Errorf("species %v: multiplicity %d must be positive", c.PDG, c.Count)
		}
		if _, ok := tab.Lookup(c.PDG); !ok {
			return fmt.Errorf("species %v not in table", c.PDG)
		}
	}
	return nil
}

// thermalFourMomentum samples an on-shell four-momentum from the Boltzmann
// distribution p^2 exp(-E/T) with an isotropic direction.
func thermalFourMomentum(rng *rand.Rand, temperature, mass float64) phys.FourVector {
	p := thermalMomentum(rng, temperature, mass)
	dir := phys.IsotropicUnit(rng).Mul(p)
	e := math.Sqrt(p*p + mass*mass)
	return phys.FourVector{e, dir[0], dir[1], dir[2]}
}

// thermalMomentum draws the momentum magnitude: three exponentials give
// p^2 exp(-p/T) exactly, a rejection step corrects the tail to exp(-E/T).
func thermalMomentum(rng *rand.Rand, temperature, mass float64) float64 {
	for {
		r1 := nonzero(rng)
		r2 := nonzero(rng)
		r3 := nonzero(rng)
		p := -temperature * math.Log(r1*r2*r3)
		e := math.Sqrt(p*p + mass*mass)
		if rng.Float64() < math.Exp((p-e)/temperature) {
			return p
		}
	}
}

func nonzero(rng *rand.Rand) float64 {
	for {
		if u := rng.Float64(); u > 0 {
			return u
		}
	}
}

// advance free-streams one record to time to.
func advance(p *phys.Particle, to float64) {
	d := to - p.Position[0]
	if p.Momentum[0] > 0 {
		v := p.Velocity()
		p.Position[1] += v[0] * d
		p.Position[2] += v[1] * d
		p.Position[3] += v[2] * d
	}
	p.Position[0] = to
}
