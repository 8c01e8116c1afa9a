package modus

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
)

// Sphere is a thermal ball that expands freely: positions uniform inside
// the radius, momenta thermal, no boundary on propagation.
type Sphere struct {
	tab         *species.Table
	radius      float64
	temperature float64
	startTime   float64
	content     []Multiplicity
}

// NewSphere validates the geometry and content against the species table.
func NewSphere(tab *species.Table, radius, temperature float64, content []Multiplicity, opts ...Option) (*Sphere, error) {
	if radius <= 0 {
		return nil, fmt.Errorf("sphere radius %g must be positive", radius)
	}
	if temperature <= 0 {
		return nil, fmt.Errorf("sphere temperature %g must be positive", temperature)
	}
	if err := checkContent(tab, content); err != nil {
		return nil, err
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Sphere{
		tab:         tab,
		radius:      radius,
		temperature: temperature,
		startTime:   cfg.startTime,
		content:     content,
	}, nil
}

func (m *Sphere) String() string {
	return fmt.Sprintf("sphere(R=%g fm, T=%g GeV)", m.radius, m.temperature)
}

// InitialConditions implements the engine's modus contract.
func (m *Sphere) InitialConditions(st *ensemble.Store, rng *rand.Rand) (float64, error) {
	for _, c := range m.content {
		sp, _ := m.tab.Lookup(c.PDG)
		for i := 0; i < c.Count; i++ {
			st.Insert(m.sample(sp, rng))
		}
	}
	return m.startTime, nil
}

func (m *Sphere) sample(sp species.Type, rng *rand.Rand) phys.Particle {
	// uniform in the ball: radius from the cube root of a uniform draw
	r := m.radius * math.Cbrt(rng.Float64())
	pos := phys.IsotropicUnit(rng).Mul(r)
	return phys.Particle{
		PDG:        sp.PDG,
		Momentum:   thermalFourMomentum(rng, m.temperature, sp.Mass),
		Position:   phys.FourVector{m.startTime, pos[0], pos[1], pos[2]},
		FormedFrom: m.startTime,
		FormedAt:   m.startTime,
		XSecScale:  1,
	}
}

// Propagate free-streams all records to the given time.
func (m *Sphere) Propagate(st *ensemble.Store, to float64) {
	st.Update(func(p *phys.Particle) {
		advance(p, to)
	})
}
