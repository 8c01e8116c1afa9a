package modus

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/roach88/cascade/internal/ensemble"
	"github.com/roach88/cascade/internal/phys"
	"github.com/roach88/cascade/internal/species"
)

// Box is infinite matter in a periodic cube: positions uniform over the
// edge length, momenta thermal at the given temperature, and propagation
// that wraps coordinates back into the box.
type Box struct {
	tab         *species.Table
	length      float64
	temperature float64
	startTime   float64
	content     []Multiplicity
}

// NewBox validates the geometry and content against the species table.
func NewBox(tab *species.Table, length, temperature float64, content []Multiplicity, opts ...Option) (*Box, error) {
	if length <= 0 {
		return nil, fmt.Errorf("box length %g must be positive", length)
	}
	if temperature <= 0 {
		return nil, fmt.Errorf("box temperature %g must be positive", temperature)
	}
	if err := checkContent(tab, content); err != nil {
		return nil, err
	}
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Box{
		tab:         tab,
		length:      length,
		temperature: temperature,
		startTime:   cfg.startTime,
		content:     content,
	}, nil
}

func (m *Box) String() string {
	return fmt.Sprintf("box(L=%g fm, T=%g GeV)", m.length, m.temperature)
}

// Length returns the box edge in fm.
func (m *Box) Length() float64 { return m.length }

// InitialConditions implements the engine's modus contract.
func (m *Box) InitialConditions(st *ensemble.Store, rng *rand.Rand) (float64, error) {
	for _, c := range m.content {
		sp, _ := m.tab.Lookup(c.PDG)
		for i := 0; i < c.Count; i++ {
			st.Insert(m.sample(sp, rng))
		}
	}
	return m.startTime, nil
}

func (m *Box) sample(sp species.Type, rng *rand.Rand) phys.Particle {
	return phys.Particle{
		PDG:      sp.PDG,
		Momentum: thermalFourMomentum(rng, m.temperature, sp.Mass),
		Position: phys.FourVector{
			m.startTime,
			rng.Float64() * m.length,
			rng.Float64() * m.length,
			rng.Float64() * m.length,
		},
		FormedFrom: m.startTime,
		FormedAt:   m.startTime,
		XSecScale:  1,
	}
}

// Propagate free-streams all records to the given time and folds their
// coordinates back into [0, L).
func (m *Box) Propagate(st *ensemble.Store, to float64) {
	st.Update(func(p *phys.Particle) {
		advance(p, to)
		p.Position[1] = wrap(p.Position[1], m.length)
		p.Position[2] = wrap(p.Position[2], m.length)
		p.Position[3] = wrap(p.Position[3], m.length)
	})
}

func wrap(x, l float64) float64 {
	x = math.Mod(x, l)
	if x < 0 {
		x += l
	}
	return x
}
