package phys

import (
	"math"
	"math/rand/v2"
)

// MandelstamS returns s = (a + b)^2 for a pair of four-momenta.
func MandelstamS(a, b FourVector) float64 {
	return a.Add(b).Sqr()
}

// PCM returns the center-of-mass momentum of a two-particle system with
// total energy srts and masses ma, mb. Below threshold the result is zero.
func PCM(srts, ma, mb float64) float64 {
	s := srts * srts
	x := s + ma*ma - mb*mb
	p2 := x*x*(0.25/s) - ma*ma
	if p2 < 0 {
		return 0
	}
	return math.Sqrt(p2)
}

// BreitWigner evaluates the relativistic Breit-Wigner distribution at
// center-of-mass energy srts for a resonance with the given pole mass and
// constant width. The peak value is 2/(pi*width).
func BreitWigner(srts, pole, width float64) float64 {
	m2 := srts * srts
	d := m2 - pole*pole
	return 2 * m2 * width / (math.Pi * (d*d + m2*width*width))
}

// IsotropicUnit draws a unit vector uniformly distributed on the sphere:
// cos(theta) uniform in [-1,1), phi uniform in [0,2pi).
func IsotropicUnit(rng *rand.Rand) ThreeVector {
	cosTheta := 2*rng.Float64() - 1
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	phi := 2 * math.Pi * rng.Float64()
	return ThreeVector{sinTheta * math.Cos(phi), sinTheta * math.Sin(phi), cosTheta}
}
