// Package phys provides the small vector-math and kinematics vocabulary the
// transport core is written in: Minkowski four-vectors, three-vectors, the
// physical constants of the computational frame, and the particle record that
// flows through the ensemble store.
package phys

import "math"

// FourVector is a contravariant four-vector in the computational frame.
// Index 0 is the time (or energy) component, indices 1..3 are x, y, z.
type FourVector [4]float64

// Add returns the component-wise sum v + o.
func (v FourVector) Add(o FourVector) FourVector {
	return FourVector{v[0] + o[0], v[1] + o[1], v[2] + o[2], v[3] + o[3]}
}

// Sub returns the component-wise difference v - o.
func (v FourVector) Sub(o FourVector) FourVector {
	return FourVector{v[0] - o[0], v[1] - o[1], v[2] - o[2], v[3] - o[3]}
}

// Mul returns v scaled by s.
func (v FourVector) Mul(s float64) FourVector {
	return FourVector{v[0] * s, v[1] * s, v[2] * s, v[3] * s}
}

// Dot returns the Minkowski inner product with metric signature (+,-,-,-).
func (v FourVector) Dot(o FourVector) float64 {
	return v[0]*o[0] - v[1]*o[1] - v[2]*o[2] - v[3]*o[3]
}

// Sqr returns the Minkowski square v·v.
func (v FourVector) Sqr() float64 {
	return v.Dot(v)
}

// Abs returns sqrt(v·v), clamped at zero for spacelike vectors so that the
// effective mass of numerically off-shell momenta never comes out NaN.
func (v FourVector) Abs() float64 {
	s := v.Sqr()
	if s < 0 {
		return 0
	}
	return math.Sqrt(s)
}

// Spatial returns the three spatial components.
func (v FourVector) Spatial() ThreeVector {
	return ThreeVector{v[1], v[2], v[3]}
}

// Velocity returns the three-velocity p/E of a four-momentum.
func (v FourVector) Velocity() ThreeVector {
	return ThreeVector{v[1] / v[0], v[2] / v[0], v[3] / v[0]}
}

// Boost transforms v into the frame moving with velocity beta relative to the
// current frame. Boosting by the negated velocity undoes the transformation.
func (v FourVector) Boost(beta ThreeVector) FourVector {
	b2 := beta.Sqr()
	gamma := 0.0
	if b2 < 1 {
		gamma = 1 / math.Sqrt(1-b2)
	}
	t := gamma * (v[0] - v.Spatial().Dot(beta))
	k := gamma / (gamma + 1) * (t + v[0])
	sp := v.Spatial().Sub(beta.Mul(k))
	return FourVector{t, sp[0], sp[1], sp[2]}
}

// ThreeVector is a spatial vector in the computational frame.
type ThreeVector [3]float64

// Add returns the component-wise sum v + o.
func (v ThreeVector) Add(o ThreeVector) ThreeVector {
	return ThreeVector{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

// Sub returns the component-wise difference v - o.
func (v ThreeVector) Sub(o ThreeVector) ThreeVector {
	return ThreeVector{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

// Mul returns v scaled by s.
func (v ThreeVector) Mul(s float64) ThreeVector {
	return ThreeVector{v[0] * s, v[1] * s, v[2] * s}
}

// Neg returns -v.
func (v ThreeVector) Neg() ThreeVector {
	return ThreeVector{-v[0], -v[1], -v[2]}
}

// Dot returns the Euclidean inner product.
func (v ThreeVector) Dot(o ThreeVector) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

// Sqr returns v·v.
func (v ThreeVector) Sqr() float64 {
	return v.Dot(v)
}

// Abs returns the Euclidean norm.
func (v ThreeVector) Abs() float64 {
	return math.Sqrt(v.Sqr())
}
