package phys

const (
	// HbarC converts between GeV and inverse fm: hbar*c in GeV*fm.
	HbarC = 0.197327053

	// Fm2PerMb converts cross sections from millibarn to fm^2.
	Fm2PerMb = 0.1

	// ReallySmall is the numerical error tolerance used when comparing
	// times and conserved quantities in the computational frame.
	ReallySmall = 1.0e-6
)
