package elliott

// NumParams is the dimensionality of the model parameter vector.
const NumParams = 6

// Params holds the six Elliott model parameters.
type Params struct {
	// Eg is the band gap energy in eV.
	Eg float64
	// Eb is the exciton binding energy (effective Rydberg) in eV.
	Eb float64
	// Gamma is the resonance linewidth in eV.
	Gamma float64
	// Ucvsq scales the transition dipole moment squared.
	Ucvsq float64
	// Mhcnp is the effective-mass-ratio parameter of the continuum term.
	Mhcnp float64
	// Q is the fractional-dimension parameter: 0 for bulk excitons,
	// around 0.5-0.6 for quasi-2D, up to 1.5 for strong confinement.
	Q float64
}

// DefaultStart returns the default optimization starting point:
// Eb = 50 meV, Gamma = 100 meV, q = 0.2 (weak confinement).
func DefaultStart() Params {
	return Params{
		Eg:    2.62,
		Eb:    0.050,
		Gamma: 0.100,
		Ucvsq: 10,
		Mhcnp: 0.060,
		Q:     0.2,
	}
}

// Vector returns the parameters in canonical order
// [Eg, Eb, Gamma, Ucvsq, Mhcnp, Q].
func (p Params) Vector() []float64 {
	return []float64{p.Eg, p.Eb, p.Gamma, p.Ucvsq, p.Mhcnp, p.Q}
}

// ParamsFromVector builds Params from a canonical-order vector.
// It panics if v does not have exactly NumParams components.
func ParamsFromVector(v []float64) Params {
	if len(v) != NumParams {
		panic("elliott: parameter vector must have 6 components")
	}

	return Params{Eg: v[0], Eb: v[1], Gamma: v[2], Ucvsq: v[3], Mhcnp: v[4], Q: v[5]}
}

// EffectiveDimension returns Deff = 3 - 2*q.
func (p Params) EffectiveDimension() float64 {
	return 3 - 2*p.Q
}
