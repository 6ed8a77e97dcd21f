package fit

import "github.com/cwbudde/algo-elliott/elliott"

const (
	// egBoundHalfWidth is the half width of the per-dataset Eg box
	// around the initial estimate.
	egBoundHalfWidth = 0.4
	// egBoundWideHalfWidth replaces it when the narrow box degenerates.
	egBoundWideHalfWidth = 0.5
)

// Bounds is a component-wise box constraint for one fit.
type Bounds struct {
	Lower elliott.Params
	Upper elliott.Params
}

// DefaultBounds returns the physical default parameter ranges:
// Eb from 10 meV to 2 eV, Gamma up to 500 meV, q from 0 (bulk) to 1.5
// (strong confinement, keeping Deff >= 0). The Eg range is replaced per
// dataset by the dynamic box around the initial estimate.
func DefaultBounds() Bounds {
	return Bounds{
		Lower: elliott.Params{Eg: 1.00, Eb: 0.01, Gamma: 0.00, Ucvsq: 0.010, Mhcnp: 0.000, Q: 0.0},
		Upper: elliott.Params{Eg: 10.0, Eb: 2.0, Gamma: 0.50, Ucvsq: 10000.0, Mhcnp: 0.999, Q: 1.5},
	}
}

// dynamicBounds copies the global bounds and recomputes the Eg box as
// initialEg +/- 0.4 eV, widening to +/- 0.5 eV if the narrow box would
// be empty. The global bounds are never mutated.
func dynamicBounds(global Bounds, initialEg float64) Bounds {
	b := global
	b.Lower.Eg = initialEg - egBoundHalfWidth
	b.Upper.Eg = initialEg + egBoundHalfWidth

	if b.Lower.Eg >= b.Upper.Eg {
		b.Lower.Eg = initialEg - egBoundWideHalfWidth
		b.Upper.Eg = initialEg + egBoundWideHalfWidth
	}

	return b
}
