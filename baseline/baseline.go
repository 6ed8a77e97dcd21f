// Package baseline fits and evaluates smooth background curves under
// measured absorption spectra so they can be subtracted before fitting.
package baseline

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrUnsupportedMode = errors.New("baseline: unsupported baseline mode")
	ErrMaskLength      = errors.New("baseline: mask must have the same length as the data")
	ErrLengthMismatch  = errors.New("baseline: energies and absorption must have equal length")
)

// Mode selects the background model.
type Mode int

const (
	// ModeNone disables baseline removal.
	ModeNone Mode = iota
	// ModeLinear fits a straight line to the masked points.
	ModeLinear
	// ModeRayleigh fits y = a*E^4 + b*E + c to the masked points.
	// Rayleigh-type scattering backgrounds scale with the fourth power
	// of the photon energy.
	ModeRayleigh
)

// String returns the mode name used in CLI flags and reports.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeLinear:
		return "linear"
	case ModeRayleigh:
		return "rayleigh"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Fit estimates the background over the full energy range from the
// masked points only. It returns the baseline curve and the mask that
// was actually used.
//
// Too few masked points for the mode's coefficient count (2 for
// linear, 3 for Rayleigh) is a degenerate selection, not an error: the
// returned baseline is all zero and callers should treat the result as
// "no usable baseline region".
func Fit(energies, absorption []float64, mode Mode, mask []bool) ([]float64, []bool, error) {
	if len(energies) != len(absorption) {
		return nil, nil, ErrLengthMismatch
	}

	if mode == ModeNone {
		return make([]float64, len(energies)), make([]bool, len(energies)), nil
	}

	if mode != ModeLinear && mode != ModeRayleigh {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnsupportedMode, int(mode))
	}

	if len(mask) != len(energies) {
		return nil, nil, ErrMaskLength
	}

	var xs, ys []float64
	for i, keep := range mask {
		if keep {
			xs = append(xs, energies[i])
			ys = append(ys, absorption[i])
		}
	}

	// The quartic needs at least as many points as coefficients;
	// fewer masked points than that degenerate to a zero baseline.
	minPoints := 2
	if mode == ModeRayleigh {
		minPoints = 3
	}

	if len(xs) < minPoints {
		return make([]float64, len(energies)), mask, nil
	}

	curve := make([]float64, len(energies))

	switch mode {
	case ModeLinear:
		intercept, slope := stat.LinearRegression(xs, ys, nil, false)
		for i, e := range energies {
			curve[i] = intercept + slope*e
		}
	case ModeRayleigh:
		a, b, c, err := rayleighCoefficients(xs, ys)
		if err != nil {
			return nil, nil, err
		}
		for i, e := range energies {
			curve[i] = a*e*e*e*e + b*e + c
		}
	}

	return curve, mask, nil
}

// rayleighCoefficients solves the least-squares problem for the design
// matrix [E^4, E, 1].
func rayleighCoefficients(xs, ys []float64) (a, b, c float64, err error) {
	design := mat.NewDense(len(xs), 3, nil)
	for i, x := range xs {
		design.Set(i, 0, x*x*x*x)
		design.Set(i, 1, x)
		design.Set(i, 2, 1)
	}

	var qr mat.QR
	qr.Factorize(design)

	var coef mat.VecDense
	if err := qr.SolveVecTo(&coef, false, mat.NewVecDense(len(ys), ys)); err != nil {
		return 0, 0, 0, fmt.Errorf("baseline: rayleigh least squares: %w", err)
	}

	return coef.AtVec(0), coef.AtVec(1), coef.AtVec(2), nil
}
