// Package quality derives goodness-of-fit and physical quantities from
// a converged Elliott fit: R², the ground-state binding energy, the
// effective dimensionality, Urbach tail parameters, and warnings for
// parameters that saturated their optimization bounds.
package quality

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-elliott/elliott"
)

const (
	// boundaryTol is the absolute proximity (eV) at which a converged
	// parameter counts as having reached its bound.
	boundaryTol = 0.002

	// qSingularityTol guards the 1/(1-q)^2 ground-state conversion.
	qSingularityTol = 1e-5

	urbachWindowOffset = 2
	urbachWindowEnd    = 10
	urbachMinPoints    = 3
)

// RSquared returns the coefficient of determination for the given SSE
// over the observed values the fit was evaluated against. A constant
// observation (zero total variance) yields 0.
func RSquared(sse float64, observed []float64) float64 {
	if len(observed) == 0 {
		return 0
	}

	mean := stat.Mean(observed, nil)

	ssTot := 0.0
	for _, y := range observed {
		d := y - mean
		ssTot += d * d
	}

	if ssTot == 0 {
		return 0
	}

	return 1 - sse/ssTot
}

// GroundStateBinding converts the fitted effective Rydberg Eb into the
// n=1 ground-state binding energy Eb/(1-q)^2. Near the q=1 singularity
// the uncorrected Eb is returned.
func GroundStateBinding(eb, q float64) float64 {
	if math.Abs(1-q) <= qSingularityTol {
		return eb
	}

	return eb / ((1 - q) * (1 - q))
}

// EffectiveDimension returns Deff = 3 - 2*q.
func EffectiveDimension(q float64) float64 {
	return 3 - 2*q
}

// UrbachFit holds the log-linear exponential-tail fit below the gap.
// Valid is false when the tail window is too short or has fewer than
// three finite log values; Slope and Intercept are meaningless then.
type UrbachFit struct {
	Slope     float64
	Intercept float64
	Valid     bool
}

// Curve evaluates the fitted tail line over the given energies.
func (u UrbachFit) Curve(energies []float64) []float64 {
	out := make([]float64, len(energies))
	if !u.Valid {
		return out
	}

	for i, e := range energies {
		out[i] = u.Intercept + u.Slope*e
	}

	return out
}

// Urbach fits log(absorption) linearly against energy over a fixed
// sub-window of the exponential tail: starting two samples past the
// first index with energy below |Eb - Eg|, eight samples long. The
// window constants are empirical and kept for compatibility.
func Urbach(energies, absorption []float64, eb, eg float64) UrbachFit {
	threshold := math.Abs(eb - eg)

	index := -1
	for i, e := range energies {
		if e < threshold {
			index = i
			break
		}
	}

	if index < 0 {
		return UrbachFit{}
	}

	start := index + urbachWindowOffset
	if start > len(energies)-1 {
		start = len(energies) - 1
	}

	end := index + urbachWindowEnd
	if end > len(energies) {
		end = len(energies)
	}

	if end <= start {
		return UrbachFit{}
	}

	var xs, ys []float64
	for i := start; i < end; i++ {
		logY := math.Log(absorption[i])
		if math.IsNaN(logY) || math.IsInf(logY, 0) {
			continue
		}
		xs = append(xs, energies[i])
		ys = append(ys, logY)
	}

	if len(xs) < urbachMinPoints {
		return UrbachFit{}
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)

	return UrbachFit{Slope: slope, Intercept: intercept, Valid: true}
}

// BoundaryWarnings reports fitted parameters that landed within
// boundaryTol of their active box constraint: the optimizer saturated
// the bound and the physical value is suspect. Only the energy-like
// parameters Eg, Eb and Gamma are checked.
func BoundaryWarnings(p elliott.Params, lower, upper elliott.Params) []string {
	var warnings []string

	check := func(name string, v, lo, hi float64) {
		if math.Abs(v-lo) <= boundaryTol || math.Abs(v-hi) <= boundaryTol {
			warnings = append(warnings, fmt.Sprintf("%s reached its fit boundary", name))
		}
	}

	check("Eg (Band gap)", p.Eg, lower.Eg, upper.Eg)
	check("Eb (Exciton binding)", p.Eb, lower.Eb, upper.Eb)
	check("Gamma (Linewidth)", p.Gamma, lower.Gamma, upper.Gamma)

	return warnings
}
