// Package bandgap provides the initial band-gap heuristic used to seed
// the Elliott fit.
package bandgap

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Threshold constants are empirical and preserved for compatibility
// with earlier analyses; treat them as tunable, not physically derived.
const (
	minThreshold      = 0.1
	thresholdFraction = 0.05
)

// Estimate returns an initial band-gap energy for the cleaned
// (baseline-subtracted) absorption curve.
//
// A positive hint inside the measured energy range overrides the
// heuristic entirely. Otherwise the curve is scanned from the
// low-energy end (scan direction follows the ordering of energies) for
// the first point whose absorption exceeds max(0.1, 5% of the maximum);
// the corresponding energy is the estimate. If no point exceeds the
// threshold the median energy is returned, so Estimate never fails.
func Estimate(energies, cleaned []float64, hint float64) float64 {
	if len(energies) == 0 {
		return hint
	}

	lo := floats.Min(energies)
	hi := floats.Max(energies)
	if hint > 0 && hint >= lo && hint <= hi {
		return hint
	}

	threshold := minThreshold
	if len(cleaned) > 0 {
		threshold = math.Max(minThreshold, thresholdFraction*floats.Max(cleaned))
	}

	if len(cleaned) == len(energies) {
		if energies[0] > energies[len(energies)-1] {
			// Descending energy axis: the low-energy end is the back.
			for i := len(cleaned) - 1; i >= 0; i-- {
				if cleaned[i] > threshold {
					return energies[i]
				}
			}
		} else {
			for i := range cleaned {
				if cleaned[i] > threshold {
					return energies[i]
				}
			}
		}
	}

	return median(energies)
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}

	return 0.5 * (sorted[n/2-1] + sorted[n/2])
}
