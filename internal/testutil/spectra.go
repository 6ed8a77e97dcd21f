// Package testutil provides deterministic spectrum generators and
// numeric comparison helpers shared by package tests.
package testutil

import (
	"math"
	"math/rand"
)

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = lo
		return out
	}

	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}

// DeterministicNoise generates white noise with a fixed seed for reproducibility.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	rng := rand.New(rand.NewSource(seed))
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}
	return out
}

// StepSpectrum returns an absorption edge: zero below the edge energy
// and height above it, evaluated on the given energy axis.
func StepSpectrum(energies []float64, edge, height float64) []float64 {
	out := make([]float64, len(energies))
	for i, e := range energies {
		if e >= edge {
			out[i] = height
		}
	}
	return out
}

// ExponentialTail returns height*exp(slope*E), the shape of an Urbach
// absorption tail below the band gap.
func ExponentialTail(energies []float64, slope, intercept float64) []float64 {
	out := make([]float64, len(energies))
	for i, e := range energies {
		out[i] = math.Exp(slope*e + intercept)
	}
	return out
}
