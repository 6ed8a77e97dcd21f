package bandgap

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-elliott/internal/testutil"
)

func stepSpectrum(n int, lo, hi, edge float64, descending bool) (energies, absorption []float64) {
	if descending {
		energies = testutil.Linspace(hi, lo, n)
	} else {
		energies = testutil.Linspace(lo, hi, n)
	}

	return energies, testutil.StepSpectrum(energies, edge, 1)
}

func TestEstimateStepFunctionAscending(t *testing.T) {
	const edge = 2.4
	energies, absorption := stepSpectrum(101, 1.5, 3.5, edge, false)

	got := Estimate(energies, absorption, 0)
	spacing := energies[1] - energies[0]
	if math.Abs(got-edge) > spacing {
		t.Fatalf("estimate = %v, want %v within %v", got, edge, spacing)
	}
}

func TestEstimateStepFunctionDescending(t *testing.T) {
	const edge = 2.4
	energies, absorption := stepSpectrum(101, 1.5, 3.5, edge, true)

	got := Estimate(energies, absorption, 0)
	spacing := math.Abs(energies[1] - energies[0])
	if math.Abs(got-edge) > spacing {
		t.Fatalf("estimate = %v, want %v within %v", got, edge, spacing)
	}
}

func TestEstimateHintOverride(t *testing.T) {
	energies, absorption := stepSpectrum(50, 1.5, 3.5, 2.4, false)

	if got := Estimate(energies, absorption, 2.9); got != 2.9 {
		t.Fatalf("in-range hint ignored: got %v", got)
	}

	// Out-of-range hints fall back to the scan.
	got := Estimate(energies, absorption, 5.0)
	if math.Abs(got-2.4) > 0.05 {
		t.Fatalf("out-of-range hint: got %v, want near 2.4", got)
	}

	if got := Estimate(energies, absorption, -1); math.Abs(got-2.4) > 0.05 {
		t.Fatalf("negative hint: got %v, want near 2.4", got)
	}
}

func TestEstimateFallsBackToMedian(t *testing.T) {
	energies := []float64{1.0, 2.0, 3.0, 4.0}
	flat := []float64{0.01, 0.02, 0.01, 0.02} // never exceeds the 0.1 floor

	if got := Estimate(energies, flat, 0); got != 2.5 {
		t.Fatalf("median fallback: got %v, want 2.5", got)
	}
}

func TestEstimateThresholdScalesWithMaximum(t *testing.T) {
	// With a large maximum the 5% rule dominates the 0.1 floor: points
	// above 0.1 but below 5% of max must not trigger early.
	energies := []float64{1.0, 1.5, 2.0, 2.5, 3.0}
	absorption := []float64{0.0, 0.3, 0.4, 0.3, 20.0}

	if got := Estimate(energies, absorption, 0); got != 3.0 {
		t.Fatalf("threshold scaling: got %v, want 3.0", got)
	}
}
