package baseline

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-elliott/internal/testutil"
)

func linspace(lo, hi float64, n int) []float64 {
	return testutil.Linspace(lo, hi, n)
}

func TestFitLinearRecoversLine(t *testing.T) {
	energies := linspace(1.5, 3.5, 40)
	absorption := make([]float64, len(energies))
	for i, e := range energies {
		absorption[i] = 2*e + 3
	}

	// Restrict the fit to a sub-range; the curve must still be exact
	// everywhere because the data is exactly linear.
	mask := make([]bool, len(energies))
	for i := 5; i < 15; i++ {
		mask[i] = true
	}

	curve, usedMask, err := Fit(energies, absorption, ModeLinear, mask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range curve {
		if math.Abs(curve[i]-absorption[i]) > 1e-9 {
			t.Fatalf("curve[%d] = %v, want %v", i, curve[i], absorption[i])
		}
	}

	for i := range mask {
		if usedMask[i] != mask[i] {
			t.Fatalf("mask[%d] changed", i)
		}
	}
}

func TestFitRayleighRecoversQuartic(t *testing.T) {
	energies := linspace(1.0, 4.0, 50)
	const a = 0.0125

	absorption := make([]float64, len(energies))
	for i, e := range energies {
		absorption[i] = a * e * e * e * e
	}

	mask := make([]bool, len(energies))
	for i := 0; i < 20; i++ {
		mask[i] = true
	}

	curve, _, err := Fit(energies, absorption, ModeRayleigh, mask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range curve {
		if math.Abs(curve[i]-absorption[i]) > 1e-7 {
			t.Fatalf("curve[%d] = %v, want %v", i, curve[i], absorption[i])
		}
	}
}

func TestFitModeNone(t *testing.T) {
	energies := linspace(1, 2, 8)
	absorption := linspace(5, 6, 8)

	curve, mask, err := Fit(energies, absorption, ModeNone, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range curve {
		if curve[i] != 0 {
			t.Fatalf("curve[%d] = %v, want 0", i, curve[i])
		}
		if mask[i] {
			t.Fatalf("mask[%d] = true, want all false", i)
		}
	}
}

func TestFitDegenerateMaskYieldsZeroBaseline(t *testing.T) {
	energies := linspace(1, 2, 10)
	absorption := linspace(0, 1, 10)

	mask := make([]bool, 10)
	mask[3] = true // a single point cannot define a background

	curve, _, err := Fit(energies, absorption, ModeLinear, mask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range curve {
		if curve[i] != 0 {
			t.Fatalf("curve[%d] = %v, want 0 for degenerate mask", i, curve[i])
		}
	}
}

func TestFitRayleighTwoPointMaskYieldsZeroBaseline(t *testing.T) {
	energies := linspace(1, 2, 4)
	absorption := []float64{0.4, 0.5, 0.6, 0.7}

	// Two points determine a line but not the three-coefficient
	// quartic; the selection must degrade to a zero baseline instead
	// of feeding an underdetermined system to the solver.
	mask := []bool{true, false, false, true}

	curve, usedMask, err := Fit(energies, absorption, ModeRayleigh, mask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range curve {
		if curve[i] != 0 {
			t.Fatalf("curve[%d] = %v, want 0 for a two-point Rayleigh mask", i, curve[i])
		}
	}

	for i := range mask {
		if usedMask[i] != mask[i] {
			t.Fatalf("mask[%d] changed", i)
		}
	}
}

func TestFitRayleighThreePointMaskFits(t *testing.T) {
	energies := linspace(1, 4, 12)
	const a = 0.02

	absorption := make([]float64, len(energies))
	for i, e := range energies {
		absorption[i] = a * e * e * e * e
	}

	// Three points are the minimum determined selection.
	mask := make([]bool, len(energies))
	mask[0], mask[5], mask[11] = true, true, true

	curve, _, err := Fit(energies, absorption, ModeRayleigh, mask)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range curve {
		if math.Abs(curve[i]-absorption[i]) > 1e-7 {
			t.Fatalf("curve[%d] = %v, want %v", i, curve[i], absorption[i])
		}
	}
}

func TestFitErrors(t *testing.T) {
	energies := linspace(1, 2, 4)
	absorption := linspace(1, 2, 4)

	if _, _, err := Fit(energies, absorption, Mode(9), make([]bool, 4)); !errors.Is(err, ErrUnsupportedMode) {
		t.Fatalf("unsupported mode: got %v", err)
	}

	if _, _, err := Fit(energies, absorption, ModeLinear, make([]bool, 3)); !errors.Is(err, ErrMaskLength) {
		t.Fatalf("mask length: got %v", err)
	}

	if _, _, err := Fit(energies, absorption[:3], ModeLinear, make([]bool, 4)); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("length mismatch: got %v", err)
	}
}
