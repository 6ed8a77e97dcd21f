package testutil

import (
	"math"
	"testing"
)

func TestMaxAbsDiff(t *testing.T) {
	a := []float64{0.1, 0.25, 0.4}
	b := []float64{0.1, 0.2, 0.4}

	d, err := MaxAbsDiff(a, b)
	if err != nil {
		t.Fatalf("MaxAbsDiff error: %v", err)
	}
	if math.Abs(d-0.05) > 1e-15 {
		t.Fatalf("MaxAbsDiff = %v, want 0.05", d)
	}

	if d, err := MaxAbsDiff(a, a); err != nil || d != 0 {
		t.Fatalf("identical curves: d = %v, err = %v", d, err)
	}

	if _, err := MaxAbsDiff(a, b[:2]); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestRequireSliceNearlyEqual(t *testing.T) {
	got := Linspace(1.0, 2.0, 5)
	want := Linspace(1.0, 2.0, 5)
	RequireSliceNearlyEqual(t, got, want, 1e-15)
}

func TestRequireFinite(t *testing.T) {
	RequireFinite(t, Linspace(-3.0, 3.0, 7))
}
