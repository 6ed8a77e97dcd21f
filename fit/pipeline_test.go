package fit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/algo-elliott/baseline"
	"github.com/cwbudde/algo-elliott/dataset"
	"github.com/cwbudde/algo-elliott/elliott"
	"github.com/cwbudde/algo-elliott/internal/testutil"
)

// syntheticColumn evaluates the model at known parameters over the
// given axis and adds a linear background plus faint deterministic
// noise.
func syntheticColumn(t *testing.T, p elliott.Params, energies []float64) []float64 {
	t.Helper()

	res, err := elliott.Evaluate(p, energies, make([]float64, len(energies)))
	require.NoError(t, err)

	noise := testutil.DeterministicNoise(7, 1e-4, len(energies))

	absorption := make([]float64, len(energies))
	for i := range absorption {
		absorption[i] = res.Fitted[i] + 0.02*energies[i] + 0.01 + noise[i]
	}

	return absorption
}

func syntheticSpectrum(t *testing.T, p elliott.Params, n int, lo, hi float64) (energies, absorption []float64) {
	t.Helper()

	energies = testutil.Linspace(lo, hi, n)
	return energies, syntheticColumn(t, p, energies)
}

func TestFitDatasetRecoversSyntheticSpectrum(t *testing.T) {
	truth := elliott.Params{Eg: 2.62, Eb: 0.060, Gamma: 0.080, Ucvsq: 40, Mhcnp: 0.060, Q: 0.2}
	energies, absorption := syntheticSpectrum(t, truth, 240, 1.8, 3.6)

	masks := dataset.SelectionMasks{
		Baseline: dataset.RangeMask(energies, 1.8, 2.2),
		Fit:      dataset.RangeMask(energies, 2.2, 3.4),
	}

	p := New(Config{Mode: baseline.ModeLinear})

	res, err := p.FitDataset(energies, absorption, masks, elliott.Params{})
	require.NoError(t, err)

	assert.InDelta(t, truth.Eg, res.Params.Eg, 0.05, "band gap")
	assert.InDelta(t, truth.Eb, res.Params.Eb, 0.1*truth.Eb, "binding energy")
	assert.InDelta(t, truth.Gamma, res.Params.Gamma, 0.1*truth.Gamma, "linewidth")
	assert.InDelta(t, truth.Q, res.Params.Q, 0.05, "dimension parameter")
	assert.InDelta(t, truth.Ucvsq, res.Params.Ucvsq, 0.2*truth.Ucvsq, "dipole strength")
	assert.Greater(t, res.RSquared, 0.95, "goodness of fit")
	assert.InDelta(t, truth.Eg, res.InitialEg, 0.35, "initial estimate")

	for i, v := range res.Fitted {
		require.Falsef(t, math.IsNaN(v) || math.IsInf(v, 0), "fitted[%d] not finite", i)
	}

	// The linear background must be mostly removed.
	assert.InDelta(t, 0.02*energies[0]+0.01, res.Baseline[0], 0.01)
	assert.Equal(t, masks.Baseline, res.BaselineMask)
}

func TestFitDatasetDerivedQuantities(t *testing.T) {
	truth := elliott.Params{Eg: 2.62, Eb: 0.060, Gamma: 0.080, Ucvsq: 40, Mhcnp: 0.060, Q: 0.2}
	energies, absorption := syntheticSpectrum(t, truth, 200, 2.0, 3.4)

	masks := dataset.SelectionMasks{
		Baseline: dataset.RangeMask(energies, 2.0, 2.3),
		Fit:      dataset.RangeMask(energies, 2.3, 3.3),
	}

	p := New(Config{Mode: baseline.ModeLinear})

	res, err := p.FitDataset(energies, absorption, masks, elliott.Params{})
	require.NoError(t, err)

	wantEb := res.Params.Eb / ((1 - res.Params.Q) * (1 - res.Params.Q))
	assert.InDelta(t, wantEb, res.GroundStateEb, 1e-12)
	assert.InDelta(t, 3-2*res.Params.Q, res.EffectiveDimension, 1e-12)
	assert.Len(t, res.Cleaned, len(energies))
}

func TestRunWarmStartMatchesIndependentFit(t *testing.T) {
	// Two spectra from the same synthetic series: the parameters drift
	// slightly between datasets, as they would across a temperature or
	// composition sweep.
	truthA := elliott.Params{Eg: 2.62, Eb: 0.060, Gamma: 0.080, Ucvsq: 40, Mhcnp: 0.060, Q: 0.2}
	truthB := elliott.Params{Eg: 2.64, Eb: 0.062, Gamma: 0.085, Ucvsq: 42, Mhcnp: 0.058, Q: 0.2}

	energies := testutil.Linspace(2.0, 3.4, 200)
	table := &dataset.Table{
		Energies: energies,
		Columns: [][]float64{
			syntheticColumn(t, truthA, energies),
			syntheticColumn(t, truthB, energies),
		},
	}

	masks := dataset.SelectionMasks{
		Baseline: dataset.RangeMask(energies, 2.0, 2.3),
		Fit:      dataset.RangeMask(energies, 2.3, 3.3),
	}

	p := New(Config{Mode: baseline.ModeLinear})

	results, err := p.Run(table, nil, masks)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Fitting the second column independently from a good manual start
	// must converge to the same optimum the chained fit found.
	manualStart := truthB
	manualStart.Eb = 0.060
	manualStart.Gamma = 0.080

	independent, err := p.FitDataset(energies, table.Columns[1], masks, manualStart)
	require.NoError(t, err)

	chained := results[1].Params
	assert.InDelta(t, independent.Params.Eg, chained.Eg, 0.02)
	assert.InDelta(t, independent.Params.Eb, chained.Eb, 0.005)
	assert.InDelta(t, independent.Params.Gamma, chained.Gamma, 0.005)
	assert.InDelta(t, independent.Params.Q, chained.Q, 0.05)
	assert.Greater(t, results[1].RSquared, 0.95)

	// Both spectra resolve near their own ground truth.
	assert.InDelta(t, truthA.Eg, results[0].Params.Eg, 0.05)
	assert.InDelta(t, truthB.Eg, chained.Eg, 0.05)
}

func TestRunIndexOutOfRange(t *testing.T) {
	energies := []float64{2.0, 2.5, 3.0}
	table := &dataset.Table{
		Energies: energies,
		Columns:  [][]float64{{0.1, 0.2, 0.3}},
	}

	p := New(Config{Mode: baseline.ModeNone})

	_, err := p.Run(table, []int{3}, dataset.SelectionMasks{Fit: []bool{true, true, true}})
	assert.ErrorIs(t, err, ErrIndexRange)
}

func TestFitDatasetSmallRangeFallsBackToFullRange(t *testing.T) {
	truth := elliott.Params{Eg: 2.62, Eb: 0.060, Gamma: 0.080, Ucvsq: 40, Mhcnp: 0.060, Q: 0.2}
	energies, absorption := syntheticSpectrum(t, truth, 160, 2.0, 3.4)

	// A fit mask with fewer than the minimum point count.
	fitMask := make([]bool, len(energies))
	for i := 0; i < 4; i++ {
		fitMask[i] = true
	}

	p := New(Config{Mode: baseline.ModeNone, NoRefinement: true})

	res, err := p.FitDataset(energies, absorption, dataset.SelectionMasks{Fit: fitMask}, elliott.Params{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "full energy range")
	assert.Equal(t, len(energies), dataset.CountTrue(res.FitMask))
}

func TestFitDatasetInputErrors(t *testing.T) {
	energies := []float64{2.0, 2.5, 3.0}

	p := New(Config{Mode: baseline.ModeLinear})

	cases := []struct {
		name       string
		energies   []float64
		absorption []float64
		masks      dataset.SelectionMasks
		want       error
	}{
		{"empty", nil, nil, dataset.SelectionMasks{}, ErrEmptyData},
		{"mismatch", energies, []float64{0.1}, dataset.SelectionMasks{}, ErrLengthMismatch},
		{
			"all NaN", energies,
			[]float64{math.NaN(), math.NaN(), math.NaN()},
			dataset.SelectionMasks{},
			ErrNoFiniteData,
		},
		{
			"missing baseline mask", energies,
			[]float64{0.1, 0.2, 0.3},
			dataset.SelectionMasks{Fit: []bool{true, true, true}},
			ErrMissingBaselineMask,
		},
		{
			"short fit mask", energies,
			[]float64{0.1, 0.2, 0.3},
			dataset.SelectionMasks{Baseline: []bool{true, true, true}, Fit: []bool{true}},
			ErrMaskLength,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := p.FitDataset(tc.energies, tc.absorption, tc.masks, elliott.Params{})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestFitDatasetModeNoneRequiresFitMask(t *testing.T) {
	energies := []float64{2.0, 2.5, 3.0}

	p := New(Config{Mode: baseline.ModeNone})

	_, err := p.FitDataset(energies, []float64{0.1, 0.2, 0.3}, dataset.SelectionMasks{}, elliott.Params{})
	assert.ErrorIs(t, err, ErrMissingFitMask)
}

func TestWindowMask(t *testing.T) {
	energies := []float64{1.0, 2.0, 3.0, 4.0}

	full := New(Config{Mode: baseline.ModeNone})
	assert.Equal(t, 4, dataset.CountTrue(full.windowMask(energies)))

	clipped := New(Config{Mode: baseline.ModeNone, MinEnergy: 1.5, MaxEnergy: 3.5})
	assert.Equal(t, []bool{false, true, true, false}, clipped.windowMask(energies))

	openTop := New(Config{Mode: baseline.ModeNone, MinEnergy: 2.5})
	assert.Equal(t, []bool{false, false, true, true}, openTop.windowMask(energies))
}

func TestMinimizeBoundedRespectsBox(t *testing.T) {
	// Quadratic with its unconstrained minimum outside the box.
	objective := func(v []float64) float64 {
		return (v[0]-5)*(v[0]-5) + (v[1]+2)*(v[1]+2)
	}

	got := minimizeBounded(objective, []float64{1, 0}, []float64{0, -1}, []float64{2, 1}, OptimizerConfig{}.withDefaults())

	assert.InDelta(t, 2.0, got[0], 1e-4)
	assert.InDelta(t, -1.0, got[1], 1e-4)
	assert.GreaterOrEqual(t, got[0], 0.0)
	assert.LessOrEqual(t, got[0], 2.0)
}

func TestMinimizeBoundedFrozenParameter(t *testing.T) {
	objective := func(v []float64) float64 {
		return v[0]*v[0] + v[1]*v[1]
	}

	got := minimizeBounded(objective, []float64{0.5, 3}, []float64{-1, 3}, []float64{1, 3}, OptimizerConfig{}.withDefaults())

	assert.InDelta(t, 0.0, got[0], 1e-4)
	assert.Equal(t, 3.0, got[1])
}
