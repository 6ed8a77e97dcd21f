package fit

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/algo-elliott/bandgap"
	"github.com/cwbudde/algo-elliott/baseline"
	"github.com/cwbudde/algo-elliott/dataset"
	"github.com/cwbudde/algo-elliott/elliott"
	"github.com/cwbudde/algo-elliott/quality"
)

const (
	// minFitPoints is the smallest usable fitting range; smaller
	// candidate masks fall back to the full energy range.
	minFitPoints = 10

	// refineHalfWidth is the half width (eV) of the bandgap-focused
	// refinement window around the fitted Eg.
	refineHalfWidth = 0.5

	prelimLowerQuantile = 0.10
	prelimUpperQuantile = 0.90
)

var (
	ErrEmptyData           = errors.New("fit: dataset is empty")
	ErrLengthMismatch      = errors.New("fit: energies and absorption must have equal length")
	ErrNoFiniteData        = errors.New("fit: absorption column has no finite values")
	ErrMissingBaselineMask = errors.New("fit: the selected baseline mode requires a baseline mask")
	ErrMissingFitMask      = errors.New("fit: baseline mode none requires an explicit fit mask")
	ErrMaskLength          = errors.New("fit: selection masks must match the data length")
	ErrIndexRange          = errors.New("fit: dataset index out of range")
)

// Config holds the fitting options for one pipeline run.
type Config struct {
	// Mode selects the baseline model subtracted before fitting.
	Mode baseline.Mode
	// Start is the initial parameter vector for the first dataset.
	// The zero value selects elliott.DefaultStart().
	Start elliott.Params
	// Bounds is the global box constraint. The zero value selects
	// DefaultBounds(). The Eg component is recomputed per dataset.
	Bounds Bounds
	// MinEnergy and MaxEnergy optionally clip the fitting window (eV).
	// Zero disables the respective edge.
	MinEnergy float64
	MaxEnergy float64
	// NoRefinement disables the bandgap-focused refinement stage.
	NoRefinement bool
	// Model configures curve evaluation (integration chunk size).
	Model elliott.Config
	// Optimizer configures the bounded minimizer stopping criteria.
	Optimizer OptimizerConfig
}

// Result is the immutable outcome of fitting one dataset.
type Result struct {
	// Params is the converged parameter vector.
	Params elliott.Params
	// InitialEg is the band-gap estimate that seeded the fit and
	// centered the dynamic Eg bounds.
	InitialEg float64
	// SSE is the objective value over the final fitting range.
	SSE float64
	// RSquared is computed over the final fitting range only.
	RSquared float64
	// GroundStateEb is Eb/(1-q)^2 in eV.
	GroundStateEb float64
	// EffectiveDimension is Deff = 3 - 2*q.
	EffectiveDimension float64
	// Fitted, Exciton and Band are the model curves over the full
	// energy range, evaluated at the converged parameters.
	Fitted  []float64
	Exciton []float64
	Band    []float64
	// Baseline is the subtracted background over the full range.
	Baseline []float64
	// Cleaned is the baseline-subtracted absorption the fit ran on.
	Cleaned []float64
	// Urbach is the exponential-tail fit below the gap.
	Urbach quality.UrbachFit
	// FitMask and BaselineMask record the ranges actually used.
	FitMask      []bool
	BaselineMask []bool
	// Warnings collects advisory degradation and boundary-saturation
	// notes; they never abort a fit.
	Warnings []string
}

// Pipeline fits datasets with a fixed configuration.
type Pipeline struct {
	cfg   Config
	model *elliott.Model
}

// New creates a pipeline, normalizing zero-value configuration fields.
func New(cfg Config) *Pipeline {
	if cfg.Start == (elliott.Params{}) {
		cfg.Start = elliott.DefaultStart()
	}

	if cfg.Bounds == (Bounds{}) {
		cfg.Bounds = DefaultBounds()
	}

	cfg.Optimizer = cfg.Optimizer.withDefaults()

	return &Pipeline{cfg: cfg, model: elliott.New(cfg.Model)}
}

// Run fits the selected absorption columns of a table in ascending
// index order, threading each converged parameter vector into the next
// dataset's starting point. A nil indices slice selects every column.
//
// On a dataset error the results fitted so far are returned alongside
// the error so a batch driver can decide whether to continue.
func (p *Pipeline) Run(table *dataset.Table, indices []int, masks dataset.SelectionMasks) ([]*Result, error) {
	if table == nil || len(table.Energies) == 0 {
		return nil, ErrEmptyData
	}

	if indices == nil {
		indices = make([]int, len(table.Columns))
		for i := range indices {
			indices[i] = i
		}
	} else {
		indices = append([]int(nil), indices...)
		sort.Ints(indices)
	}

	start := p.cfg.Start
	results := make([]*Result, 0, len(indices))

	for _, idx := range indices {
		if idx < 0 || idx >= len(table.Columns) {
			return results, fmt.Errorf("%w: %d", ErrIndexRange, idx)
		}

		res, err := p.FitDataset(table.Energies, table.Columns[idx], masks, start)
		if err != nil {
			return results, fmt.Errorf("fit: dataset %d: %w", idx+1, err)
		}

		results = append(results, res)
		start = res.Params
	}

	return results, nil
}

// FitDataset fits one absorption column. The start parameters seed the
// optimization; a zero value selects the configured starting point.
func (p *Pipeline) FitDataset(energies, absorption []float64, masks dataset.SelectionMasks, start elliott.Params) (*Result, error) {
	n := len(energies)
	if n == 0 {
		return nil, ErrEmptyData
	}

	if len(absorption) != n {
		return nil, ErrLengthMismatch
	}

	if !hasFinite(absorption) {
		return nil, ErrNoFiniteData
	}

	if start == (elliott.Params{}) {
		start = p.cfg.Start
	}

	if masks.Fit != nil && len(masks.Fit) != n {
		return nil, ErrMaskLength
	}

	baseCurve, baseMask, err := p.fitBaseline(energies, absorption, masks)
	if err != nil {
		return nil, err
	}

	cleaned := make([]float64, n)
	for i := range cleaned {
		cleaned[i] = absorption[i] - baseCurve[i]
	}

	initialEg := bandgap.Estimate(energies, cleaned, start.Eg)
	bounds := dynamicBounds(p.cfg.Bounds, initialEg)

	var warnings []string

	// Preliminary fit on the central 80% of the energy range to reduce
	// sensitivity to edge artifacts.
	prelimStart := start
	prelimStart.Eg = initialEg
	prelimParams, _ := p.minimizeMasked(energies, cleaned, p.percentileMask(energies), prelimStart, bounds)

	// Primary fit on the selected range.
	fitMask := masks.Fit
	if fitMask == nil {
		fitMask = p.windowMask(energies)
	}

	if dataset.CountTrue(fitMask) < minFitPoints {
		warnings = append(warnings, fmt.Sprintf(
			"fitting range has fewer than %d points; using the full energy range", minFitPoints))
		fitMask = allTrue(n)
	}

	params, sse := p.minimizeMasked(energies, cleaned, fitMask, prelimParams, bounds)

	// Bandgap-focused refinement around the fitted Eg.
	if !p.cfg.NoRefinement {
		refMask := p.constrain(energies, dataset.RangeMask(energies, params.Eg-refineHalfWidth, params.Eg+refineHalfWidth))
		if dataset.CountTrue(refMask) > minFitPoints {
			params, sse = p.minimizeMasked(energies, cleaned, refMask, params, bounds)
			fitMask = refMask
		} else {
			warnings = append(warnings, "bandgap-focused window has too few points; keeping the primary fitting range")
		}
	}

	full, err := p.model.Evaluate(params, energies, cleaned)
	if err != nil {
		return nil, fmt.Errorf("fit: reconstructing curves: %w", err)
	}

	res := &Result{
		Params:             params,
		InitialEg:          initialEg,
		SSE:                sse,
		RSquared:           quality.RSquared(sse, subset(cleaned, fitMask)),
		GroundStateEb:      quality.GroundStateBinding(params.Eb, params.Q),
		EffectiveDimension: quality.EffectiveDimension(params.Q),
		Fitted:             full.Fitted,
		Exciton:            full.Exciton,
		Band:               full.Band,
		Baseline:           baseCurve,
		Cleaned:            cleaned,
		Urbach:             quality.Urbach(energies, cleaned, params.Eb, params.Eg),
		FitMask:            fitMask,
		BaselineMask:       baseMask,
		Warnings:           append(warnings, quality.BoundaryWarnings(params, bounds.Lower, bounds.Upper)...),
	}

	return res, nil
}

func (p *Pipeline) fitBaseline(energies, absorption []float64, masks dataset.SelectionMasks) ([]float64, []bool, error) {
	if p.cfg.Mode == baseline.ModeNone {
		if masks.Fit == nil {
			return nil, nil, ErrMissingFitMask
		}

		return make([]float64, len(energies)), make([]bool, len(energies)), nil
	}

	if masks.Baseline == nil {
		return nil, nil, ErrMissingBaselineMask
	}

	if len(masks.Baseline) != len(energies) {
		return nil, nil, ErrMaskLength
	}

	curve, used, err := baseline.Fit(energies, absorption, p.cfg.Mode, masks.Baseline)
	if err != nil {
		return nil, nil, fmt.Errorf("fit: %w", err)
	}

	return curve, used, nil
}

// minimizeMasked runs one bounded minimization of the model SSE over
// the masked subset, returning the best parameters and their SSE.
func (p *Pipeline) minimizeMasked(energies, cleaned []float64, mask []bool, start elliott.Params, b Bounds) (elliott.Params, float64) {
	xs := subset(energies, mask)
	ys := subset(cleaned, mask)

	objective := func(v []float64) float64 {
		res, err := p.model.Evaluate(elliott.ParamsFromVector(v), xs, ys)
		if err != nil {
			return math.Inf(1)
		}

		return res.SSE
	}

	best := minimizeBounded(objective, start.Vector(), b.Lower.Vector(), b.Upper.Vector(), p.cfg.Optimizer)
	params := elliott.ParamsFromVector(best)

	res, err := p.model.Evaluate(params, xs, ys)
	if err != nil {
		return params, math.Inf(1)
	}

	return params, res.SSE
}

// percentileMask marks the 10th-90th percentile energy window.
func (p *Pipeline) percentileMask(energies []float64) []bool {
	sorted := append([]float64(nil), energies...)
	sort.Float64s(sorted)

	lo := stat.Quantile(prelimLowerQuantile, stat.LinInterp, sorted, nil)
	hi := stat.Quantile(prelimUpperQuantile, stat.LinInterp, sorted, nil)

	return dataset.RangeMask(energies, lo, hi)
}

// windowMask marks the configured min/max energy window, defaulting to
// the full range when neither edge is set.
func (p *Pipeline) windowMask(energies []float64) []bool {
	if p.cfg.MinEnergy == 0 && p.cfg.MaxEnergy == 0 {
		return allTrue(len(energies))
	}

	lo := p.cfg.MinEnergy
	hi := p.cfg.MaxEnergy

	if hi == 0 {
		hi = math.Inf(1)
	}

	return dataset.RangeMask(energies, lo, hi)
}

// constrain intersects a mask with the configured min/max window.
func (p *Pipeline) constrain(energies []float64, mask []bool) []bool {
	window := p.windowMask(energies)
	for i := range mask {
		mask[i] = mask[i] && window[i]
	}

	return mask
}

func subset(values []float64, mask []bool) []float64 {
	if mask == nil {
		return values
	}

	out := make([]float64, 0, len(values))
	for i, keep := range mask {
		if keep {
			out = append(out, values[i])
		}
	}

	return out
}

func allTrue(n int) []bool {
	mask := make([]bool, n)
	for i := range mask {
		mask[i] = true
	}

	return mask
}

func hasFinite(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return true
		}
	}

	return false
}
