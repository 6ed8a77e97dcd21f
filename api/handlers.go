// Package api exposes the fitting pipeline as a small JSON-over-HTTP
// service: the client posts the numeric table together with selection
// coordinates and receives fitted parameters, quality metrics and the
// reconstructed curves.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/cwbudde/algo-elliott/baseline"
	"github.com/cwbudde/algo-elliott/dataset"
	"github.com/cwbudde/algo-elliott/elliott"
	"github.com/cwbudde/algo-elliott/fit"
)

// Version is set at build time or defaults to dev.
var Version = "dev"

// StartOverride replaces individual starting-point components. Eb and
// Gamma arrive in meV, matching the original web form.
type StartOverride struct {
	Eg    *float64 `json:"Eg,omitempty"`
	Eb    *float64 `json:"Eb,omitempty"`
	Gamma *float64 `json:"Gamma,omitempty"`
	Ucvsq *float64 `json:"ucvsq,omitempty"`
	Mhcnp *float64 `json:"mhcnp,omitempty"`
	Q     *float64 `json:"q,omitempty"`
}

// BoundRange overrides one side or both sides of a parameter bound.
type BoundRange struct {
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

// BoundsOverride adjusts the global box constraint. The Eg bound is
// always recomputed from the initial gap estimate and cannot be
// overridden. Eb and Gamma arrive in meV.
type BoundsOverride struct {
	Eb    *BoundRange `json:"Eb,omitempty"`
	Gamma *BoundRange `json:"Gamma,omitempty"`
	Ucvsq *BoundRange `json:"ucvsq,omitempty"`
	Mhcnp *BoundRange `json:"mhcnp,omitempty"`
	Q     *BoundRange `json:"q,omitempty"`
}

// AnalyzeRequest carries the spectrum and fitting options. Exactly one
// of Wavelengths (nm) or Energies (eV) must be present.
type AnalyzeRequest struct {
	Name         string          `json:"name,omitempty"`
	Wavelengths  []float64       `json:"wavelengths,omitempty"`
	Energies     []float64       `json:"energies,omitempty"`
	Columns      [][]float64     `json:"columns"`
	Points       []float64       `json:"points"`
	Mode         string          `json:"mode,omitempty"`
	Datasets     []int           `json:"datasets,omitempty"`
	MinEnergy    float64         `json:"min_energy,omitempty"`
	MaxEnergy    float64         `json:"max_energy,omitempty"`
	NoRefinement bool            `json:"no_refinement,omitempty"`
	Initial      *StartOverride  `json:"initial_values,omitempty"`
	Bounds       *BoundsOverride `json:"bounds,omitempty"`
}

// Parameters reports the converged fit. Eb and Gamma are returned in
// meV like the original interface.
type Parameters struct {
	Eg            float64 `json:"Eg"`
	EbRydberg     float64 `json:"Eb_Rydberg"`
	EbGroundState float64 `json:"Eb_GroundState"`
	Gamma         float64 `json:"Gamma"`
	Ucvsq         float64 `json:"ucvsq"`
	Mhcnp         float64 `json:"mhcnp"`
	Q             float64 `json:"q"`
	Deff          float64 `json:"Deff"`
}

// UrbachResult is present only when the tail fit was defined.
type UrbachResult struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Curves holds the reconstructed model curves over the full range.
type Curves struct {
	Fitted   []float64 `json:"fitted"`
	Exciton  []float64 `json:"exciton"`
	Band     []float64 `json:"band"`
	Baseline []float64 `json:"baseline"`
}

// DatasetResult is the outcome for one absorption column.
type DatasetResult struct {
	Dataset    int           `json:"dataset"`
	Parameters Parameters    `json:"parameters"`
	Quality    float64       `json:"quality"`
	InitialEg  float64       `json:"initial_eg"`
	Urbach     *UrbachResult `json:"urbach,omitempty"`
	Warnings   []string      `json:"warnings,omitempty"`
	Curves     Curves        `json:"curves"`
}

// AnalyzeResponse is the full reply for one table.
type AnalyzeResponse struct {
	Success  bool            `json:"success"`
	Name     string          `json:"name,omitempty"`
	Energies []float64       `json:"energies"`
	Results  []DatasetResult `json:"results"`
}

// HealthResponse is the health check reply.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Handlers holds the HTTP handler methods for the analysis API.
type Handlers struct{}

// NewHandlers creates a new Handlers.
func NewHandlers() *Handlers {
	return &Handlers{}
}

// HandleHealth returns a simple health check response.
func (h *Handlers) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: Version,
	})
}

// HandleAnalyze fits the posted table and returns parameters, quality
// metrics and curves per selected dataset.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	table, err := tableFromRequest(&req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode, err := parseMode(req.Mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	masks, err := dataset.MasksFromPoints(table.Energies, req.Points, mode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	indices, err := indicesFromRequest(&req, len(table.Columns))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := fit.Config{
		Mode:         mode,
		Start:        startFromRequest(req.Initial),
		Bounds:       boundsFromRequest(req.Bounds),
		MinEnergy:    req.MinEnergy,
		MaxEnergy:    req.MaxEnergy,
		NoRefinement: req.NoRefinement,
	}

	results, err := fit.New(cfg).Run(table, indices, masks)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	resp := AnalyzeResponse{
		Success:  true,
		Name:     req.Name,
		Energies: table.Energies,
		Results:  make([]DatasetResult, len(results)),
	}

	for i, res := range results {
		resp.Results[i] = datasetResult(indices[i]+1, res)
	}

	writeJSON(w, http.StatusOK, resp)
}

// RegisterRoutes registers the analysis API routes on the given mux.
func RegisterRoutes(mux *http.ServeMux) {
	h := NewHandlers()
	mux.HandleFunc("GET /api/health", h.HandleHealth)
	mux.HandleFunc("POST /api/analyze", h.HandleAnalyze)
}

func tableFromRequest(req *AnalyzeRequest) (*dataset.Table, error) {
	var energies, wavelengths []float64

	switch {
	case len(req.Energies) > 0 && len(req.Wavelengths) > 0:
		return nil, fmt.Errorf("api: provide either wavelengths or energies, not both")
	case len(req.Energies) > 0:
		energies = req.Energies
	case len(req.Wavelengths) > 0:
		wavelengths = req.Wavelengths
		energies = make([]float64, len(wavelengths))
		for i, nm := range wavelengths {
			energies[i] = dataset.EnergyFromWavelength(nm)
		}
	default:
		return nil, fmt.Errorf("api: wavelengths or energies are required")
	}

	if len(req.Columns) == 0 {
		return nil, fmt.Errorf("api: at least one absorption column is required")
	}

	for i, col := range req.Columns {
		if len(col) != len(energies) {
			return nil, fmt.Errorf("api: column %d has %d values, expected %d", i+1, len(col), len(energies))
		}
	}

	return &dataset.Table{
		Wavelengths: wavelengths,
		Energies:    energies,
		Columns:     req.Columns,
	}, nil
}

// indicesFromRequest converts the 1-indexed dataset selection of the
// original interface to column indices. Nil selects all columns.
func indicesFromRequest(req *AnalyzeRequest, columns int) ([]int, error) {
	if req.Datasets == nil {
		indices := make([]int, columns)
		for i := range indices {
			indices[i] = i
		}

		return indices, nil
	}

	indices := make([]int, len(req.Datasets))
	for i, d := range req.Datasets {
		if d < 1 || d > columns {
			return nil, fmt.Errorf("api: dataset %d out of range (1..%d)", d, columns)
		}

		indices[i] = d - 1
	}

	// The pipeline fits in ascending order; keep the response labels
	// aligned with it.
	sort.Ints(indices)

	return indices, nil
}

// parseMode maps the request's mode string; an empty string selects the
// Rayleigh default, matching the original interface.
func parseMode(s string) (baseline.Mode, error) {
	switch s {
	case "", "rayleigh":
		return baseline.ModeRayleigh, nil
	case "none":
		return baseline.ModeNone, nil
	case "linear":
		return baseline.ModeLinear, nil
	default:
		return 0, fmt.Errorf("api: unknown baseline mode %q", s)
	}
}

func startFromRequest(ov *StartOverride) elliott.Params {
	start := elliott.DefaultStart()
	if ov == nil {
		return start
	}

	setParam(&start.Eg, ov.Eg, 1)
	setParam(&start.Eb, ov.Eb, 1e-3)
	setParam(&start.Gamma, ov.Gamma, 1e-3)
	setParam(&start.Ucvsq, ov.Ucvsq, 1)
	setParam(&start.Mhcnp, ov.Mhcnp, 1)
	setParam(&start.Q, ov.Q, 1)

	return start
}

func boundsFromRequest(ov *BoundsOverride) fit.Bounds {
	b := fit.DefaultBounds()
	if ov == nil {
		return b
	}

	applyRange(&b.Lower.Eb, &b.Upper.Eb, ov.Eb, 1e-3)
	applyRange(&b.Lower.Gamma, &b.Upper.Gamma, ov.Gamma, 1e-3)
	applyRange(&b.Lower.Ucvsq, &b.Upper.Ucvsq, ov.Ucvsq, 1)
	applyRange(&b.Lower.Mhcnp, &b.Upper.Mhcnp, ov.Mhcnp, 1)
	applyRange(&b.Lower.Q, &b.Upper.Q, ov.Q, 1)

	return b
}

func setParam(dst *float64, src *float64, scale float64) {
	if src != nil {
		*dst = *src * scale
	}
}

func applyRange(lo, hi *float64, r *BoundRange, scale float64) {
	if r == nil {
		return
	}

	setParam(lo, r.Lower, scale)
	setParam(hi, r.Upper, scale)
}

func datasetResult(num int, res *fit.Result) DatasetResult {
	out := DatasetResult{
		Dataset: num,
		Parameters: Parameters{
			Eg:            res.Params.Eg,
			EbRydberg:     res.Params.Eb * 1000,
			EbGroundState: res.GroundStateEb * 1000,
			Gamma:         res.Params.Gamma * 1000,
			Ucvsq:         res.Params.Ucvsq,
			Mhcnp:         res.Params.Mhcnp,
			Q:             res.Params.Q,
			Deff:          res.EffectiveDimension,
		},
		Quality:   res.RSquared,
		InitialEg: res.InitialEg,
		Warnings:  res.Warnings,
		Curves: Curves{
			Fitted:   res.Fitted,
			Exciton:  res.Exciton,
			Band:     res.Band,
			Baseline: res.Baseline,
		},
	}

	if res.Urbach.Valid {
		out.Urbach = &UrbachResult{Slope: res.Urbach.Slope, Intercept: res.Urbach.Intercept}
	}

	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, ErrorResponse{Error: msg, Code: code})
}
