package elliott

import (
	"errors"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

const (
	// maxQuantumNumber bounds the exciton resonance sum n = 1..50.
	maxQuantumNumber = 50

	// defaultChunkSize is the number of integration-grid rows evaluated
	// per chunk of the band integral.
	defaultChunkSize = 512

	// coshClamp limits sech arguments; cosh(700) is near the float64 max.
	coshClamp = 700.0

	minGamma       = 1e-10
	minDenominator = 1e-10
	degenerateQTol = 1e-10
)

var (
	ErrEmptyInput     = errors.New("elliott: energies must not be empty")
	ErrLengthMismatch = errors.New("elliott: energies and observed must have equal length")
)

// Config holds model evaluation parameters.
type Config struct {
	// ChunkSize is the number of integration-grid points processed per
	// chunk of the band integral. Zero selects the default (512). The
	// numerical result is independent of the chunk size.
	ChunkSize int
}

// Result holds one model evaluation.
type Result struct {
	// SSE is the sum of squared errors against the observed data,
	// multiplied by 10 when Mhcnp <= 0 to steer the optimizer away from
	// non-physical mass parameters. The curves are never penalized.
	SSE float64
	// Fitted is Ucvsq*sqrt(Eb)*(exciton+band) per energy sample.
	Fitted []float64
	// Exciton is the discrete resonance contribution.
	Exciton []float64
	// Band is the continuum contribution.
	Band []float64
}

// Model evaluates Elliott absorption curves.
type Model struct {
	cfg Config
}

// New creates a model evaluator.
func New(cfg Config) *Model {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}

	return &Model{cfg: cfg}
}

// Evaluate is a one-shot evaluation with the default configuration.
func Evaluate(p Params, energies, observed []float64) (Result, error) {
	return New(Config{}).Evaluate(p, energies, observed)
}

// Evaluate computes the model curves over energies and the SSE against
// observed. Both slices must have equal, non-zero length.
func (m *Model) Evaluate(p Params, energies, observed []float64) (Result, error) {
	n := len(energies)
	if n == 0 {
		return Result{}, ErrEmptyInput
	}

	if len(observed) != n {
		return Result{}, ErrLengthMismatch
	}

	gamma := math.Abs(p.Gamma)
	if gamma < minGamma {
		gamma = minGamma
	}

	ebSafe := math.Max(p.Eb, 0)

	exciton := m.excitonSum(p, energies, gamma, ebSafe)
	band := m.bandIntegral(p, energies, gamma, ebSafe)

	scale := p.Ucvsq * math.Sqrt(ebSafe)

	res := Result{
		Fitted:  make([]float64, n),
		Exciton: make([]float64, n),
		Band:    make([]float64, n),
	}
	vecmath.ScaleBlock(res.Exciton, exciton, scale)
	vecmath.ScaleBlock(res.Band, band, scale)
	copy(res.Fitted, res.Exciton)
	vecmath.AddBlockInPlace(res.Fitted, res.Band)

	sse := 0.0
	for j := range res.Fitted {
		d := res.Fitted[j] - observed[j]
		sse += d * d
	}

	if p.Mhcnp <= 0 {
		sse *= 10
	}

	res.SSE = sse

	return res, nil
}

// excitonSum accumulates the sech-broadened resonances for quantum
// numbers n = 1..50, skipping degenerate terms with |n-q| below tolerance.
func (m *Model) excitonSum(p Params, energies []float64, gamma, ebSafe float64) []float64 {
	sum := make([]float64, len(energies))
	if ebSafe == 0 {
		return sum
	}

	term := make([]float64, len(energies))

	for n := 1; n <= maxQuantumNumber; n++ {
		den := float64(n) - p.Q
		if math.Abs(den) < degenerateQTol {
			continue
		}

		peak := p.Eg - ebSafe/(den*den)
		pref := 2 * ebSafe / (den * den * den)

		for j, e := range energies {
			term[j] = pref * sech((e-peak)/gamma)
		}

		vecmath.AddBlockInPlace(sum, term)
	}

	return sum
}

// bandIntegral evaluates the continuum term by trapezoidal quadrature
// over a synthetic grid from Eg to 2*Eg with 10x the data resolution.
// The grid is processed in chunks with a boundary trapezoid stitched
// between consecutive chunks; the result matches a single-pass
// integration to floating-point tolerance.
func (m *Model) bandIntegral(p Params, energies []float64, gamma, ebSafe float64) []float64 {
	n := len(energies)

	nGrid := 10 * n
	if nGrid < 2 {
		nGrid = 2
	}

	grid := make([]float64, nGrid)
	step := p.Eg / float64(nGrid-1)
	for i := range grid {
		grid[i] = p.Eg + float64(i)*step
	}

	acc := make([]float64, n)
	rows := make([]float64, m.cfg.ChunkSize*n)
	prevRow := make([]float64, n)
	havePrev := false
	prevE := 0.0

	for start := 0; start < nGrid; start += m.cfg.ChunkSize {
		end := start + m.cfg.ChunkSize
		if end > nGrid {
			end = nGrid
		}

		count := end - start
		for i := range count {
			w := m.bandWeight(p, grid[start+i], ebSafe)

			row := rows[i*n : (i+1)*n]
			if w == 0 {
				clear(row)
				continue
			}

			for j, e := range energies {
				row[j] = w * sech((e-grid[start+i])/gamma)
			}
		}

		// Boundary trapezoid against the previous chunk's last row.
		if havePrev {
			d := grid[start] - prevE
			first := rows[:n]
			for j := range acc {
				acc[j] += 0.5 * (prevRow[j] + first[j]) * d
			}
		}

		for i := 0; i+1 < count; i++ {
			d := grid[start+i+1] - grid[start+i]
			lo := rows[i*n : (i+1)*n]
			hi := rows[(i+1)*n : (i+2)*n]
			for j := range acc {
				acc[j] += 0.5 * (lo[j] + hi[j]) * d
			}
		}

		copy(prevRow, rows[(count-1)*n:count*n])
		prevE = grid[end-1]
		havePrev = true
	}

	return acc
}

// bandWeight is the energy-dependent factor of the continuum integrand.
// It is exactly zero at and below the band gap; this is a hard boundary.
func (m *Model) bandWeight(p Params, e, ebSafe float64) float64 {
	dE := e - p.Eg
	if dE <= 0 {
		return 0
	}

	if dE < 1e-12 {
		dE = 1e-12
	}

	b := 10*p.Mhcnp*dE + 126*p.Mhcnp*p.Mhcnp*dE*dE

	denom := 1.0
	if ebSafe > 0 {
		denom = 1 - math.Exp(-2*math.Pi*math.Sqrt(ebSafe/dE))
	}

	if math.Abs(denom) < minDenominator {
		denom = minDenominator
	}

	return (1 + b) / denom
}

// sech computes 1/cosh with the argument clamped to avoid overflow.
func sech(z float64) float64 {
	if z > coshClamp {
		z = coshClamp
	} else if z < -coshClamp {
		z = -coshClamp
	}

	return 1 / math.Cosh(z)
}
