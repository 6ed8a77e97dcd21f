package fit

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

const (
	defaultMaxIterations = 1000
	defaultFuncTolerance = 1e-13
	defaultGradTolerance = 1e-12
)

// OptimizerConfig holds the stopping criteria passed to the bounded
// local minimizer.
type OptimizerConfig struct {
	MaxIterations int
	FuncTolerance float64
	GradTolerance float64
}

func (c OptimizerConfig) withDefaults() OptimizerConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = defaultMaxIterations
	}

	if c.FuncTolerance <= 0 {
		c.FuncTolerance = defaultFuncTolerance
	}

	if c.GradTolerance <= 0 {
		c.GradTolerance = defaultGradTolerance
	}

	return c
}

// minimizeBounded minimizes objective inside the box [lower, upper]
// with quasi-Newton LBFGS over a sinusoidal change of variables
// x = lo + (hi-lo)*(sin(u)+1)/2 that maps the unconstrained search
// space onto the box. Gradients come from finite differences.
//
// Non-convergence is not a failure: the best iterate found when the
// iteration budget or line search gives out is returned as the result.
func minimizeBounded(objective func([]float64) float64, start, lower, upper []float64, cfg OptimizerConfig) []float64 {
	cfg = cfg.withDefaults()
	dim := len(start)

	toBox := func(u []float64) []float64 {
		x := make([]float64, dim)
		for i := range x {
			lo, hi := lower[i], upper[i]
			if hi <= lo {
				x[i] = lo
				continue
			}
			x[i] = lo + (hi-lo)*(math.Sin(u[i])+1)/2
		}

		return x
	}

	u0 := make([]float64, dim)
	for i := range u0 {
		lo, hi := lower[i], upper[i]
		if hi <= lo {
			continue
		}

		x := math.Min(math.Max(start[i], lo), hi)
		t := 2*(x-lo)/(hi-lo) - 1
		u0[i] = math.Asin(math.Min(math.Max(t, -1), 1))
	}

	wrapped := func(u []float64) float64 {
		return objective(toBox(u))
	}

	problem := optimize.Problem{
		Func: wrapped,
		Grad: func(grad, u []float64) {
			fd.Gradient(grad, wrapped, u, nil)
		},
	}

	settings := &optimize.Settings{
		MajorIterations:   cfg.MaxIterations,
		GradientThreshold: cfg.GradTolerance,
		Converger: &optimize.FunctionConverge{
			Absolute:   cfg.FuncTolerance,
			Iterations: 20,
		},
	}

	result, err := optimize.Minimize(problem, u0, settings, &optimize.LBFGS{})
	if result == nil || err != nil && result.X == nil {
		return toBox(u0)
	}

	return toBox(result.X)
}
