// Package elliott evaluates the Elliott model of excitonic optical
// absorption: a sum of discrete exciton resonances plus a band-to-band
// continuum term, with a fractional-dimension parameter interpolating
// between bulk and strongly confined behavior.
//
// The model curve for a parameter set p over photon energies E is
//
//	A(E) = ucvsq * sqrt(Eb) * (exciton(E) + band(E))
//
// where the exciton term sums sech-broadened resonances over quantum
// numbers n = 1..50 at energies Eg - Eb/(n-q)^2, and the band term is a
// trapezoidal integral of a sech-broadened continuum density from Eg to
// 2*Eg including a Sommerfeld enhancement factor.
//
// # Usage
//
// Evaluate a curve and its sum-of-squared-error against observed data:
//
//	res, err := elliott.Evaluate(params, energies, observed)
//	// res.Fitted, res.Exciton, res.Band, res.SSE
//
// Evaluation is pure: the same call serves both as the optimization
// objective (SSE only) and for curve reconstruction over the full
// energy range after fitting.
package elliott
