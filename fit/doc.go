// Package fit orchestrates the multi-stage bounded Elliott fit:
// baseline subtraction, initial band-gap estimation, dynamic bound
// construction, a preliminary fit on the central energy range, the
// primary fit on the selected range, and an optional bandgap-focused
// refinement.
//
// Datasets within one batch are fitted strictly in order because each
// converged parameter set seeds the next fit (warm-start chaining):
// spectra from one experimental series are assumed to vary smoothly.
// The chained starting point is threaded explicitly through [Pipeline.Run];
// there is no hidden mutable fitter state.
package fit
