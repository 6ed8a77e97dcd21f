package elliott_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-elliott/elliott"
)

func ExampleEvaluate() {
	energies := make([]float64, 80)
	for i := range energies {
		energies[i] = 2.0 + 1.2*float64(i)/float64(len(energies)-1)
	}
	observed := make([]float64, len(energies))

	p := elliott.Params{Eg: 2.62, Eb: 0.05, Gamma: 0.1, Ucvsq: 10, Mhcnp: 0.06, Q: 0.2}
	res, err := elliott.Evaluate(p, energies, observed)
	if err != nil {
		panic(err)
	}

	// The exciton contribution peaks at the n=1 resonance below the gap.
	peak := 0
	for j := range res.Exciton {
		if res.Exciton[j] > res.Exciton[peak] {
			peak = j
		}
	}

	fmt.Printf("exciton peak near %.2f eV (gap %.2f eV)\n", energies[peak], p.Eg)
	fmt.Println("below gap:", energies[peak] < p.Eg)
	fmt.Println("finite:", !math.IsNaN(res.SSE) && !math.IsInf(res.SSE, 0))
	// Output:
	// exciton peak near 2.55 eV (gap 2.62 eV)
	// below gap: true
	// finite: true
}
