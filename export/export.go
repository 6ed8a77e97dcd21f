// Package export writes fit results to CSV in a per-dataset block
// layout: a title row, a parameter table with value descriptions, and
// the raw, baseline and reconstructed curves sampled per wavelength.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cwbudde/algo-elliott/dataset"
	"github.com/cwbudde/algo-elliott/fit"
)

var (
	ErrNoResults   = errors.New("export: no results to write")
	ErrIndexCount  = errors.New("export: indices and results must have equal length")
	ErrIndexRange  = errors.New("export: dataset index out of range")
	ErrMissingAxis = errors.New("export: table has no wavelength or energy axis")
)

var curveHeader = []string{
	"Wavelength (nm)",
	"Raw Data",
	"Baseline",
	"Fitted Exciton",
	"Fitted Band",
	"Fitted Result (Band+Exciton)",
}

var paramHeader = []string{
	"Eg (eV)",
	"Eb_Rydberg (meV)",
	"Eb_GroundState (meV)",
	"Gamma (meV)",
	"ucvsq",
	"mhcnp",
	"q",
	"Deff",
	"R²",
	"Urbach Slope",
	"Urbach Intercept",
}

var paramDescriptions = []string{
	"Band gap energy",
	"Effective Rydberg constant",
	"Actual GS Binding Energy (Eb/(1-q)^2)",
	"Linewidth (broadening)",
	"Transition dipole moment squared",
	"Mass parameter",
	"Fractional dimension parameter (0=bulk, 0.5-0.6=quasi 2D, 1.5=strong QD)",
	"Effective dimension (Deff = 3 - 2*q)",
	"Coefficient of determination",
	"Urbach tail slope",
	"Urbach tail intercept",
}

// WriteCSV writes one block per result. indices maps each result to
// its column in the table; nil means results cover columns 0..n-1.
func WriteCSV(w io.Writer, table *dataset.Table, results []*fit.Result, indices []int) error {
	if len(results) == 0 {
		return ErrNoResults
	}

	if indices == nil {
		indices = make([]int, len(results))
		for i := range indices {
			indices[i] = i
		}
	}

	if len(indices) != len(results) {
		return ErrIndexCount
	}

	axis := table.Wavelengths
	if axis == nil {
		axis = table.Energies
	}

	if axis == nil {
		return ErrMissingAxis
	}

	cw := csv.NewWriter(w)

	for num, res := range results {
		idx := indices[num]
		if idx < 0 || idx >= len(table.Columns) {
			return fmt.Errorf("%w: %d", ErrIndexRange, idx)
		}

		if num > 0 {
			if err := cw.Write([]string{}); err != nil {
				return fmt.Errorf("export: %w", err)
			}
		}

		if err := writeBlock(cw, axis, table.Columns[idx], res, num+1); err != nil {
			return err
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	return nil
}

// SaveCSV writes the results to a file, truncating any existing one.
func SaveCSV(path string, table *dataset.Table, results []*fit.Result, indices []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if err := WriteCSV(f, table, results, indices); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}

	return nil
}

func writeBlock(cw *csv.Writer, axis, raw []float64, res *fit.Result, num int) error {
	rows := [][]string{
		{fmt.Sprintf("Dataset %d", num)},
		{},
		// A blank spacer column separates the curve columns from the
		// parameter table.
		append(append(append([]string{}, curveHeader...), ""), paramHeader...),
		append(emptyCells(len(curveHeader)+1), paramDescriptions...),
		append(emptyCells(len(curveHeader)+1), paramValues(res)...),
		{},
	}

	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	for i := range axis {
		total := res.Exciton[i] + res.Band[i] + res.Baseline[i]
		row := []string{
			cell(axis[i]),
			cell(raw[i]),
			cell(res.Baseline[i]),
			cell(res.Exciton[i]),
			cell(res.Band[i]),
			cell(total),
		}

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("export: %w", err)
		}
	}

	return nil
}

func paramValues(res *fit.Result) []string {
	p := res.Params
	values := []string{
		cell(p.Eg),
		cell(p.Eb * 1000),
		cell(res.GroundStateEb * 1000),
		cell(p.Gamma * 1000),
		cell(p.Ucvsq),
		cell(p.Mhcnp),
		cell(p.Q),
		cell(res.EffectiveDimension),
		cell(res.RSquared),
	}

	if res.Urbach.Valid {
		values = append(values, cell(res.Urbach.Slope), cell(res.Urbach.Intercept))
	} else {
		values = append(values, "", "")
	}

	return values
}

func emptyCells(n int) []string {
	return make([]string, n)
}

func cell(v float64) string {
	return fmt.Sprintf("%.6f", v)
}
