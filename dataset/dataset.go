// Package dataset loads plain numeric absorption tables and builds the
// selection masks consumed by the fitting pipeline.
//
// A table has one wavelength column in nanometers followed by one or
// more absorption columns. Header lines, blank lines and '#' comments
// before the first numeric row are skipped; the energy axis is derived
// as E(eV) = 1239.84193 / wavelength(nm).
package dataset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-elliott/baseline"
)

// WavelengthEnergyProduct is the nm-to-eV conversion constant in eV*nm.
const WavelengthEnergyProduct = 1239.84193

var (
	ErrNoData          = errors.New("dataset: no numeric data rows found")
	ErrColumnCount     = errors.New("dataset: rows must have at least two columns")
	ErrRaggedRow       = errors.New("dataset: inconsistent column count")
	ErrBadWavelength   = errors.New("dataset: wavelengths must be positive")
	ErrPointCount      = errors.New("dataset: wrong number of selection points for the baseline mode")
	ErrMaskAxisMissing = errors.New("dataset: selection requires a non-empty energy axis")
)

// EnergyFromWavelength converts a wavelength in nm to photon energy in eV.
func EnergyFromWavelength(nm float64) float64 {
	return WavelengthEnergyProduct / nm
}

// Table holds one loaded spectrum file.
type Table struct {
	// Wavelengths is the first file column, in nm.
	Wavelengths []float64
	// Energies is the derived energy axis, in eV, aligned with Wavelengths.
	Energies []float64
	// Columns holds one absorption series per remaining file column.
	Columns [][]float64
}

// Options controls table parsing.
type Options struct {
	// Comma switches the field separator from whitespace to ','.
	Comma bool
}

// LoadFile reads a table from disk, using comma separation for .csv files.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	defer f.Close()

	t, err := Load(f, Options{Comma: strings.EqualFold(filepath.Ext(path), ".csv")})
	if err != nil {
		return nil, fmt.Errorf("dataset: reading %s: %w", filepath.Base(path), err)
	}

	return t, nil
}

// Load parses a numeric table from r.
func Load(r io.Reader, opts Options) (*Table, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		table   Table
		columns int
		started bool
		lineNo  int
	)

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := splitFields(line, opts.Comma)
		if !started {
			// Header lines are skipped until the first row whose
			// leading two fields are both numeric.
			if len(fields) < 2 {
				continue
			}
			if _, err := strconv.ParseFloat(fields[0], 64); err != nil {
				continue
			}
			if _, err := strconv.ParseFloat(fields[1], 64); err != nil {
				continue
			}

			started = true
			columns = len(fields)
			table.Columns = make([][]float64, columns-1)
		}

		if len(fields) != columns {
			return nil, fmt.Errorf("%w: line %d has %d fields, want %d", ErrRaggedRow, lineNo, len(fields), columns)
		}

		values := make([]float64, columns)
		for i, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("dataset: line %d: parsing %q: %w", lineNo, field, err)
			}
			values[i] = v
		}

		if values[0] <= 0 {
			return nil, fmt.Errorf("%w: %v at line %d", ErrBadWavelength, values[0], lineNo)
		}

		table.Wavelengths = append(table.Wavelengths, values[0])
		table.Energies = append(table.Energies, EnergyFromWavelength(values[0]))
		for i := 1; i < columns; i++ {
			table.Columns[i-1] = append(table.Columns[i-1], values[i])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}

	if !started {
		return nil, ErrNoData
	}

	if columns < 2 {
		return nil, ErrColumnCount
	}

	return &table, nil
}

func splitFields(line string, comma bool) []string {
	if !comma {
		return strings.Fields(line)
	}

	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	return parts
}

// SelectionMasks holds the two boolean masks over a dataset's samples:
// the points used to estimate the background and the points used to
// evaluate the fit objective. Both are aligned with the energy axis.
type SelectionMasks struct {
	Baseline []bool
	Fit      []bool
}

// RangeMask marks every sample whose energy lies in [lo, hi]. The
// endpoints may be given in either order.
func RangeMask(energies []float64, lo, hi float64) []bool {
	if lo > hi {
		lo, hi = hi, lo
	}

	mask := make([]bool, len(energies))
	for i, e := range energies {
		mask[i] = e >= lo && e <= hi
	}

	return mask
}

// MasksFromPoints converts selection coordinates (in eV) into masks,
// mirroring the interactive click capture: without a baseline two
// points bound the fit range; with one, the first two points bound the
// baseline region and points one and three bound the fit range.
func MasksFromPoints(energies []float64, points []float64, mode baseline.Mode) (SelectionMasks, error) {
	if len(energies) == 0 {
		return SelectionMasks{}, ErrMaskAxisMissing
	}

	if mode == baseline.ModeNone {
		if len(points) != 2 {
			return SelectionMasks{}, fmt.Errorf("%w: got %d points, want 2", ErrPointCount, len(points))
		}

		return SelectionMasks{Fit: RangeMask(energies, points[0], points[1])}, nil
	}

	if len(points) != 3 {
		return SelectionMasks{}, fmt.Errorf("%w: got %d points, want 3", ErrPointCount, len(points))
	}

	return SelectionMasks{
		Baseline: RangeMask(energies, points[0], points[1]),
		Fit:      RangeMask(energies, points[0], points[2]),
	}, nil
}

// CountTrue returns the number of set entries in a mask.
func CountTrue(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}

	return n
}
