// Command elliottfit extracts exciton parameters from optical
// absorption spectra by fitting the Elliott line-shape model.
//
// Usage:
//
//	elliottfit [flags] file [file ...]
//	elliottfit -serve [-port 8080]
//
// Each input file is a whitespace or comma separated table with a
// wavelength column (nm) followed by one or more absorption columns.
// Selection points are energies in eV: two points select the fitting
// range directly (baseline mode none), three points select the
// baseline range (first two) and the fitting range (first and third).
//
// Examples:
//
//	elliottfit -points 2.0,2.3,3.3 sample.csv
//	elliottfit -mode rayleigh -points 1.8,2.2,3.4 -datasets 1,3 sample.dat
//	elliottfit -points 2.2,3.3 -mode none -out fitted.csv sample.csv
//	elliottfit -config overrides.yaml -no-refine sample.csv
//	elliottfit -serve -port 8080
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/cwbudde/algo-elliott/api"
	"github.com/cwbudde/algo-elliott/baseline"
	"github.com/cwbudde/algo-elliott/dataset"
	"github.com/cwbudde/algo-elliott/elliott"
	"github.com/cwbudde/algo-elliott/export"
	"github.com/cwbudde/algo-elliott/fit"
)

type paramsYAML struct {
	Eg    *float64 `yaml:"eg"`
	Eb    *float64 `yaml:"eb"`
	Gamma *float64 `yaml:"gamma"`
	Ucvsq *float64 `yaml:"ucvsq"`
	Mhcnp *float64 `yaml:"mhcnp"`
	Q     *float64 `yaml:"q"`
}

type boundsYAML struct {
	Lower *paramsYAML `yaml:"lower"`
	Upper *paramsYAML `yaml:"upper"`
}

// configYAML carries optional overrides for the starting point and the
// global bounds. All energies are in eV.
type configYAML struct {
	Start  *paramsYAML `yaml:"start"`
	Bounds *boundsYAML `yaml:"bounds"`
}

func main() {
	mode := flag.String("mode", "rayleigh", "baseline mode: none, linear or rayleigh")
	points := flag.String("points", "", "selection energies in eV, comma separated (2 or 3 values)")
	datasets := flag.String("datasets", "", "1-indexed absorption columns to fit, comma separated (default all)")
	minEnergy := flag.Float64("min", 0, "lower edge of the fitting window in eV (0 = unbounded)")
	maxEnergy := flag.Float64("max", 0, "upper edge of the fitting window in eV (0 = unbounded)")
	noRefine := flag.Bool("no-refine", false, "skip the bandgap-focused refinement stage")
	configPath := flag.String("config", "", "YAML file with start-point and bounds overrides")
	outPath := flag.String("out", "", "CSV output path (default 0_<input>_Results.csv next to the input)")
	serve := flag.Bool("serve", false, "run the HTTP analysis API instead of fitting files")
	port := flag.Int("port", 8080, "HTTP port for -serve")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: elliottfit [flags] file [file ...]\n\n")
		fmt.Fprintf(os.Stderr, "Fits the Elliott line-shape model to absorption spectra and\n")
		fmt.Fprintf(os.Stderr, "reports band gap, exciton binding energy, linewidth and the\n")
		fmt.Fprintf(os.Stderr, "fractional dimension parameter.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  elliottfit -points 2.0,2.3,3.3 sample.csv\n")
		fmt.Fprintf(os.Stderr, "  elliottfit -mode none -points 2.2,3.3 sample.dat\n")
		fmt.Fprintf(os.Stderr, "  elliottfit -serve -port 8080\n")
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if *serve {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		srv := api.NewServer(api.Config{Port: *port, Logger: logger})
		if err := srv.ListenAndServe(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	files := flag.Args()
	if len(files) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	baselineMode, err := parseMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	selection, err := parseFloats(*points)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid -points: %v\n", err)
		os.Exit(2)
	}

	cfg := fit.Config{
		Mode:         baselineMode,
		MinEnergy:    *minEnergy,
		MaxEnergy:    *maxEnergy,
		NoRefinement: *noRefine,
	}

	if *configPath != "" {
		if err := applyConfigFile(*configPath, &cfg); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(2)
		}
	}

	indices, err := parseIndices(*datasets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: invalid -datasets: %v\n", err)
		os.Exit(2)
	}

	pipeline := fit.New(cfg)

	exitCode := 0
	for _, file := range files {
		if err := processFile(pipeline, logger, file, selection, baselineMode, indices, *outPath); err != nil {
			logger.Error("processing failed", "file", file, "error", err)
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}

func processFile(pipeline *fit.Pipeline, logger *slog.Logger, path string, points []float64, mode baseline.Mode, indices []int, outPath string) error {
	table, err := dataset.LoadFile(path)
	if err != nil {
		return err
	}

	logger.Debug("loaded table", "file", path, "samples", len(table.Energies), "columns", len(table.Columns))

	masks, err := dataset.MasksFromPoints(table.Energies, points, mode)
	if err != nil {
		return err
	}

	if indices != nil {
		for _, idx := range indices {
			if idx < 0 || idx >= len(table.Columns) {
				return fmt.Errorf("dataset %d out of range (1..%d)", idx+1, len(table.Columns))
			}
		}
	}

	results, err := pipeline.Run(table, indices, masks)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, path, results, indices, len(table.Columns))

	out := outPath
	if out == "" {
		out = defaultOutputPath(path)
	}

	if err := export.SaveCSV(out, table, results, indices); err != nil {
		return err
	}

	logger.Info("results written", "file", out, "datasets", len(results))

	return nil
}

func printSummary(w *os.File, path string, results []*fit.Result, indices []int, columns int) {
	if indices == nil {
		indices = make([]int, columns)
		for i := range indices {
			indices[i] = i
		}
	}

	fmt.Fprintf(w, "%s\n", path)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Dataset\tEg [eV]\tEb [meV]\tEb GS [meV]\tGamma [meV]\tq\tDeff\tR²\n")
	fmt.Fprintf(tw, "-------\t-------\t--------\t-----------\t-----------\t-\t----\t--\n")

	for i, res := range results {
		fmt.Fprintf(tw, "%d\t%.4f\t%.2f\t%.2f\t%.2f\t%.4f\t%.3f\t%.5f\n",
			indices[i]+1,
			res.Params.Eg,
			res.Params.Eb*1000,
			res.GroundStateEb*1000,
			res.Params.Gamma*1000,
			res.Params.Q,
			res.EffectiveDimension,
			res.RSquared,
		)
	}

	if err := tw.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to flush output: %v\n", err)
	}

	for i, res := range results {
		for _, warning := range res.Warnings {
			fmt.Fprintf(w, "warning: dataset %d: %s\n", indices[i]+1, warning)
		}
	}
}

func applyConfigFile(path string, cfg *fit.Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overrides configYAML
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	start := elliott.DefaultStart()
	applyParams(&start, overrides.Start)
	cfg.Start = start

	bounds := fit.DefaultBounds()
	if overrides.Bounds != nil {
		applyParams(&bounds.Lower, overrides.Bounds.Lower)
		applyParams(&bounds.Upper, overrides.Bounds.Upper)
	}
	cfg.Bounds = bounds

	return nil
}

func applyParams(p *elliott.Params, y *paramsYAML) {
	if y == nil {
		return
	}

	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}

	set(&p.Eg, y.Eg)
	set(&p.Eb, y.Eb)
	set(&p.Gamma, y.Gamma)
	set(&p.Ucvsq, y.Ucvsq)
	set(&p.Mhcnp, y.Mhcnp)
	set(&p.Q, y.Q)
}

func parseMode(s string) (baseline.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return baseline.ModeNone, nil
	case "linear":
		return baseline.ModeLinear, nil
	case "rayleigh":
		return baseline.ModeRayleigh, nil
	default:
		return 0, fmt.Errorf("unknown baseline mode %q", s)
	}
}

func parseFloats(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}

	return out, nil
}

// parseIndices converts the 1-indexed dataset list to column indices.
func parseIndices(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		if v < 1 {
			return nil, fmt.Errorf("dataset numbers start at 1, got %d", v)
		}
		out[i] = v - 1
	}

	sort.Ints(out)

	return out, nil
}

func defaultOutputPath(input string) string {
	dir := filepath.Dir(input)
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	return filepath.Join(dir, "0_"+name+"_Results.csv")
}
