// Package main provides the vsf analysis tool. It loads a 2D scalar field
// (typically a velocity map) from CSV, computes its order-p structure
// function, and optionally fits a trend inside a lag window with Monte-Carlo
// uncertainty propagation, writing the lag bins as CSV and the fit result as
// JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/loki-astro/vsf/internal/gridcsv"
	"github.com/loki-astro/vsf/structfunc"
)

// fitOutput is the JSON shape written for a completed fit.
type fitOutput struct {
	Model           string     `json:"model"`
	Bounds          [2]float64 `json:"bounds"`
	Points          int        `json:"points"`
	Iterations      int        `json:"iterations"`
	Slope           float64    `json:"slope"`
	SlopeStdDev     float64    `json:"slope_stddev"`
	Intercept       float64    `json:"intercept"`
	InterceptStdDev float64    `json:"intercept_stddev"`
}

func main() {
	var (
		inPath     = flag.String("in", "", "input CSV grid (required); empty or 'nan' cells are invalid pixels")
		outPath    = flag.String("out", "", "output CSV for lag bins (default stdout)")
		order      = flag.Float64("order", 1, "structure function order (exponent on pair differences)")
		scale      = flag.Float64("scale", 1, "lag unit conversion factor, e.g. pixels to parsecs")
		fitLo      = flag.Float64("fit-lo", 0, "lower fit bound (exclusive), in scaled lag units")
		fitHi      = flag.Float64("fit-hi", 0, "upper fit bound (exclusive); fitting runs only when fit-hi > fit-lo")
		iterations = flag.Int("iterations", structfunc.DefaultIterations, "Monte-Carlo iterations for the fit")
		seed       = flag.Uint64("seed", 0, "random seed for the Monte-Carlo fit")
		model      = flag.String("model", "loglog", "fit model: loglog (linear in log-log space) or powerlaw")
		fitOutPath = flag.String("fit-out", "", "output JSON for the fit result (default stdout)")
		workers    = flag.Int("workers", 0, "worker goroutines (0 = all CPUs)")
	)
	flag.Parse()

	if *inPath == "" {
		flag.Usage()
		log.Fatal("missing required -in flag")
	}

	in, err := os.Open(*inPath)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	field, err := gridcsv.ReadGrid(in)
	in.Close()
	if err != nil {
		log.Fatalf("load grid: %v", err)
	}
	log.Printf("loaded %dx%d grid with %d valid pixels", field.Height(), field.Width(), field.ValidCount())

	bins, err := structfunc.StructureFunction(field, structfunc.Params{
		Order:   *order,
		Workers: *workers,
	})
	if err != nil {
		log.Fatalf("structure function: %v", err)
	}
	if len(bins) == 0 {
		log.Fatal("structure function produced no lag bins: every separation group held a single pair")
	}
	if *scale != 1 {
		bins, err = structfunc.ScaleLags(bins, *scale)
		if err != nil {
			log.Fatalf("scale lags: %v", err)
		}
	}
	log.Printf("computed %d lag bins (lags %.3g to %.3g)", len(bins), bins[0].Lag, bins[len(bins)-1].Lag)

	if err := writeBins(*outPath, bins); err != nil {
		log.Fatalf("write bins: %v", err)
	}

	if *fitHi > *fitLo && *fitHi > 0 {
		fitModel, err := parseModel(*model)
		if err != nil {
			log.Fatalf("parse model: %v", err)
		}
		result, err := structfunc.Fit(bins, structfunc.FitConfig{
			Bounds:     [2]float64{*fitLo, *fitHi},
			Iterations: *iterations,
			Model:      fitModel,
			Seed:       *seed,
			Workers:    *workers,
		})
		if err != nil {
			log.Fatalf("fit: %v", err)
		}
		log.Printf("fit over %d bins: slope %.4f ± %.4f", result.Points, result.Slope, result.SlopeStdDev)
		if err := writeFit(*fitOutPath, *model, *iterations, result); err != nil {
			log.Fatalf("write fit: %v", err)
		}
	}
}

func parseModel(name string) (structfunc.Model, error) {
	switch name {
	case "loglog":
		return structfunc.ModelLogLogLinear, nil
	case "powerlaw":
		return structfunc.ModelPowerLaw, nil
	default:
		return 0, fmt.Errorf("unknown model %q (want loglog or powerlaw)", name)
	}
}

func writeBins(path string, bins []structfunc.LagBin) error {
	if path == "" {
		return gridcsv.WriteBins(os.Stdout, bins)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gridcsv.WriteBins(f, bins); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeFit(path, model string, iterations int, result *structfunc.FitResult) error {
	out := fitOutput{
		Model:           model,
		Bounds:          result.Bounds,
		Points:          result.Points,
		Iterations:      iterations,
		Slope:           result.Slope,
		SlopeStdDev:     result.SlopeStdDev,
		Intercept:       result.Intercept,
		InterceptStdDev: result.InterceptStdDev,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
