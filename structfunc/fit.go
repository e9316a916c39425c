package structfunc

import (
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"

	"github.com/maorshutman/lm"
	"gonum.org/v1/gonum/stat"

	"github.com/loki-astro/vsf/splitnormal"
)

// Model selects the functional form fitted to the structure function.
type Model int

const (
	// ModelLogLogLinear fits log10(S) = m*log10(r) + b. Per-point noise is a
	// split normal built from the asymmetric log-space error widths.
	ModelLogLogLinear Model = iota
	// ModelPowerLaw fits S = b*r^m in linear space, the equivalent
	// reparametrization, with symmetric normal per-point noise.
	ModelPowerLaw
)

// DefaultIterations is the Monte-Carlo draw count used when FitConfig leaves
// Iterations at zero.
const DefaultIterations = 10000

// Solver settings shared by every draw. The cap is far beyond what a
// two-parameter fit needs; it exists so a pathological draw fails loudly
// instead of spinning.
const (
	solverMaxIterations = 10000
	solverObjectiveTol  = 1e-16
)

// defaultInitialGuess seeds the solver identically on every draw, keeping
// convergence behavior reproducible for a fixed random seed.
var defaultInitialGuess = [2]float64{0.1, 0.1}

// FitConfig configures Fit.
type FitConfig struct {
	// Bounds is the lag window (in the same units as LagBin.Lag) inside
	// which bins are fitted. The window is open on both ends: a bin is kept
	// when Bounds[0] < lag < Bounds[1].
	Bounds [2]float64
	// Iterations is the number of Monte-Carlo draws. Zero means
	// DefaultIterations; negative values are rejected.
	Iterations int
	// Model selects the fitted form. The zero value is ModelLogLogLinear.
	Model Model
	// Seed feeds the per-draw random streams. A given (Seed, Iterations,
	// Model) triple always produces the same result, regardless of Workers.
	Seed uint64
	// InitialGuess seeds the solver on every draw. The zero value means
	// {0.1, 0.1}.
	InitialGuess [2]float64
	// Workers bounds the number of goroutines running draws. Zero means
	// GOMAXPROCS.
	Workers int
}

// FitResult holds the aggregated fit parameters. For ModelLogLogLinear the
// intercept is b in log10(S) = m*log10(r) + b; for ModelPowerLaw it is the
// scale b in S = b*r^m. Uncertainties are the spread of the parameter over
// the Monte-Carlo draws.
type FitResult struct {
	Slope           float64
	SlopeStdDev     float64
	Intercept       float64
	InterceptStdDev float64
	Model           Model
	Bounds          [2]float64
	// Points is the number of lag bins inside the fit window.
	Points int
}

// Eval returns the fitted statistic at the given lag, in linear S units for
// both models.
func (r *FitResult) Eval(lag float64) float64 {
	switch r.Model {
	case ModelPowerLaw:
		return r.Intercept * math.Pow(lag, r.Slope)
	default:
		return math.Pow(10, r.Slope*math.Log10(lag)+r.Intercept)
	}
}

// Margin returns the half-width of the uncertainty band at the given lag.
// For ModelLogLogLinear the width is in log10(S) units (the space the fit ran
// in): db + |log10(lag)|*dm. For ModelPowerLaw it is in linear S units, by
// first-order propagation of db and dm through b*r^m.
func (r *FitResult) Margin(lag float64) float64 {
	switch r.Model {
	case ModelPowerLaw:
		rm := math.Pow(lag, r.Slope)
		return rm*r.InterceptStdDev + math.Abs(r.Intercept*rm*math.Log(lag))*r.SlopeStdDev
	default:
		return r.InterceptStdDev + math.Abs(math.Log10(lag))*r.SlopeStdDev
	}
}

// fitPoint is one bin prepared for resampling: an abscissa in fit space and
// a noise model around the observed ordinate.
type fitPoint struct {
	x    float64
	dist splitnormal.SplitNormal
}

// Fit estimates the trend of the structure function inside cfg.Bounds by
// Monte-Carlo uncertainty propagation: each draw perturbs every in-window bin
// through its noise model and runs a Levenberg-Marquardt least-squares fit of
// the selected model, and the draws' parameters are aggregated as mean and
// population standard deviation.
//
// bins must be sorted ascending by lag, as returned by StructureFunction.
// Returns ErrNoConvergence if fewer than two bins fall inside the window or
// any draw fails to converge, and ErrInvalidParameter for a negative
// iteration count, an empty or inverted window, an unknown model, or bins
// whose values cannot be log-transformed under ModelLogLogLinear.
func Fit(bins []LagBin, cfg FitConfig) (*FitResult, error) {
	iterations := cfg.Iterations
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations < 0 {
		return nil, fmt.Errorf("%w: iterations = %d", ErrInvalidParameter, cfg.Iterations)
	}
	lo, hi := cfg.Bounds[0], cfg.Bounds[1]
	if !(lo < hi) {
		return nil, fmt.Errorf("%w: fit bounds (%v, %v)", ErrInvalidParameter, lo, hi)
	}
	if cfg.Model != ModelLogLogLinear && cfg.Model != ModelPowerLaw {
		return nil, fmt.Errorf("%w: unknown model %d", ErrInvalidParameter, cfg.Model)
	}
	guess := cfg.InitialGuess
	if guess == [2]float64{} {
		guess = defaultInitialGuess
	}

	var window []LagBin
	for _, b := range bins {
		if b.Lag > lo && b.Lag < hi {
			window = append(window, b)
		}
	}
	if len(window) < 2 {
		return nil, fmt.Errorf("%w: %d bins inside fit bounds (%v, %v)", ErrNoConvergence, len(window), lo, hi)
	}

	points, err := preparePoints(window, cfg.Model)
	if err != nil {
		return nil, err
	}

	slopes := make([]float64, iterations)
	intercepts := make([]float64, iterations)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > iterations {
		workers = iterations
	}

	errs := make([]error, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for it := w; it < iterations; it += workers {
				m, b, err := fitDraw(points, cfg.Model, cfg.Seed, uint64(it), guess)
				if err != nil {
					if errs[w] == nil {
						errs[w] = err
					}
					return
				}
				slopes[it], intercepts[it] = m, b
			}
		}(w)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return &FitResult{
		Slope:           stat.Mean(slopes, nil),
		SlopeStdDev:     stat.PopStdDev(slopes, nil),
		Intercept:       stat.Mean(intercepts, nil),
		InterceptStdDev: stat.PopStdDev(intercepts, nil),
		Model:           cfg.Model,
		Bounds:          cfg.Bounds,
		Points:          len(window),
	}, nil
}

// preparePoints converts the windowed bins into fit-space points with their
// noise models. In log space the error bar becomes asymmetric, so the left
// and right widths feed a split normal; when the lower bound would cross
// zero (value <= ErrLow) the left width falls back to the right one to keep
// the model finite.
func preparePoints(window []LagBin, model Model) ([]fitPoint, error) {
	points := make([]fitPoint, len(window))
	for i, b := range window {
		switch model {
		case ModelPowerLaw:
			sigma := (b.ErrLow + b.ErrHigh) / 2
			dist, err := splitnormal.New(b.Value, sigma, sigma)
			if err != nil {
				return nil, fmt.Errorf("%w: bin at lag %v: %v", ErrInvalidParameter, b.Lag, err)
			}
			points[i] = fitPoint{x: b.Lag, dist: dist}
		default:
			if b.Value <= 0 {
				return nil, fmt.Errorf("%w: non-positive statistic %v at lag %v cannot be log-transformed", ErrInvalidParameter, b.Value, b.Lag)
			}
			loc := math.Log10(b.Value)
			right := math.Log10(b.Value+b.ErrHigh) - loc
			left := right
			if b.Value > b.ErrLow {
				left = loc - math.Log10(b.Value-b.ErrLow)
			}
			dist, err := splitnormal.New(loc, left, right)
			if err != nil {
				return nil, fmt.Errorf("%w: bin at lag %v: %v", ErrInvalidParameter, b.Lag, err)
			}
			points[i] = fitPoint{x: math.Log10(b.Lag), dist: dist}
		}
	}
	return points, nil
}

// fitDraw runs one Monte-Carlo draw: perturb every point through its noise
// model and solve the least-squares problem from the fixed initial guess.
// Each draw owns an independent PCG stream keyed by its index, so results do
// not depend on which worker runs it.
func fitDraw(points []fitPoint, model Model, seed, draw uint64, guess [2]float64) (float64, float64, error) {
	src := rand.NewPCG(seed, draw+1)
	ys := make([]float64, len(points))
	for i, p := range points {
		ys[i] = p.dist.Rand(src)
	}

	residuals := func(dst, params []float64) {
		for i, p := range points {
			switch model {
			case ModelPowerLaw:
				dst[i] = params[1]*math.Pow(p.x, params[0]) - ys[i]
			default:
				dst[i] = params[0]*p.x + params[1] - ys[i]
			}
		}
	}

	jac := lm.NumJac{Func: residuals}
	prob := lm.LMProblem{
		Dim:        2,
		Size:       len(points),
		Func:       residuals,
		Jac:        jac.Jac,
		InitParams: []float64{guess[0], guess[1]},
		Tau:        1e-6,
		Eps1:       1e-8,
		Eps2:       1e-8,
	}
	res, err := lm.LM(prob, &lm.Settings{Iterations: solverMaxIterations, ObjectiveTol: solverObjectiveTol})
	if err != nil {
		return 0, 0, fmt.Errorf("%w: draw %d: %v", ErrNoConvergence, draw, err)
	}
	m, b := res.X[0], res.X[1]
	if math.IsNaN(m) || math.IsNaN(b) || math.IsInf(m, 0) || math.IsInf(b, 0) {
		return 0, 0, fmt.Errorf("%w: draw %d produced non-finite parameters", ErrNoConvergence, draw)
	}
	return m, b, nil
}
