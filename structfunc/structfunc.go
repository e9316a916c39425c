package structfunc

import (
	"fmt"
	"math"
	"sort"
)

// LagBin is one row of structure-function output: the statistic and its
// uncertainty for all pixel pairs separated by exactly Lag.
type LagBin struct {
	// Lag is the Euclidean pair separation in pixels (or in physical units
	// after ScaleLags).
	Lag float64
	// Value is the variance-normalized mean pairwise increment at this lag.
	Value float64
	// ErrLow and ErrHigh bound Value from below and above. The structure
	// function itself reports the symmetric sample standard error in both;
	// asymmetry only enters once the fit stage moves to log space.
	ErrLow  float64
	ErrHigh float64
	// Count is the number of pair increments aggregated in this bin.
	Count int
}

// Params configures StructureFunction.
type Params struct {
	// Order is the exponent applied to each absolute pairwise difference.
	// Zero means the default order of 1 (mean absolute difference).
	Order float64
	// Workers bounds the number of goroutines used for the pairwise pass.
	// Zero means GOMAXPROCS.
	Workers int
}

// StructureFunction computes the order-p structure function of the field:
// for every unordered pair of valid pixels, |a-b|^p is accumulated under the
// pair's exact Euclidean separation, and each group's mean is normalized by
// the population variance of the whole field. Each bin carries the sample
// standard error of its mean increment. Groups holding a single pair are
// dropped, as no dispersion estimate exists for them.
//
// The result is sorted ascending by lag and never contains a zero-lag bin.
//
// Returns ErrInsufficientData if fewer than two valid pixels exist (or the
// valid pixels have zero variance, leaving nothing to normalize by), and
// ErrInvalidParameter for a negative order.
func StructureFunction(f *ScalarField, p Params) ([]LagBin, error) {
	order := p.Order
	if order == 0 {
		order = 1
	}
	if order < 0 || math.IsNaN(order) {
		return nil, fmt.Errorf("%w: order = %v", ErrInvalidParameter, p.Order)
	}

	px := f.validPixels()
	if len(px) < 2 {
		return nil, fmt.Errorf("%w: %d valid pixels", ErrInsufficientData, len(px))
	}
	variance := f.Variance()
	if variance == 0 {
		return nil, fmt.Errorf("%w: field has zero variance", ErrInsufficientData)
	}

	groups := pairAccumulate(px, order, p.Workers)

	bins := make([]LagBin, 0, len(groups))
	for key, g := range groups {
		if g.n < 2 {
			continue
		}
		n := float64(g.n)
		mean := g.sum / n
		// Population variance of the increments via the accumulated sums;
		// clamp tiny negative round-off.
		popVar := g.sumSq/n - mean*mean
		if popVar < 0 {
			popVar = 0
		}
		// Sample standard error of the mean increment, then the same
		// variance normalization as the statistic itself.
		sem := math.Sqrt(popVar) / (variance * math.Sqrt(n-1))
		bins = append(bins, LagBin{
			Lag:     math.Sqrt(float64(key)),
			Value:   mean / variance,
			ErrLow:  sem,
			ErrHigh: sem,
			Count:   g.n,
		})
	}

	sort.Slice(bins, func(i, j int) bool { return bins[i].Lag < bins[j].Lag })
	return bins, nil
}

// ScaleLags returns a copy of bins with every lag multiplied by factor,
// e.g. a pixel-to-parsec conversion before fitting in physical units.
// Returns ErrInvalidParameter for a non-positive or non-finite factor.
func ScaleLags(bins []LagBin, factor float64) ([]LagBin, error) {
	if factor <= 0 || math.IsInf(factor, 0) || math.IsNaN(factor) {
		return nil, fmt.Errorf("%w: lag scale factor = %v", ErrInvalidParameter, factor)
	}
	out := make([]LagBin, len(bins))
	copy(out, bins)
	for i := range out {
		out[i].Lag *= factor
	}
	return out, nil
}
