// Package splitnormal implements the two-piece (split) normal distribution
// used as the per-point noise model when propagating asymmetric uncertainties.
// Two half-normal curves with different scales are joined at a shared mode, so
// the distribution stays continuous and unimodal while spreading differently
// to each side.
package splitnormal

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrInvalidScale reports a negative scale passed to New.
var ErrInvalidScale = errors.New("splitnormal: negative scale")

// SplitNormal is an asymmetric normal distribution with mode Loc and separate
// standard deviations on each side. The zero value is a point mass at 0.
// Immutable after construction.
type SplitNormal struct {
	loc        float64
	scaleLeft  float64
	scaleRight float64
}

// New returns a SplitNormal with the given mode and side scales. A zero scale
// degenerates that side to a point mass at loc.
func New(loc, scaleLeft, scaleRight float64) (SplitNormal, error) {
	if scaleLeft < 0 {
		return SplitNormal{}, fmt.Errorf("%w: scaleLeft = %v", ErrInvalidScale, scaleLeft)
	}
	if scaleRight < 0 {
		return SplitNormal{}, fmt.Errorf("%w: scaleRight = %v", ErrInvalidScale, scaleRight)
	}
	return SplitNormal{loc: loc, scaleLeft: scaleLeft, scaleRight: scaleRight}, nil
}

// Loc returns the mode of the distribution.
func (s SplitNormal) Loc() float64 { return s.loc }

// ScaleLeft returns the standard deviation of the left half.
func (s SplitNormal) ScaleLeft() float64 { return s.scaleLeft }

// ScaleRight returns the standard deviation of the right half.
func (s SplitNormal) ScaleRight() float64 { return s.scaleRight }

// Rand draws a single value from the distribution using src. Each draw flips
// a fair coin to choose a side, then folds a standard normal draw onto that
// side: loc - |Z|*scaleLeft or loc + |Z|*scaleRight.
func (s SplitNormal) Rand(src rand.Source) float64 {
	rng := rand.New(src)
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	return s.rand(rng, norm)
}

// Sample draws n independent values from the distribution using src.
func (s SplitNormal) Sample(n int, src rand.Source) []float64 {
	rng := rand.New(src)
	norm := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	out := make([]float64, n)
	for i := range out {
		out[i] = s.rand(rng, norm)
	}
	return out
}

func (s SplitNormal) rand(rng *rand.Rand, norm distuv.Normal) float64 {
	z := math.Abs(norm.Rand())
	if rng.IntN(2) == 1 {
		return s.loc + z*s.scaleRight
	}
	return s.loc - z*s.scaleLeft
}
