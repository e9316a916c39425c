package structfunc

import "errors"

// ErrInsufficientData reports a field with fewer than two valid (non-NaN)
// pixels, for which no pairwise statistic exists.
var ErrInsufficientData = errors.New("structfunc: fewer than two valid samples")

// ErrShapeMismatch reports a companion array or flat buffer whose shape does
// not match the field. Raised at the construction boundary, before any
// computation starts.
var ErrShapeMismatch = errors.New("structfunc: shape mismatch")

// ErrInvalidParameter reports an out-of-range configuration value, such as a
// non-positive iteration count or an inverted fit window.
var ErrInvalidParameter = errors.New("structfunc: invalid parameter")

// ErrNoConvergence reports a Monte-Carlo fit that could not produce stable
// parameters: fewer than two lag bins inside the fit window, or a solver
// failure on any individual draw. Degenerate draws are never folded into the
// aggregate.
var ErrNoConvergence = errors.New("structfunc: fit did not converge")
