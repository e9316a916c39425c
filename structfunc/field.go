// Package structfunc computes second-order statistics of 2D scalar fields:
// the order-p structure function over all pixel pairs, grouped by exact
// separation distance, and a Monte-Carlo linear fit that propagates the
// per-lag uncertainties through a resampled regression.
//
// The expected input is a velocity (or any scalar) map with invalid pixels
// marked NaN, as produced by an upstream loading and masking layer.
package structfunc

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ScalarField is a fixed-shape, row-major grid of float64 measurements.
// Invalid pixels are NaN. The shape is set at construction and the values are
// never mutated by any computation in this package.
type ScalarField struct {
	width  int
	height int
	values []float64
}

// NewScalarField wraps a flat row-major buffer of height*width values. The
// buffer is copied. Returns ErrShapeMismatch if the buffer length does not
// match the dimensions, or ErrInvalidParameter for non-positive dimensions.
func NewScalarField(height, width int, values []float64) (*ScalarField, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: field dimensions %dx%d", ErrInvalidParameter, height, width)
	}
	if len(values) != height*width {
		return nil, fmt.Errorf("%w: %d values for %dx%d field", ErrShapeMismatch, len(values), height, width)
	}
	buf := make([]float64, len(values))
	copy(buf, values)
	return &ScalarField{width: width, height: height, values: buf}, nil
}

// FieldFromRows builds a ScalarField from nested row slices. All rows must
// have the same length; ragged input returns ErrShapeMismatch.
func FieldFromRows(rows [][]float64) (*ScalarField, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty field", ErrInvalidParameter)
	}
	width := len(rows[0])
	buf := make([]float64, 0, len(rows)*width)
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrShapeMismatch, y, len(row), width)
		}
		buf = append(buf, row...)
	}
	return &ScalarField{width: width, height: len(rows), values: buf}, nil
}

// Height returns the number of rows.
func (f *ScalarField) Height() int { return f.height }

// Width returns the number of columns.
func (f *ScalarField) Width() int { return f.width }

// At returns the value at row y, column x.
func (f *ScalarField) At(y, x int) float64 {
	return f.values[y*f.width+x]
}

// Mask returns a copy of the field with every pixel whose companion entry is
// false replaced by NaN. valid is row-major and must have exactly one entry
// per pixel; a length mismatch returns ErrShapeMismatch.
func (f *ScalarField) Mask(valid []bool) (*ScalarField, error) {
	if len(valid) != len(f.values) {
		return nil, fmt.Errorf("%w: mask has %d entries for %dx%d field", ErrShapeMismatch, len(valid), f.height, f.width)
	}
	buf := make([]float64, len(f.values))
	for i, v := range f.values {
		if valid[i] {
			buf[i] = v
		} else {
			buf[i] = math.NaN()
		}
	}
	return &ScalarField{width: f.width, height: f.height, values: buf}, nil
}

// ValidCount returns the number of non-NaN pixels.
func (f *ScalarField) ValidCount() int {
	n := 0
	for _, v := range f.values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

// validValues returns the non-NaN pixel values, compacted.
func (f *ScalarField) validValues() []float64 {
	out := make([]float64, 0, len(f.values))
	for _, v := range f.values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the mean of the valid pixels, or NaN if none exist.
func (f *ScalarField) Mean() float64 {
	vals := f.validValues()
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// Variance returns the population variance of the valid pixels (denominator
// N, matching the normalization used by the structure function), or NaN if
// none exist.
func (f *ScalarField) Variance() float64 {
	vals := f.validValues()
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.PopVariance(vals, nil)
}
