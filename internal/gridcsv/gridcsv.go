// Package gridcsv reads scalar-field grids from CSV and writes lag-bin
// tables back out. It is the file boundary for the vsf command; the
// statistics packages themselves never touch files.
package gridcsv

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/loki-astro/vsf/structfunc"
)

// ReadGrid parses a rectangular CSV of float values into a ScalarField.
// Empty cells and the tokens "nan" / "NaN" mark invalid pixels. Rows of
// unequal length surface as structfunc.ErrShapeMismatch.
func ReadGrid(r io.Reader) (*structfunc.ScalarField, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // ragged input is reported as a shape error, not a parse error
	cr.TrimLeadingSpace = true

	var rows [][]float64
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read grid row %d: %w", len(rows)+1, err)
		}
		row := make([]float64, len(record))
		for i, cell := range record {
			cell = strings.TrimSpace(cell)
			if cell == "" || strings.EqualFold(cell, "nan") {
				row[i] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("grid row %d column %d: invalid value %q: %w", len(rows)+1, i+1, cell, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}
	return structfunc.FieldFromRows(rows)
}

// WriteBins writes bins as a CSV table with a header row of
// lag,value,err_low,err_high,count.
func WriteBins(w io.Writer, bins []structfunc.LagBin) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"lag", "value", "err_low", "err_high", "count"}); err != nil {
		return fmt.Errorf("write bins header: %w", err)
	}
	for _, b := range bins {
		record := []string{
			strconv.FormatFloat(b.Lag, 'g', -1, 64),
			strconv.FormatFloat(b.Value, 'g', -1, 64),
			strconv.FormatFloat(b.ErrLow, 'g', -1, 64),
			strconv.FormatFloat(b.ErrHigh, 'g', -1, 64),
			strconv.Itoa(b.Count),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write bin at lag %v: %w", b.Lag, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
