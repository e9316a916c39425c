package gridcsv

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/loki-astro/vsf/structfunc"
)

func TestReadGrid(t *testing.T) {
	in := strings.Join([]string{
		"1.5,2,nan",
		"-3,,4.25",
	}, "\n")
	f, err := ReadGrid(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadGrid: %v", err)
	}
	if f.Height() != 2 || f.Width() != 3 {
		t.Fatalf("shape = %dx%d, want 2x3", f.Height(), f.Width())
	}
	if f.At(0, 0) != 1.5 || f.At(1, 0) != -3 || f.At(1, 2) != 4.25 {
		t.Fatalf("values misread: %v %v %v", f.At(0, 0), f.At(1, 0), f.At(1, 2))
	}
	if !math.IsNaN(f.At(0, 2)) {
		t.Fatalf("'nan' cell = %v, want NaN", f.At(0, 2))
	}
	if !math.IsNaN(f.At(1, 1)) {
		t.Fatalf("empty cell = %v, want NaN", f.At(1, 1))
	}
	if f.ValidCount() != 4 {
		t.Fatalf("ValidCount = %d, want 4", f.ValidCount())
	}
}

func TestReadGridRagged(t *testing.T) {
	_, err := ReadGrid(strings.NewReader("1,2,3\n4,5\n"))
	if !errors.Is(err, structfunc.ErrShapeMismatch) {
		t.Fatalf("ragged grid: got %v, want ErrShapeMismatch", err)
	}
}

func TestReadGridBadToken(t *testing.T) {
	_, err := ReadGrid(strings.NewReader("1,2\n3,velocity\n"))
	if err == nil || !strings.Contains(err.Error(), "velocity") {
		t.Fatalf("bad token: got %v, want parse error naming the token", err)
	}
}

func TestWriteBins(t *testing.T) {
	bins := []structfunc.LagBin{
		{Lag: 1, Value: 0.5, ErrLow: 0.01, ErrHigh: 0.01, Count: 12},
		{Lag: math.Sqrt2, Value: 0.75, ErrLow: 0.02, ErrHigh: 0.03, Count: 8},
	}
	var sb strings.Builder
	if err := WriteBins(&sb, bins); err != nil {
		t.Fatalf("WriteBins: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header plus 2 bins:\n%s", len(lines), sb.String())
	}
	if lines[0] != "lag,value,err_low,err_high,count" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "1,0.5,0.01,0.01,12" {
		t.Fatalf("first bin = %q", lines[1])
	}
	if !strings.HasSuffix(lines[2], ",8") {
		t.Fatalf("second bin = %q, want count suffix 8", lines[2])
	}
}
