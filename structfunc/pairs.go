package structfunc

import (
	"math"
	"runtime"
	"sync"
)

// pixel is one valid sample with its grid position.
type pixel struct {
	y, x int
	v    float64
}

// accum holds the running sums for one exact-separation group. Groups are
// keyed by the integer squared separation dy*dy + dx*dx, so pairs land in the
// same group exactly when their Euclidean distances are equal; the lag itself
// is recovered as sqrt(key).
type accum struct {
	n     int
	sum   float64
	sumSq float64
}

func (a *accum) add(v float64) {
	a.n++
	a.sum += v
	a.sumSq += v * v
}

func (a *accum) merge(b *accum) {
	a.n += b.n
	a.sum += b.sum
	a.sumSq += b.sumSq
}

// validPixels compacts the field into a slice of valid samples. The pairwise
// loops run over this slice, so NaN pixels never enter any pair.
func (f *ScalarField) validPixels() []pixel {
	out := make([]pixel, 0, len(f.values))
	for y := 0; y < f.height; y++ {
		row := f.values[y*f.width : (y+1)*f.width]
		for x, v := range row {
			if !math.IsNaN(v) {
				out = append(out, pixel{y: y, x: x, v: v})
			}
		}
	}
	return out
}

// pairAccumulate visits every unordered pair of valid pixels once and folds
// |v_i - v_j|^order into the accumulator of the pair's separation group.
// Self-pairs never occur, so no zero-separation group is ever created.
//
// The outer loop is split across workers; each worker owns a private group
// map and the maps are merged in worker order afterwards, so the aggregate
// sums do not depend on scheduling.
func pairAccumulate(px []pixel, order float64, workers int) map[int]*accum {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(px) {
		workers = len(px)
	}
	if workers <= 1 {
		groups := make(map[int]*accum)
		pairRange(px, order, 0, 1, groups)
		return groups
	}

	locals := make([]map[int]*accum, workers)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		locals[w] = make(map[int]*accum)
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			pairRange(px, order, w, workers, locals[w])
		}(w)
	}
	wg.Wait()

	groups := locals[0]
	for _, local := range locals[1:] {
		for key, a := range local {
			if g, ok := groups[key]; ok {
				g.merge(a)
			} else {
				groups[key] = a
			}
		}
	}
	return groups
}

// pairRange accumulates pairs whose first index i satisfies i % stride ==
// offset. The inner loop only looks forward (j > i), so across all offsets
// every unordered pair is visited exactly once.
func pairRange(px []pixel, order float64, offset, stride int, groups map[int]*accum) {
	for i := offset; i < len(px); i += stride {
		pi := px[i]
		for j := i + 1; j < len(px); j++ {
			pj := px[j]
			dy := pj.y - pi.y
			dx := pj.x - pi.x
			key := dy*dy + dx*dx
			d := math.Abs(pj.v - pi.v)
			if order != 1 {
				d = math.Pow(d, order)
			}
			g, ok := groups[key]
			if !ok {
				g = &accum{}
				groups[key] = g
			}
			g.add(d)
		}
	}
}
