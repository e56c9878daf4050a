package formulas

import (
	"gonum.org/v1/gonum/floats"
)

// Histogram bins values into equal-width buckets over [min, max] and returns
// the n+1 bin edges together with the per-bin counts. The last bin includes
// its upper edge. A constant sample is widened by +/-0.5 so the bins keep a
// non-zero width.
func Histogram(values []float64, bins int) ([]float64, []int) {
	if len(values) == 0 || bins <= 0 {
		return nil, nil
	}

	lo := floats.Min(values)
	hi := floats.Max(values)
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	edges := floats.Span(make([]float64, bins+1), lo, hi)
	counts := make([]int, bins)
	width := (hi - lo) / float64(bins)
	for _, v := range values {
		idx := int((v - lo) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return edges, counts
}
