package formulas

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// Variance calculates the sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the sample covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Skew calculates the sample skewness of a slice of float64 values
func Skew(data []float64) float64 {
	if len(data) < 3 {
		return 0
	}
	return stat.Skew(data, nil)
}

// ExKurtosis calculates the excess kurtosis of a slice of float64 values
func ExKurtosis(data []float64) float64 {
	if len(data) < 4 {
		return 0
	}
	return stat.ExKurtosis(data, nil)
}

// Quantile computes the q-quantile of values using linear interpolation of
// order statistics (numpy's default convention). Returns 0 for empty input;
// callers validate sample size and the range of q.
func Quantile(values []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return values[0]
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	frac := h - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// WeightedQuantile computes the q-quantile of a weighted sample: the smallest
// sorted value whose cumulative normalized weight reaches q (lower inverse
// CDF). Negative weights are clamped to zero. Falls back to the unweighted
// quantile when weights are nil, misshapen, or sum to <= 0.
func WeightedQuantile(values, weights []float64, q float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if weights == nil || len(weights) != n {
		return Quantile(values, q)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return values[idx[a]] < values[idx[b]] })

	total := 0.0
	for _, w := range weights {
		total += math.Max(w, 0)
	}
	if total <= 0 {
		return Quantile(values, q)
	}

	cum := 0.0
	for _, i := range idx {
		cum += math.Max(weights[i], 0) / total
		if cum >= q {
			return values[i]
		}
	}
	return values[idx[n-1]]
}
