package varcalc

import (
	"fmt"
	"math"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

// EWMAWeights returns normalized exponential-decay weights for a sample of
// size n in chronological order: the i-th most recent observation gets
// (1-lambda) * lambda^i before normalization.
func EWMAWeights(n int, lambda float64) []float64 {
	weights := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		// Chronological index i holds the (n-1-i)-th most recent value.
		w := (1 - lambda) * math.Pow(lambda, float64(n-1-i))
		weights[i] = w
		sum += w
	}
	if sum > 0 {
		for i := range weights {
			weights[i] /= sum
		}
	}
	return weights
}

// HistoricalVaRCVaR estimates VaR and CVaR from the empirical return
// distribution, optionally EWMA-weighted. VaR is the negative alpha-quantile
// (alpha = 1 - confidence); CVaR is the negative (weighted) mean of all
// observations at or below that quantile, falling back to VaR when the tail
// is empty.
func HistoricalVaRCVaR(values []float64, confidence float64, weighting string, lambda float64) (float64, float64, error) {
	if len(values) == 0 {
		return 0, 0, fmt.Errorf("%w: empty return sample", domain.ErrInsufficientData)
	}

	var weights []float64
	switch weighting {
	case WeightingNone, "":
	case WeightingEWMA:
		if lambda <= 0 || lambda >= 1 {
			return 0, 0, fmt.Errorf("%w: ewma lambda must be in (0,1), got %v", domain.ErrInvalidParameter, lambda)
		}
		weights = EWMAWeights(len(values), lambda)
	default:
		return 0, 0, fmt.Errorf("%w: unknown weighting %q", domain.ErrInvalidParameter, weighting)
	}

	alpha := 1 - confidence
	quantile := formulas.WeightedQuantile(values, weights, alpha)
	varLoss := -quantile
	cvar := tailMean(values, weights, quantile)
	return varLoss, cvar, nil
}

// tailMean computes the (weighted) mean loss of the tail at or below the
// quantile; degenerate tails fall back to the quantile itself.
func tailMean(values, weights []float64, quantile float64) float64 {
	sum := 0.0
	wsum := 0.0
	count := 0
	for i, v := range values {
		if v > quantile {
			continue
		}
		w := 1.0
		if weights != nil {
			w = math.Max(weights[i], 0)
		}
		sum += v * w
		wsum += w
		count++
	}
	if count == 0 || wsum <= 0 {
		return -quantile
	}
	return -(sum / wsum)
}
