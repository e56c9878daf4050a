package backtest

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

const kupiecEps = 1e-6

// KupiecPOF runs the Kupiec Proportion-of-Failures likelihood-ratio test:
// given n observations and x exceptions, it compares the observed exception
// rate against the model's expected rate p = 1 - confidence.
//
//	LR = -2 * [ x ln p + (n-x) ln(1-p) - x ln(x/n) - (n-x) ln(1-x/n) ]
//
// Both rates are clamped away from {0,1} by a small epsilon so the logs stay
// defined. The p-value comes from the chi-squared distribution with one
// degree of freedom. Returns (nil, nil) when n <= 0 or the statistic is not
// finite.
func KupiecPOF(n, exceptions int, confidence float64) (*float64, *float64) {
	if n <= 0 {
		return nil, nil
	}

	expected := clampRate(1 - confidence)
	observed := clampRate(float64(exceptions) / float64(n))

	x := float64(exceptions)
	rest := float64(n - exceptions)
	lr := -2 * (x*math.Log(expected) + rest*math.Log(1-expected) -
		x*math.Log(observed) - rest*math.Log(1-observed))
	if math.IsNaN(lr) || math.IsInf(lr, 0) {
		return nil, nil
	}
	// Cancellation can leave lr a hair below zero when the observed rate
	// equals the expected rate; ChiSquared.CDF rejects negative input.
	lr = math.Max(lr, 0)

	pValue := 1 - distuv.ChiSquared{K: 1}.CDF(lr)
	return &lr, &pValue
}

func clampRate(rate float64) float64 {
	return math.Max(kupiecEps, math.Min(1-kupiecEps, rate))
}
