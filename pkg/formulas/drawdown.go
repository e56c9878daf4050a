package formulas

import "math"

// CumulativeReturns compounds a return series into a cumulative growth curve
// (1-based). Log returns are exponentiated back to simple growth first.
//
//	curve[t] = prod_{i<=t} (1 + r_i)
func CumulativeReturns(returns []float64, logReturns bool) []float64 {
	curve := make([]float64, len(returns))
	cum := 1.0
	for i, r := range returns {
		if logReturns {
			r = math.Exp(r) - 1
		}
		cum *= 1 + r
		curve[i] = cum
	}
	return curve
}

// DrawdownCurve converts a cumulative growth curve into a drawdown series:
// cum/running_max - 1, which is <= 0 everywhere.
func DrawdownCurve(cum []float64) []float64 {
	dd := make([]float64, len(cum))
	runMax := math.Inf(-1)
	for i, v := range cum {
		if v > runMax {
			runMax = v
		}
		if runMax != 0 {
			dd[i] = v/runMax - 1
		}
	}
	return dd
}

// MaxDrawdown returns the magnitude of the deepest drawdown (a positive
// fraction, 0.25 = 25% below the peak).
func MaxDrawdown(drawdown []float64) float64 {
	worst := 0.0
	for _, v := range drawdown {
		if v < worst {
			worst = v
		}
	}
	return math.Abs(worst)
}

// DrawdownDuration returns the longest run of consecutive days spent in
// drawdown (drawdown magnitude strictly positive).
func DrawdownDuration(drawdown []float64) int {
	maxRun := 0
	run := 0
	for _, v := range drawdown {
		if v < 0 {
			run++
			if run > maxRun {
				maxRun = run
			}
		} else {
			run = 0
		}
	}
	return maxRun
}
