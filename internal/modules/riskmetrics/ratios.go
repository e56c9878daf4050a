package riskmetrics

import (
	"math"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

// DailyRiskFree converts an annual risk-free rate to a per-day rate. Log
// returns divide linearly; simple returns de-compound.
func DailyRiskFree(annualRate float64, returnType string, annDays int) float64 {
	if returnType == domain.ReturnLog {
		return annualRate / float64(annDays)
	}
	return math.Pow(1+annualRate, 1/float64(annDays)) - 1
}

// AnnualizedReturn annualizes a daily return series. Log returns scale the
// mean linearly; simple returns compound CAGR-style with a floor of -1 when
// cumulative growth is non-positive.
func AnnualizedReturn(values []float64, returnType string, annDays int) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	if returnType == domain.ReturnLog {
		return formulas.Mean(values) * float64(annDays)
	}
	total := 1.0
	for _, r := range values {
		total *= 1 + r
	}
	if total <= 0 {
		return -1
	}
	return math.Pow(total, float64(annDays)/float64(n)) - 1
}

// SharpeRatio computes the annualized Sharpe ratio:
//
//	mean(returns - rf_daily) * annDays / (std(returns) * sqrt(annDays))
//
// Returns 0 when the volatility is zero.
func SharpeRatio(values []float64, riskFreeRate float64, returnType string, annDays int) float64 {
	if len(values) == 0 {
		return 0
	}
	vol := formulas.StdDev(values)
	if vol == 0 {
		return 0
	}
	rfDaily := DailyRiskFree(riskFreeRate, returnType, annDays)
	excessAnn := (formulas.Mean(values) - rfDaily) * float64(annDays)
	volAnn := vol * math.Sqrt(float64(annDays))
	return excessAnn / volAnn
}

// SortinoRatio computes the annualized Sortino ratio: the same numerator as
// Sharpe over the annualized sample deviation of the downside half of excess
// returns (excess clipped at zero). When the downside deviation is zero it
// returns +Inf for positive excess and 0 otherwise; callers map +Inf to a
// null at the serialization boundary.
func SortinoRatio(values []float64, riskFreeRate float64, returnType string, annDays int) float64 {
	if len(values) == 0 {
		return 0
	}
	rfDaily := DailyRiskFree(riskFreeRate, returnType, annDays)
	excess := make([]float64, len(values))
	downside := make([]float64, len(values))
	for i, r := range values {
		excess[i] = r - rfDaily
		downside[i] = math.Min(excess[i], 0)
	}
	excessAnn := formulas.Mean(excess) * float64(annDays)
	downsideDevAnn := formulas.StdDev(downside) * math.Sqrt(float64(annDays))
	if downsideDevAnn == 0 {
		if excessAnn > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return excessAnn / downsideDevAnn
}

// DownsideDeviationAnn is the annualized sample deviation of excess returns
// clipped at zero.
func DownsideDeviationAnn(values []float64, riskFreeRate float64, returnType string, annDays int) float64 {
	if len(values) == 0 {
		return 0
	}
	rfDaily := DailyRiskFree(riskFreeRate, returnType, annDays)
	downside := make([]float64, len(values))
	for i, r := range values {
		downside[i] = math.Min(r-rfDaily, 0)
	}
	return formulas.StdDev(downside) * math.Sqrt(float64(annDays))
}
