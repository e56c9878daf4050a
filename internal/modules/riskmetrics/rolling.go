package riskmetrics

import (
	"math"
	"time"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

// rollingStat evaluates a trailing-window statistic per window size and
// aligns every window's series to the dates produced by the first window.
// Entries are nil before the window fills or where the statistic is
// undefined.
func rollingStat(dates []time.Time, values []float64, windows []int, stat func(window []float64) (float64, bool)) RollingSeries {
	n := len(values)
	perWindow := make([][]*float64, len(windows))
	for wi, w := range windows {
		series := make([]*float64, n)
		if w >= 1 && w <= n {
			for i := w - 1; i < n; i++ {
				if v, ok := stat(values[i-w+1 : i+1]); ok {
					val := v
					series[i] = &val
				}
			}
		}
		perWindow[wi] = series
	}

	// The first window defines the date axis.
	refIdx := make([]int, 0, n)
	if len(windows) > 0 {
		for i, v := range perWindow[0] {
			if v != nil {
				refIdx = append(refIdx, i)
			}
		}
	}

	out := RollingSeries{
		Dates:   make([]string, len(refIdx)),
		Windows: make([]WindowSeries, len(windows)),
	}
	for j, i := range refIdx {
		out.Dates[j] = dates[i].Format(domain.DateFormat)
	}
	for wi, w := range windows {
		aligned := make([]*float64, len(refIdx))
		for j, i := range refIdx {
			aligned[j] = perWindow[wi][i]
		}
		out.Windows[wi] = WindowSeries{Window: w, Values: aligned}
	}
	return out
}

// rollingVolatility computes annualized rolling volatility series.
func rollingVolatility(dates []time.Time, values []float64, windows []int, annDays int) RollingSeries {
	sqrtAnn := math.Sqrt(float64(annDays))
	return rollingStat(dates, values, windows, func(window []float64) (float64, bool) {
		return formulas.StdDev(window) * sqrtAnn, true
	})
}

// rollingSharpe computes annualized rolling Sharpe series:
//
//	rolling_mean(r - rf_daily) * annDays / (rolling_std(r) * sqrt(annDays))
//
// Windows with zero volatility yield nil.
func rollingSharpe(dates []time.Time, values []float64, windows []int, riskFreeRate float64, returnType string, annDays int) RollingSeries {
	rfDaily := DailyRiskFree(riskFreeRate, returnType, annDays)
	sqrtAnn := math.Sqrt(float64(annDays))
	return rollingStat(dates, values, windows, func(window []float64) (float64, bool) {
		vol := formulas.StdDev(window)
		if vol == 0 {
			return 0, false
		}
		excessAnn := (formulas.Mean(window) - rfDaily) * float64(annDays)
		sharpe := excessAnn / (vol * sqrtAnn)
		if math.IsNaN(sharpe) || math.IsInf(sharpe, 0) {
			return 0, false
		}
		return sharpe, true
	})
}
