package riskmetrics

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

// minRegressionObs is the smallest date-aligned overlap the benchmark
// regression runs on; below it the block is skipped entirely.
const minRegressionObs = 10

// alignSeries intersects two clean series on dates, preserving order.
func alignSeries(a, b domain.Series) (x, y []float64, dates []time.Time) {
	index := make(map[time.Time]int, b.Len())
	for i, d := range b.Dates {
		index[d] = i
	}
	for i, d := range a.Dates {
		if j, ok := index[d]; ok {
			x = append(x, a.Values[i])
			y = append(y, b.Values[j])
			dates = append(dates, d)
		}
	}
	return x, y, dates
}

// benchmarkAnalytics regresses portfolio returns on benchmark returns over
// the date-aligned overlap (OLS with intercept) and derives tracking error
// and information ratio from the active return series. Returns nil when the
// overlap is below minRegressionObs.
func benchmarkAnalytics(port, bench domain.Series, annDays int) *BenchmarkBlock {
	portVals, benchVals, _ := alignSeries(port, bench)
	if len(portVals) < minRegressionObs {
		return nil
	}

	alpha, beta := stat.LinearRegression(benchVals, portVals, nil, false)
	r2 := stat.RSquared(benchVals, portVals, nil, alpha, beta)
	corr := formulas.Correlation(portVals, benchVals)

	active := make([]float64, len(portVals))
	for i := range portVals {
		active[i] = portVals[i] - benchVals[i]
	}
	teAnn := formulas.StdDev(active) * math.Sqrt(float64(annDays))

	var infoRatio *float64
	if teAnn > 0 {
		ir := formulas.Mean(active) * float64(annDays) / teAnn
		infoRatio = &ir
	}

	return &BenchmarkBlock{
		Beta:             beta,
		AlphaAnn:         alpha * float64(annDays),
		R2:               r2,
		Corr:             corr,
		TrackingErrorAnn: teAnn,
		InformationRatio: infoRatio,
	}
}

// alignCurveToDates maps a benchmark curve onto the portfolio date axis,
// leaving nil where the benchmark has no observation.
func alignCurveToDates(dates []time.Time, curveDates []time.Time, curve []float64) []*float64 {
	index := make(map[time.Time]int, len(curveDates))
	for i, d := range curveDates {
		index[d] = i
	}
	out := make([]*float64, len(dates))
	for i, d := range dates {
		if j, ok := index[d]; ok {
			v := curve[j]
			out[i] = &v
		}
	}
	return out
}
