package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/varcalc"
)

// minEstimationObs is the smallest estimation window a date may be judged
// against; dates with fewer prior observations are skipped.
const minEstimationObs = 10

// Engine backtests a VaR model by re-estimating it on a rolling basis over
// history and comparing each estimate against the realized return.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new backtest engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "backtest").Logger()}
}

// Run walks forward over the most recent BacktestDays observations. For each
// date t it estimates VaR from the lookback window ending strictly before t
// (the realized return at t never enters its own estimation window), flags
// an exception when the realized return falls below -VaR, and finishes with
// the Kupiec POF test over the collected exceptions.
//
// Monte Carlo sub-estimates are re-seeded per date as seed+i so runs stay
// reproducible yet decorrelated. Per-date estimation failures are logged and
// skipped; the run fails only when no date produces a valid estimate.
func (e *Engine) Run(
	portReturns domain.Series,
	assetReturns *domain.Frame,
	weights map[string]float64,
	p Params,
) (*Result, error) {
	if p.Confidence <= 0 || p.Confidence >= 1 {
		return nil, fmt.Errorf("%w: confidence must be in (0,1), got %v", domain.ErrInvalidParameter, p.Confidence)
	}
	switch p.Method {
	case varcalc.MethodHistorical, varcalc.MethodParametric:
	case varcalc.MethodMonteCarlo:
		if assetReturns == nil || len(weights) == 0 {
			return nil, fmt.Errorf("%w: Monte Carlo requires asset returns and weights", domain.ErrMissingInput)
		}
	default:
		return nil, fmt.Errorf("%w: unknown VaR method %q", domain.ErrInvalidParameter, p.Method)
	}
	if p.MCSims <= 0 {
		p.MCSims = 10_000
	}

	clean := portReturns.Dropped()
	available := clean.Len()

	effectiveLookback := p.Lookback
	if effectiveLookback > available-1 {
		effectiveLookback = available - 1
	}
	maxBacktest := available - effectiveLookback
	if effectiveLookback <= 0 || maxBacktest <= 0 {
		return nil, fmt.Errorf("%w: available=%d, requested_lookback=%d, requested_backtest=%d",
			domain.ErrInsufficientData, available, p.Lookback, p.BacktestDays)
	}
	effectiveBacktest := p.BacktestDays
	if effectiveBacktest > maxBacktest {
		effectiveBacktest = maxBacktest
	}

	e.log.Info().
		Str("method", p.Method).
		Float64("confidence", p.Confidence).
		Int("lookback", p.Lookback).
		Int("backtest_days", effectiveBacktest).
		Msg("Backtesting VaR")

	start := available - effectiveBacktest
	series := Series{}
	for i := 0; i < effectiveBacktest; i++ {
		t := start + i

		// Estimation window: up to lookback observations strictly before t.
		lo := t - p.Lookback
		if lo < 0 {
			lo = 0
		}
		estDates := clean.Dates[lo:t]
		estValues := clean.Values[lo:t]
		if len(estValues) < minEstimationObs {
			continue
		}

		varLoss, err := e.estimate(estDates, estValues, assetReturns, weights, p, i)
		if err != nil {
			e.log.Warn().Err(err).Str("date", clean.Dates[t].Format(domain.DateFormat)).Msg("Failed to estimate VaR for date")
			continue
		}
		varLoss = math.Abs(varLoss)

		realized := clean.Values[t]
		threshold := -varLoss
		series.Dates = append(series.Dates, clean.Dates[t].Format(domain.DateFormat))
		series.Realized = append(series.Realized, realized)
		series.VaRThreshold = append(series.VaRThreshold, threshold)
		series.Exceptions = append(series.Exceptions, realized < threshold)
	}

	if len(series.Dates) == 0 {
		return nil, fmt.Errorf("%w: no valid backtest observations", domain.ErrInsufficientData)
	}

	exceptions := 0
	table := []ExceptionRow{}
	for i, hit := range series.Exceptions {
		if hit {
			exceptions++
			table = append(table, ExceptionRow{
				Date:         series.Dates[i],
				Realized:     series.Realized[i],
				VaRThreshold: series.VaRThreshold[i],
			})
		}
	}

	n := len(series.Exceptions)
	lr, pValue := KupiecPOF(n, exceptions, p.Confidence)

	return &Result{
		ExceptionsCount: exceptions,
		ExceptionsRate:  float64(exceptions) / float64(n),
		KupiecLR:        lr,
		KupiecPValue:    pValue,
		AvailableDays:   available,
		Series:          series,
		ExceptionsTable: table,
	}, nil
}

// estimate dispatches one per-date VaR estimation over the given window.
func (e *Engine) estimate(
	estDates []time.Time,
	estValues []float64,
	assetReturns *domain.Frame,
	weights map[string]float64,
	p Params,
	offset int,
) (float64, error) {
	switch p.Method {
	case varcalc.MethodHistorical:
		varLoss, _, err := varcalc.HistoricalVaRCVaR(estValues, p.Confidence, varcalc.WeightingNone, 0.94)
		return varLoss, err
	case varcalc.MethodParametric:
		varLoss, _, _, err := varcalc.ParametricVaRCVaR(estValues, p.Confidence, varcalc.DistNormal, varcalc.DriftIgnore, nil)
		return varLoss, err
	case varcalc.MethodMonteCarlo:
		window := assetReturns.RowsAt(estDates).DropMissingRows()
		varLoss, _, _, err := varcalc.MonteCarloVaRCVaR(window, weights, p.Confidence, 1, p.MCSims, p.Seed+int64(offset), varcalc.DriftIgnore, nil)
		return varLoss, err
	default:
		return 0, fmt.Errorf("%w: unknown VaR method %q", domain.ErrInvalidParameter, p.Method)
	}
}
