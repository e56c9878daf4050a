package riskmetrics

import (
	"context"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

// minStableSample is the sample size below which stability warnings are
// raised.
const minStableSample = 50

// maxMissingFraction is the missing-data share above which an asset is
// dropped from covariance/correlation.
const maxMissingFraction = 0.20

// Engine derives portfolio risk analytics from return series. Stateless;
// safe for concurrent use.
type Engine struct {
	benchmarks BenchmarkFetcher
	log        zerolog.Logger
}

// NewEngine creates a new risk-metrics engine. benchmarks may be nil, which
// disables benchmark analytics.
func NewEngine(benchmarks BenchmarkFetcher, log zerolog.Logger) *Engine {
	return &Engine{
		benchmarks: benchmarks,
		log:        log.With().Str("component", "riskmetrics").Logger(),
	}
}

// Compute derives the full risk-metrics report for a portfolio return series
// and its asset return matrix.
func (e *Engine) Compute(
	ctx context.Context,
	portReturns domain.Series,
	assetReturns domain.Frame,
	weights map[string]float64,
	p Params,
) (*Result, error) {
	p = paramsWithDefaults(p)
	annDays := p.AnnualizationDays
	warnings := []string{}

	port := portReturns.Dropped()
	effectiveDays := port.Len()
	if effectiveDays == 0 {
		return nil, fmt.Errorf("%w: empty portfolio return series", domain.ErrInsufficientData)
	}
	if effectiveDays < minStableSample {
		warnings = append(warnings, fmt.Sprintf("Effective sample size (%d) < %d; results may be unstable.", effectiveDays, minStableSample))
	}

	e.log.Info().Int("effective_days", effectiveDays).Msg("Computing risk metrics")

	logReturns := p.ReturnType == domain.ReturnLog
	annVol := formulas.StdDev(port.Values) * math.Sqrt(float64(annDays))
	annReturn := AnnualizedReturn(port.Values, p.ReturnType, annDays)
	sharpe := SharpeRatio(port.Values, p.RiskFreeRate, p.ReturnType, annDays)
	sortino := SortinoRatio(port.Values, p.RiskFreeRate, p.ReturnType, annDays)

	cum := formulas.CumulativeReturns(port.Values, logReturns)
	drawdown := formulas.DrawdownCurve(cum)
	maxDD := formulas.MaxDrawdown(drawdown)
	ddDuration := formulas.DrawdownDuration(drawdown)

	stats := e.tailStats(port.Values, p, annReturn, maxDD)

	// Benchmark analytics.
	var benchBlock *BenchmarkBlock
	var beta *float64
	var benchCumAligned, benchDDAligned []*float64
	if p.IncludeBenchmark && p.BenchmarkSymbol != "" && e.benchmarks != nil {
		bench, err := e.fetchBenchmark(ctx, p, port)
		if err != nil || bench.Len() <= minRegressionObs {
			warnings = append(warnings, fmt.Sprintf("Benchmark %s has insufficient overlap with portfolio.", p.BenchmarkSymbol))
		} else {
			_, _, alignedDates := alignSeries(port, bench)
			if len(alignedDates) < minStableSample {
				warnings = append(warnings, "Benchmark overlap < 50 days; TE/IR may be unstable.")
			}
			benchBlock = benchmarkAnalytics(port, bench, annDays)
			if benchBlock != nil {
				b := benchBlock.Beta
				beta = &b
				if benchBlock.TrackingErrorAnn == 0 {
					warnings = append(warnings, "Tracking error is zero; information ratio undefined")
				}
			}
			benchCum := formulas.CumulativeReturns(bench.Values, logReturns)
			benchDD := formulas.DrawdownCurve(benchCum)
			benchCumAligned = alignCurveToDates(port.Dates, bench.Dates, benchCum)
			benchDDAligned = alignCurveToDates(port.Dates, bench.Dates, benchDD)
		}
	}

	// Asset alignment and data-quality gates.
	assets := assetReturns.RowsAt(port.Dates).DropAllMissingRows()
	if assets.Rows() == 0 {
		warnings = append(warnings, "No aligned asset return data available.")
		assets = domain.NewFrame(nil, nil)
	}
	var dropped []string
	for col, sym := range assets.Symbols {
		if assets.MissingFraction(col) > maxMissingFraction {
			dropped = append(dropped, sym)
			warnings = append(warnings, fmt.Sprintf("Asset %s has >20%% missing returns after alignment; dropped from covariance.", sym))
		}
	}
	if len(dropped) > 0 {
		assets = assets.DropColumns(dropped)
	}
	cleanAssets := assets.DropMissingRows()
	if assets.Cols() > 0 && cleanAssets.Rows() < minStableSample {
		warnings = append(warnings, "Clean aligned asset return sample < 50 rows; correlations/contributions may be unstable.")
	}

	correlation := Correlation{Symbols: assets.Symbols, Matrix: [][]float64{}}
	if assets.Cols() > 0 {
		correlation.Matrix = correlationMatrix(cleanAssets)
	}
	contributions := riskContributions(cleanAssets, weights, annDays)

	rollingVol := rollingVolatility(port.Dates, port.Values, p.RollingWindows, annDays)
	rollingSharpeSeries := rollingSharpe(port.Dates, port.Values, p.RollingWindows, p.RiskFreeRate, p.ReturnType, annDays)

	cumData := CurveSeries{Dates: port.DateStrings(), Portfolio: cum, Benchmark: benchCumAligned}
	ddData := CurveSeries{Dates: port.DateStrings(), Portfolio: drawdown, Benchmark: benchDDAligned}

	var benchSymbol *string
	if p.IncludeBenchmark && p.BenchmarkSymbol != "" {
		s := p.BenchmarkSymbol
		benchSymbol = &s
	}

	return &Result{
		Summary: Summary{
			AnnVol:         annVol,
			MaxDrawdown:    maxDD,
			Beta:           beta,
			DDDurationDays: ddDuration,
			SharpeRatio:    sharpe,
			SortinoRatio:   finiteOrNil(sortino),
			AnnReturn:      annReturn,
		},
		RollingVol:        rollingVol,
		Correlation:       correlation,
		Contributions:     contributions,
		CumulativeReturns: cumData,
		DrawdownSeries:    ddData,
		RollingSharpe:     rollingSharpeSeries,
		Stats:             stats,
		Benchmark:         benchBlock,
		Metadata: Metadata{
			AnnualizationDays: annDays,
			ReturnType:        p.ReturnType,
			EffectiveDays:     effectiveDays,
			Symbols:           assets.Symbols,
			BenchmarkSymbol:   benchSymbol,
			RiskFreeRate:      p.RiskFreeRate,
		},
		Warnings: warnings,
	}, nil
}

func (e *Engine) fetchBenchmark(ctx context.Context, p Params, port domain.Series) (domain.Series, error) {
	start := port.Dates[0]
	end := port.Dates[port.Len()-1]
	bench, err := e.benchmarks.FetchBenchmarkReturns(ctx, p.BenchmarkSymbol, start, end, p.ReturnType)
	if err != nil {
		e.log.Warn().Err(err).Str("benchmark", p.BenchmarkSymbol).Msg("Failed to fetch benchmark")
		return domain.Series{}, err
	}
	return bench.Dropped(), nil
}

func (e *Engine) tailStats(values []float64, p Params, annReturn, maxDD float64) *TailStats {
	if len(values) == 0 {
		return nil
	}
	best := values[0]
	worst := values[0]
	positive := 0
	for _, v := range values {
		if v > best {
			best = v
		}
		if v < worst {
			worst = v
		}
		if v > 0 {
			positive++
		}
	}
	var calmar *float64
	if maxDD > 0 {
		c := annReturn / maxDD
		calmar = &c
	}
	return &TailStats{
		Skew:           formulas.Skew(values),
		Kurtosis:       formulas.ExKurtosis(values),
		BestDay:        best,
		WorstDay:       worst,
		HitRatio:       float64(positive) / float64(len(values)),
		DownsideDevAnn: DownsideDeviationAnn(values, p.RiskFreeRate, p.ReturnType, p.AnnualizationDays),
		CalmarRatio:    calmar,
	}
}

func paramsWithDefaults(p Params) Params {
	if len(p.RollingWindows) == 0 {
		p.RollingWindows = []int{30, 90, 252}
	}
	if p.AnnualizationDays <= 0 {
		p.AnnualizationDays = DefaultAnnualizationDays
	}
	if p.ReturnType == "" {
		p.ReturnType = domain.ReturnLog
	}
	return p
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
