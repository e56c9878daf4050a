package riskmetrics

import (
	"context"
	"time"

	"github.com/meridian-labs/riskd/internal/domain"
)

// DefaultAnnualizationDays is the trading-day count used to annualize daily
// statistics.
const DefaultAnnualizationDays = 252

// BenchmarkFetcher supplies benchmark returns for a symbol and date range.
// The HTTP layer injects the market-data service; tests inject fakes.
type BenchmarkFetcher interface {
	FetchBenchmarkReturns(ctx context.Context, symbol string, start, end time.Time, returnType string) (domain.Series, error)
}

// Params configures a risk-metrics computation.
type Params struct {
	BenchmarkSymbol   string
	RollingWindows    []int
	RiskFreeRate      float64
	AnnualizationDays int
	ReturnType        string
	IncludeBenchmark  bool
}

// Summary is the headline risk block.
type Summary struct {
	AnnVol         float64  `json:"ann_vol"`
	MaxDrawdown    float64  `json:"max_drawdown"`
	Beta           *float64 `json:"beta"`
	DDDurationDays int      `json:"dd_duration_days"`
	SharpeRatio    float64  `json:"sharpe_ratio"`
	SortinoRatio   *float64 `json:"sortino_ratio"`
	AnnReturn      float64  `json:"ann_return"`
}

// WindowSeries is one rolling-window series aligned to the reference dates;
// entries are nil where the window is not yet filled or the statistic is
// undefined.
type WindowSeries struct {
	Window int        `json:"window"`
	Values []*float64 `json:"values"`
}

// RollingSeries groups rolling series for several window sizes over a shared
// date axis (the dates produced by the first window).
type RollingSeries struct {
	Dates   []string       `json:"dates"`
	Windows []WindowSeries `json:"windows"`
}

// Correlation is the asset correlation matrix.
type Correlation struct {
	Symbols []string    `json:"symbols"`
	Matrix  [][]float64 `json:"matrix"`
}

// Contribution is the per-asset risk decomposition of annualized portfolio
// volatility.
type Contribution struct {
	Symbol  string  `json:"symbol"`
	Weight  float64 `json:"weight"`
	MCTR    float64 `json:"mctr"`
	CCTR    float64 `json:"cctr"`
	PctCCTR float64 `json:"pct_cctr"`
}

// CurveSeries carries a portfolio curve (cumulative return or drawdown) with
// an optional benchmark curve aligned to the same dates.
type CurveSeries struct {
	Dates     []string   `json:"dates"`
	Portfolio []float64  `json:"portfolio"`
	Benchmark []*float64 `json:"benchmark,omitempty"`
}

// TailStats are distribution and performance statistics of the daily series.
type TailStats struct {
	Skew           float64  `json:"skew"`
	Kurtosis       float64  `json:"kurtosis"`
	BestDay        float64  `json:"best_day"`
	WorstDay       float64  `json:"worst_day"`
	HitRatio       float64  `json:"hit_ratio"`
	DownsideDevAnn float64  `json:"downside_dev_ann"`
	CalmarRatio    *float64 `json:"calmar_ratio"`
}

// BenchmarkBlock is the OLS regression block against the benchmark.
type BenchmarkBlock struct {
	Beta             float64  `json:"beta"`
	AlphaAnn         float64  `json:"alpha_ann"`
	R2               float64  `json:"r2"`
	Corr             float64  `json:"corr"`
	TrackingErrorAnn float64  `json:"tracking_error_ann"`
	InformationRatio *float64 `json:"information_ratio"`
}

// Metadata describes the computation inputs.
type Metadata struct {
	AnnualizationDays int      `json:"annualization_days"`
	ReturnType        string   `json:"return_type"`
	EffectiveDays     int      `json:"effective_days"`
	Symbols           []string `json:"symbols"`
	BenchmarkSymbol   *string  `json:"benchmark_symbol"`
	RiskFreeRate      float64  `json:"risk_free_rate"`
}

// Result is the full risk-metrics report. Built once per request and never
// mutated afterwards.
type Result struct {
	Summary           Summary         `json:"summary"`
	RollingVol        RollingSeries   `json:"rolling_vol"`
	Correlation       Correlation     `json:"correlation"`
	Contributions     []Contribution  `json:"contributions"`
	CumulativeReturns CurveSeries     `json:"cumulative_returns"`
	DrawdownSeries    CurveSeries     `json:"drawdown_series"`
	RollingSharpe     RollingSeries   `json:"rolling_sharpe"`
	Stats             *TailStats      `json:"stats"`
	Benchmark         *BenchmarkBlock `json:"benchmark,omitempty"`
	Metadata          Metadata        `json:"metadata"`
	Warnings          []string        `json:"warnings"`
}
