package varcalc

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/returns"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

// Engine estimates VaR/CVaR from return series. Stateless; safe for
// concurrent use.
type Engine struct {
	returns *returns.Engine
	log     zerolog.Logger
}

// NewEngine creates a new VaR engine.
func NewEngine(returnsEngine *returns.Engine, log zerolog.Logger) *Engine {
	return &Engine{
		returns: returnsEngine,
		log:     log.With().Str("component", "varcalc").Logger(),
	}
}

// Compute estimates VaR/CVaR for the portfolio return series using the
// configured method. assetReturns and weights are required for Monte Carlo
// and enable component VaR for parametric-normal; they are optional
// otherwise.
func (e *Engine) Compute(
	portReturns domain.Series,
	assetReturns *domain.Frame,
	weights map[string]float64,
	p Params,
) (*Result, error) {
	p = withDefaults(p)
	if err := validate(p); err != nil {
		return nil, err
	}

	warnings := []string{}

	base := portReturns.Tail(p.Lookback).Dropped()
	var baseAssets *domain.Frame
	if assetReturns != nil {
		clean := assetReturns.Tail(p.Lookback).DropMissingRows()
		baseAssets = &clean
	}

	aggregated := e.returns.AggregateToHorizon(base, p.ReturnType, p.HorizonDays)
	if aggregated.Len() == 0 {
		return nil, fmt.Errorf("%w: insufficient return data for VaR calculation", domain.ErrInsufficientData)
	}

	bins, counts := formulas.Histogram(aggregated.Values, HistogramBins)
	histRealized := &Histogram{Bins: bins, Counts: counts}

	requestedSims := p.MonteCarlo.Simulations
	effectiveSims := requestedSims
	if effectiveSims > MCSimCap {
		effectiveSims = MCSimCap
	}

	meta := Metadata{
		EffectiveN:       aggregated.Len(),
		HorizonDays:      p.HorizonDays,
		ReturnType:       p.ReturnType,
		Drift:            driftFor(p),
		HSWeighting:      p.Historical.Weighting,
		HSLambda:         p.Historical.Lambda,
		ParametricDist:   p.Parametric.Distribution,
		Seed:             p.MonteCarlo.Seed,
		MCSims:           effectiveSims,
		CovarianceMethod: "sample",
		VaRUnits:         "fraction",
		ReturnUnits:      p.ReturnType,
		HorizonModel:     "aggregation",
	}

	if aggregated.Len() < 50 {
		warnings = append(warnings, "Effective sample size < 50; results may be unstable.")
	}
	if p.HorizonDays > 1 {
		warnings = append(warnings, "Horizon scaling uses rolling aggregation and sqrt(h) approximations.")
	}

	var (
		varLoss, cvar float64
		histSimulated *Histogram
		contributions []Contribution
		err           error
	)

	switch p.Method {
	case MethodHistorical:
		varLoss, cvar, err = HistoricalVaRCVaR(aggregated.Values, p.Confidence, p.Historical.Weighting, p.Historical.Lambda)
		if err != nil {
			return nil, err
		}

	case MethodParametric:
		var fitted FittedParams
		varLoss, cvar, fitted, err = ParametricVaRCVaR(aggregated.Values, p.Confidence, p.Parametric.Distribution, p.Parametric.Drift, &warnings)
		if err != nil {
			return nil, err
		}
		meta.FittedParams = fitted
		if baseAssets != nil && len(weights) > 0 {
			contributions = ComponentVaRNormal(*baseAssets, weights, p.Confidence, p.HorizonDays)
		}

	case MethodMonteCarlo:
		if baseAssets == nil || len(weights) == 0 {
			return nil, fmt.Errorf("%w: Monte Carlo requires asset returns and weights", domain.ErrMissingInput)
		}
		var sims []float64
		varLoss, cvar, sims, err = MonteCarloVaRCVaR(*baseAssets, weights, p.Confidence, p.HorizonDays, requestedSims, p.MonteCarlo.Seed, p.MonteCarlo.Drift, &warnings)
		if err != nil {
			return nil, err
		}
		simBins, simCounts := formulas.Histogram(sims, HistogramBins)
		histSimulated = &Histogram{Bins: simBins, Counts: simCounts}
		meta.Simulations = len(sims)
		meta.HorizonModel = "mvn_scaled"

	default:
		return nil, fmt.Errorf("%w: unknown VaR method %q", domain.ErrInvalidParameter, p.Method)
	}

	if requestedSims > MCSimCap {
		warnings = append(warnings, fmt.Sprintf("Monte Carlo sims capped to %d.", MCSimCap))
	}
	if p.Method == MethodMonteCarlo && requestedSims < 5_000 {
		warnings = append(warnings, "Monte Carlo simulations are below 5,000; results may be noisy.")
	}

	var rolling *RollingVaR
	if (p.Method == MethodHistorical || p.Method == MethodParametric) && p.RollingWindow > 0 && base.Len() > p.HorizonDays {
		rolling = e.rollingVaR(aggregated, p)
	}

	result := &Result{
		Method:             p.Method,
		Confidence:         p.Confidence,
		VaR:                varLoss,
		CVaR:               cvar,
		VaRAmount:          scaleAmount(varLoss, p.PortfolioValue),
		CVaRAmount:         scaleAmount(cvar, p.PortfolioValue),
		Histogram:          histRealized,
		HistogramRealized:  histRealized,
		HistogramSimulated: histSimulated,
		Rolling:            rolling,
		Returns:            aggregated.Values,
		Warnings:           warnings,
		Metadata:           meta,
		ContributionsVaR:   contributions,
	}
	if histSimulated != nil {
		result.Histogram = histSimulated
	}

	e.log.Info().
		Str("method", p.Method).
		Float64("confidence", p.Confidence).
		Float64("var", varLoss).
		Float64("cvar", cvar).
		Int("effective_n", aggregated.Len()).
		Msg("Computed VaR")
	return result, nil
}

// rollingVaR re-estimates VaR over a trailing window across the aggregated
// series. The window adapts to short samples so the series still yields
// multiple points.
func (e *Engine) rollingVaR(aggregated domain.Series, p Params) *RollingVaR {
	n := aggregated.Len()
	if n <= 2 {
		return nil
	}
	window := p.RollingWindow
	if half := n / 2; window > half {
		window = half
	}
	if window < 5 {
		window = 5
	}
	if window >= n {
		return nil
	}

	dates := make([]string, 0, n-window)
	varSeries := make([]float64, 0, n-window)
	realized := make([]float64, 0, n-window)
	for i := window; i < n; i++ {
		values := aggregated.Values[i-window : i]
		var rollVar float64
		var err error
		if p.Method == MethodHistorical {
			rollVar, _, err = HistoricalVaRCVaR(values, p.Confidence, p.Historical.Weighting, p.Historical.Lambda)
		} else {
			rollVar, _, _, err = ParametricVaRCVaR(values, p.Confidence, p.Parametric.Distribution, p.Parametric.Drift, nil)
		}
		if err != nil {
			continue
		}
		dates = append(dates, aggregated.Dates[i-1].Format(domain.DateFormat))
		varSeries = append(varSeries, rollVar)
		realized = append(realized, aggregated.Values[i])
	}
	if len(dates) == 0 {
		return nil
	}
	return &RollingVaR{Dates: dates, VaRSeries: varSeries, Realized: realized}
}

func withDefaults(p Params) Params {
	if p.ReturnType == "" {
		p.ReturnType = domain.ReturnSimple
	}
	if p.HorizonDays < 1 {
		p.HorizonDays = 1
	}
	if p.Historical == nil {
		p.Historical = &HistoricalParams{Weighting: WeightingNone, Lambda: 0.94}
	}
	if p.Historical.Weighting == "" {
		p.Historical.Weighting = WeightingNone
	}
	if p.Historical.Lambda == 0 {
		p.Historical.Lambda = 0.94
	}
	if p.Parametric == nil {
		p.Parametric = &ParametricParams{Distribution: DistNormal, Drift: DriftIgnore}
	}
	if p.Parametric.Distribution == "" {
		p.Parametric.Distribution = DistNormal
	}
	if p.Parametric.Drift == "" {
		p.Parametric.Drift = DriftIgnore
	}
	if p.MonteCarlo == nil {
		p.MonteCarlo = &MonteCarloParams{Simulations: 10_000, Seed: 42, Drift: DriftIgnore}
	}
	if p.MonteCarlo.Simulations == 0 {
		p.MonteCarlo.Simulations = 10_000
	}
	if p.MonteCarlo.Drift == "" {
		p.MonteCarlo.Drift = DriftIgnore
	}
	return p
}

func validate(p Params) error {
	if p.Confidence <= 0 || p.Confidence >= 1 {
		return fmt.Errorf("%w: confidence must be in (0,1), got %v", domain.ErrInvalidParameter, p.Confidence)
	}
	if p.ReturnType != domain.ReturnSimple && p.ReturnType != domain.ReturnLog {
		return fmt.Errorf("%w: unknown return type %q", domain.ErrInvalidParameter, p.ReturnType)
	}
	if d := p.Parametric.Drift; d != DriftIgnore && d != DriftInclude {
		return fmt.Errorf("%w: unknown drift mode %q", domain.ErrInvalidParameter, d)
	}
	if d := p.MonteCarlo.Drift; d != DriftIgnore && d != DriftInclude {
		return fmt.Errorf("%w: unknown drift mode %q", domain.ErrInvalidParameter, d)
	}
	return nil
}

func driftFor(p Params) string {
	if p.Method == MethodMonteCarlo {
		return p.MonteCarlo.Drift
	}
	return p.Parametric.Drift
}

func scaleAmount(fraction float64, portfolioValue *float64) *float64 {
	if portfolioValue == nil {
		return nil
	}
	amount := fraction * *portfolioValue
	return &amount
}
