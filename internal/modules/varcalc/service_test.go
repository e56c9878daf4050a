package varcalc

import (
	"math"
	rand "math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/returns"
	"github.com/meridian-labs/riskd/pkg/formulas"
)

func newTestEngine() *Engine {
	return NewEngine(returns.NewEngine(zerolog.Nop()), zerolog.Nop())
}

func testDates(n int) []time.Time {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

// normalSample draws a reproducible N(mu, sigma) sample.
func normalSample(n int, mu, sigma float64, seed uint64) []float64 {
	dist := distuv.Normal{Mu: mu, Sigma: sigma, Src: rand.NewPCG(seed, seed)}
	out := make([]float64, n)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

func TestEWMAWeights(t *testing.T) {
	weights := EWMAWeights(100, 0.94)
	require.Len(t, weights, 100)

	sum := 0.0
	for i, w := range weights {
		sum += w
		if i > 0 {
			// More recent observations carry more weight.
			assert.Greater(t, w, weights[i-1])
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestHistoricalVaRCVaR(t *testing.T) {
	// 20 evenly spread returns from -0.10 to 0.09.
	values := make([]float64, 20)
	for i := range values {
		values[i] = -0.10 + 0.01*float64(i)
	}

	varLoss, cvar, err := HistoricalVaRCVaR(values, 0.95, WeightingNone, 0)
	require.NoError(t, err)
	// 5% quantile of the sample sits just above the minimum.
	assert.InDelta(t, 0.0905, varLoss, 1e-12)
	// Only the minimum lies at or below the quantile.
	assert.InDelta(t, 0.10, cvar, 1e-12)
	assert.GreaterOrEqual(t, cvar, varLoss)
}

func TestHistoricalVaRCVaREWMA(t *testing.T) {
	// Recent losses dominate under exponential decay, pushing the EWMA
	// VaR above the equal-weight estimate.
	values := make([]float64, 100)
	for i := range values {
		values[i] = 0.001
	}
	values[98] = -0.08
	values[99] = -0.10

	eq, _, err := HistoricalVaRCVaR(values, 0.95, WeightingNone, 0)
	require.NoError(t, err)
	ewma, _, err := HistoricalVaRCVaR(values, 0.95, WeightingEWMA, 0.94)
	require.NoError(t, err)
	assert.Greater(t, ewma, eq)
}

func TestHistoricalVaRCVaRValidation(t *testing.T) {
	_, _, err := HistoricalVaRCVaR(nil, 0.95, WeightingNone, 0)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)

	_, _, err = HistoricalVaRCVaR([]float64{0.01}, 0.95, WeightingEWMA, 1.5)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, _, err = HistoricalVaRCVaR([]float64{0.01}, 0.95, "linear", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestParametricNormalClosedForm(t *testing.T) {
	values := normalSample(2000, 0, 0.01, 7)
	sigma := formulas.StdDev(values)

	var warnings []string
	varLoss, cvar, fitted, err := ParametricVaRCVaR(values, 0.95, DistNormal, DriftIgnore, &warnings)
	require.NoError(t, err)

	alpha := 0.05
	z := distuv.UnitNormal.Quantile(alpha)
	assert.InDelta(t, -sigma*z, varLoss, 1e-12)
	assert.InDelta(t, sigma*distuv.UnitNormal.Prob(z)/alpha, cvar, 1e-12)
	assert.Greater(t, cvar, varLoss)
	require.NotNil(t, fitted.Sigma)
	assert.InDelta(t, sigma, *fitted.Sigma, 1e-12)
	// Drift ignored: mu pinned to zero.
	require.NotNil(t, fitted.Mu)
	assert.Equal(t, 0.0, *fitted.Mu)
}

func TestParametricDriftInclude(t *testing.T) {
	values := normalSample(2000, 0.001, 0.01, 11)

	var warnings []string
	ignored, _, _, err := ParametricVaRCVaR(values, 0.95, DistNormal, DriftIgnore, &warnings)
	require.NoError(t, err)
	included, _, _, err := ParametricVaRCVaR(values, 0.95, DistNormal, DriftInclude, &warnings)
	require.NoError(t, err)

	// A positive mean reduces the loss quantile.
	assert.Less(t, included, ignored)
}

func TestParametricStudentTConvergesToNormal(t *testing.T) {
	// On a large Normal sample the fitted t must land close to the Normal
	// closed form.
	values := normalSample(5000, 0, 0.01, 3)

	var warnings []string
	nVaR, nCVaR, _, err := ParametricVaRCVaR(values, 0.99, DistNormal, DriftIgnore, &warnings)
	require.NoError(t, err)
	tVaR, tCVaR, fitted, err := ParametricVaRCVaR(values, 0.99, DistStudentT, DriftIgnore, &warnings)
	require.NoError(t, err)

	require.NotNil(t, fitted.DF)
	assert.Greater(t, *fitted.DF, 10.0)
	assert.InEpsilon(t, nVaR, tVaR, 0.10)
	assert.InEpsilon(t, nCVaR, tCVaR, 0.10)
}

func TestParametricDegenerateSample(t *testing.T) {
	var warnings []string
	varLoss, cvar, _, err := ParametricVaRCVaR([]float64{0.01, 0.01, 0.01}, 0.95, DistNormal, DriftIgnore, &warnings)
	require.NoError(t, err)
	assert.Equal(t, 0.0, varLoss)
	assert.Equal(t, 0.0, cvar)
	assert.NotEmpty(t, warnings)
}

func buildAssetFrame(t *testing.T, n int) (domain.Frame, map[string]float64) {
	t.Helper()
	symbols := []string{"AAA", "BBB", "CCC"}
	f := domain.NewFrame(testDates(n), symbols)
	a := normalSample(n, 0, 0.012, 21)
	b := normalSample(n, 0, 0.018, 22)
	c := normalSample(n, 0, 0.009, 23)
	for row := 0; row < n; row++ {
		f.Values[row] = []float64{a[row], 0.4*a[row] + b[row], c[row]}
		f.Valid[row] = []bool{true, true, true}
	}
	return f, map[string]float64{"AAA": 0.5, "BBB": 0.3, "CCC": 0.2}
}

func TestComponentVaRAdditivity(t *testing.T) {
	f, weights := buildAssetFrame(t, 500)
	engine := newTestEngine()

	port := engine.returns.PortfolioReturns(f, weights)
	result, err := engine.Compute(port, &f, weights, Params{
		Method:     MethodParametric,
		Confidence: 0.95,
	})
	require.NoError(t, err)
	require.Len(t, result.ContributionsVaR, 3)

	sum := 0.0
	for _, c := range result.ContributionsVaR {
		sum += c.ComponentVaR
	}
	assert.InEpsilon(t, result.VaR, sum, 0.05)
}

func TestMonteCarloReproducible(t *testing.T) {
	f, weights := buildAssetFrame(t, 250)

	var w1, w2 []string
	v1, c1, sims1, err := MonteCarloVaRCVaR(f, weights, 0.95, 1, 5000, 42, DriftIgnore, &w1)
	require.NoError(t, err)
	v2, c2, sims2, err := MonteCarloVaRCVaR(f, weights, 0.95, 1, 5000, 42, DriftIgnore, &w2)
	require.NoError(t, err)

	// Identical seed and inputs reproduce the simulation bit for bit.
	assert.Equal(t, v1, v2)
	assert.Equal(t, c1, c2)
	assert.Equal(t, sims1, sims2)

	v3, _, _, err := MonteCarloVaRCVaR(f, weights, 0.95, 1, 5000, 43, DriftIgnore, nil)
	require.NoError(t, err)
	assert.NotEqual(t, v1, v3)
}

func TestMonteCarloAgreesWithParametric(t *testing.T) {
	f, weights := buildAssetFrame(t, 500)
	engine := newTestEngine()
	port := engine.returns.PortfolioReturns(f, weights)

	parametric, err := engine.Compute(port, &f, weights, Params{Method: MethodParametric, Confidence: 0.95})
	require.NoError(t, err)

	mc, err := engine.Compute(port, &f, weights, Params{
		Method:     MethodMonteCarlo,
		Confidence: 0.95,
		MonteCarlo: &MonteCarloParams{Simulations: 50_000, Seed: 42, Drift: DriftIgnore},
	})
	require.NoError(t, err)

	// Both estimate the same Gaussian portfolio; Monte Carlo noise stays
	// within a few percent at 50k draws.
	assert.InEpsilon(t, parametric.VaR, mc.VaR, 0.05)
	assert.InEpsilon(t, parametric.CVaR, mc.CVaR, 0.05)
	assert.NotNil(t, mc.HistogramSimulated)
	assert.Equal(t, mc.HistogramSimulated, mc.Histogram)
	assert.Equal(t, "mvn_scaled", mc.Metadata.HorizonModel)
}

func TestMonteCarloSimCap(t *testing.T) {
	f, weights := buildAssetFrame(t, 250)
	engine := newTestEngine()
	port := engine.returns.PortfolioReturns(f, weights)

	result, err := engine.Compute(port, &f, weights, Params{
		Method:     MethodMonteCarlo,
		Confidence: 0.95,
		MonteCarlo: &MonteCarloParams{Simulations: 500_000, Seed: 42},
	})
	require.NoError(t, err)
	assert.Equal(t, MCSimCap, result.Metadata.Simulations)

	found := false
	for _, w := range result.Warnings {
		if w == "Monte Carlo sims capped to 200000." {
			found = true
		}
	}
	assert.True(t, found, "expected cap warning, got %v", result.Warnings)
}

func TestMonteCarloRequiresAssets(t *testing.T) {
	engine := newTestEngine()
	port := domain.NewSeries(testDates(100), normalSample(100, 0, 0.01, 5))

	_, err := engine.Compute(port, nil, nil, Params{Method: MethodMonteCarlo, Confidence: 0.95})
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestComputeValidation(t *testing.T) {
	engine := newTestEngine()
	port := domain.NewSeries(testDates(100), normalSample(100, 0, 0.01, 5))

	_, err := engine.Compute(port, nil, nil, Params{Method: MethodHistorical, Confidence: 1.5})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = engine.Compute(port, nil, nil, Params{Method: "cornish_fisher", Confidence: 0.95})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = engine.Compute(domain.Series{}, nil, nil, Params{Method: MethodHistorical, Confidence: 0.95})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestComputeHistoricalResultShape(t *testing.T) {
	engine := newTestEngine()
	values := normalSample(300, 0, 0.01, 9)
	port := domain.NewSeries(testDates(300), values)
	pv := 1_000_000.0

	result, err := engine.Compute(port, nil, nil, Params{
		Method:         MethodHistorical,
		Confidence:     0.95,
		PortfolioValue: &pv,
		RollingWindow:  60,
	})
	require.NoError(t, err)

	assert.Equal(t, MethodHistorical, result.Method)
	assert.Greater(t, result.VaR, 0.0)
	assert.GreaterOrEqual(t, result.CVaR, result.VaR)
	require.NotNil(t, result.VaRAmount)
	assert.InDelta(t, result.VaR*pv, *result.VaRAmount, 1e-9)
	assert.Equal(t, 300, result.Metadata.EffectiveN)
	assert.Len(t, result.Histogram.Bins, HistogramBins+1)
	assert.Len(t, result.Histogram.Counts, HistogramBins)

	require.NotNil(t, result.Rolling)
	assert.Len(t, result.Rolling.VaRSeries, len(result.Rolling.Dates))
	assert.Len(t, result.Rolling.Realized, len(result.Rolling.Dates))
}

func TestComputeHorizonAggregation(t *testing.T) {
	engine := newTestEngine()
	values := normalSample(300, 0, 0.01, 13)
	port := domain.NewSeries(testDates(300), values)

	h1, err := engine.Compute(port, nil, nil, Params{Method: MethodHistorical, Confidence: 0.95})
	require.NoError(t, err)
	h10, err := engine.Compute(port, nil, nil, Params{Method: MethodHistorical, Confidence: 0.95, HorizonDays: 10})
	require.NoError(t, err)

	// Ten-day losses dominate one-day losses, and the rolling windows
	// shrink the effective sample by h-1.
	assert.Greater(t, h10.VaR, h1.VaR)
	assert.Equal(t, 300-9, h10.Metadata.EffectiveN)
	assert.Contains(t, h10.Warnings, "Horizon scaling uses rolling aggregation and sqrt(h) approximations.")
}

func TestComputeSmallSampleWarning(t *testing.T) {
	engine := newTestEngine()
	port := domain.NewSeries(testDates(30), normalSample(30, 0, 0.01, 17))

	result, err := engine.Compute(port, nil, nil, Params{Method: MethodHistorical, Confidence: 0.95})
	require.NoError(t, err)
	assert.Contains(t, result.Warnings, "Effective sample size < 50; results may be unstable.")
}

func TestHistogramCountsSumToSample(t *testing.T) {
	values := normalSample(777, 0, 0.01, 19)
	_, counts := formulas.Histogram(values, HistogramBins)
	total := 0
	for _, c := range counts {
		total += c
	}
	assert.Equal(t, len(values), total)
	assert.False(t, math.IsNaN(values[0]))
}
