package backtest

import (
	rand "math/rand/v2"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/varcalc"
)

func testDates(n int) []time.Time {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

func normalSeries(n int, sigma float64, seed uint64) domain.Series {
	dist := distuv.Normal{Mu: 0, Sigma: sigma, Src: rand.NewPCG(seed, seed)}
	values := make([]float64, n)
	for i := range values {
		values[i] = dist.Rand()
	}
	return domain.NewSeries(testDates(n), values)
}

func TestKupiecPOF(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		exceptions int
		confidence float64
		wantLR     float64
		wantP      float64
		delta      float64
	}{
		{
			name:       "observed rate matches expected exactly",
			n:          100,
			exceptions: 5,
			confidence: 0.95,
			wantLR:     0,
			wantP:      1,
			delta:      1e-9,
		},
		{
			name:       "far too many exceptions",
			n:          250,
			exceptions: 40,
			confidence: 0.99,
			wantLR:     152.80,
			wantP:      0,
			delta:      0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lr, p := KupiecPOF(tt.n, tt.exceptions, tt.confidence)
			require.NotNil(t, lr)
			require.NotNil(t, p)
			assert.InDelta(t, tt.wantLR, *lr, tt.delta)
			assert.InDelta(t, tt.wantP, *p, 0.01)
		})
	}
}

func TestKupiecPOFExactCalibration(t *testing.T) {
	// 1-confidence and x/n can differ in the last ulp, which would push the
	// statistic fractionally negative without clamping and ChiSquared.CDF
	// rejects negative input. A perfectly calibrated model must come back
	// with LR 0 and p-value 1.
	tests := []struct {
		n          int
		exceptions int
		confidence float64
	}{
		{100, 5, 0.95},
		{200, 10, 0.95},
		{1000, 10, 0.99},
		{400, 40, 0.90},
	}

	for _, tt := range tests {
		lr, p := KupiecPOF(tt.n, tt.exceptions, tt.confidence)
		require.NotNil(t, lr)
		require.NotNil(t, p)
		assert.GreaterOrEqual(t, *lr, 0.0)
		assert.InDelta(t, 0.0, *lr, 1e-9)
		assert.InDelta(t, 1.0, *p, 1e-9)
	}
}

func TestKupiecPOFZeroExceptions(t *testing.T) {
	// Zero exceptions still yields a finite statistic via rate clamping.
	lr, p := KupiecPOF(250, 0, 0.95)
	require.NotNil(t, lr)
	require.NotNil(t, p)
	assert.Greater(t, *lr, 0.0)

	lr, p = KupiecPOF(0, 0, 0.95)
	assert.Nil(t, lr)
	assert.Nil(t, p)
}

func TestRunHistorical(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	port := normalSeries(500, 0.01, 1)

	result, err := engine.Run(port, nil, nil, Params{
		Method:       varcalc.MethodHistorical,
		Confidence:   0.95,
		Lookback:     250,
		BacktestDays: 250,
	})
	require.NoError(t, err)

	assert.Equal(t, 500, result.AvailableDays)
	assert.Len(t, result.Series.Dates, 250)
	assert.Len(t, result.Series.VaRThreshold, 250)
	assert.Len(t, result.Series.Exceptions, 250)

	// A well-specified model on its own distribution lands near the
	// expected 5% exception rate.
	assert.InDelta(t, 0.05, result.ExceptionsRate, 0.05)
	require.NotNil(t, result.KupiecLR)
	require.NotNil(t, result.KupiecPValue)
	assert.Len(t, result.ExceptionsTable, result.ExceptionsCount)

	for i, threshold := range result.Series.VaRThreshold {
		assert.LessOrEqual(t, threshold, 0.0)
		assert.Equal(t, result.Series.Realized[i] < threshold, result.Series.Exceptions[i])
	}
}

func TestRunNoLookAhead(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	base := normalSeries(400, 0.01, 3)

	// Plant a massive loss on a single backtested day.
	outlier := domain.NewSeries(base.Dates, append([]float64(nil), base.Values...))
	k := 350
	outlier.Values[k] = -0.5

	plain, err := engine.Run(base, nil, nil, Params{
		Method: varcalc.MethodHistorical, Confidence: 0.95, Lookback: 250, BacktestDays: 100,
	})
	require.NoError(t, err)
	shocked, err := engine.Run(outlier, nil, nil, Params{
		Method: varcalc.MethodHistorical, Confidence: 0.95, Lookback: 250, BacktestDays: 100,
	})
	require.NoError(t, err)

	date := base.Dates[k].Format(domain.DateFormat)
	idx := -1
	for i, d := range shocked.Series.Dates {
		if d == date {
			idx = i
		}
	}
	require.GreaterOrEqual(t, idx, 0)

	// The outlier's own day is estimated from data strictly before it, so
	// its threshold is untouched; it just registers as an exception.
	assert.Equal(t, plain.Series.VaRThreshold[idx], shocked.Series.VaRThreshold[idx])
	assert.True(t, shocked.Series.Exceptions[idx])

	// Days after the outlier see it in their windows and widen.
	assert.Less(t, shocked.Series.VaRThreshold[idx+1], plain.Series.VaRThreshold[idx+1])
}

func TestRunShortHistoryShrinksWindow(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	port := normalSeries(120, 0.01, 7)

	// Requested lookback exceeds history: the engine shrinks it and still
	// backtests the remainder.
	result, err := engine.Run(port, nil, nil, Params{
		Method:       varcalc.MethodHistorical,
		Confidence:   0.95,
		Lookback:     250,
		BacktestDays: 250,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Series.Dates)
	assert.Equal(t, 120, result.AvailableDays)
}

func TestRunMonteCarlo(t *testing.T) {
	engine := NewEngine(zerolog.Nop())

	symbols := []string{"AAA", "BBB"}
	n := 300
	frame := domain.NewFrame(testDates(n), symbols)
	a := distuv.Normal{Mu: 0, Sigma: 0.012, Src: rand.NewPCG(11, 11)}
	b := distuv.Normal{Mu: 0, Sigma: 0.02, Src: rand.NewPCG(12, 12)}
	for row := 0; row < n; row++ {
		frame.Values[row] = []float64{a.Rand(), b.Rand()}
		frame.Valid[row] = []bool{true, true}
	}
	weights := map[string]float64{"AAA": 0.6, "BBB": 0.4}

	values := make([]float64, n)
	for row := 0; row < n; row++ {
		values[row] = 0.6*frame.Values[row][0] + 0.4*frame.Values[row][1]
	}
	port := domain.NewSeries(frame.Dates, values)

	params := Params{
		Method:       varcalc.MethodMonteCarlo,
		Confidence:   0.95,
		Lookback:     200,
		BacktestDays: 50,
		MCSims:       2000,
		Seed:         42,
	}
	first, err := engine.Run(port, &frame, weights, params)
	require.NoError(t, err)
	second, err := engine.Run(port, &frame, weights, params)
	require.NoError(t, err)

	// Per-date seeds derive from the run seed, so whole runs reproduce.
	assert.Equal(t, first.Series.VaRThreshold, second.Series.VaRThreshold)
	assert.Equal(t, first.ExceptionsCount, second.ExceptionsCount)
}

func TestRunValidation(t *testing.T) {
	engine := NewEngine(zerolog.Nop())
	port := normalSeries(100, 0.01, 5)

	_, err := engine.Run(port, nil, nil, Params{Method: varcalc.MethodHistorical, Confidence: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = engine.Run(port, nil, nil, Params{Method: "bootstrap", Confidence: 0.95})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = engine.Run(port, nil, nil, Params{Method: varcalc.MethodMonteCarlo, Confidence: 0.95})
	assert.ErrorIs(t, err, domain.ErrMissingInput)

	short := normalSeries(5, 0.01, 5)
	_, err = engine.Run(short, nil, nil, Params{
		Method: varcalc.MethodHistorical, Confidence: 0.95, Lookback: 250, BacktestDays: 250,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}
