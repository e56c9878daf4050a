package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/riskd/internal/clients/yahoo"
	"github.com/meridian-labs/riskd/internal/database/repositories"
	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/returns"
)

type fakeFetcher struct {
	prices map[string][]yahoo.DailyPrice
	errs   map[string]error
	calls  map[string]int
}

func (f *fakeFetcher) FetchDailyCloses(_ context.Context, symbol string, _, _ time.Time) ([]yahoo.DailyPrice, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[symbol]++
	if err, ok := f.errs[symbol]; ok {
		return nil, err
	}
	return f.prices[symbol], nil
}

type fakeCache struct {
	entries map[string]*repositories.CachedPrices
	puts    int
}

func cacheKey(symbol, start, end string) string { return symbol + "|" + start + "|" + end }

func (c *fakeCache) Get(symbol, start, end string, _ time.Duration) (*repositories.CachedPrices, error) {
	return c.entries[cacheKey(symbol, start, end)], nil
}

func (c *fakeCache) Put(prices *repositories.CachedPrices, start, end string) error {
	if c.entries == nil {
		c.entries = make(map[string]*repositories.CachedPrices)
	}
	c.entries[cacheKey(prices.Symbol, start, end)] = prices
	c.puts++
	return nil
}

func testDay(offset int) time.Time {
	return time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
}

func dailyPrices(closes []float64, adjCloses []*float64) []yahoo.DailyPrice {
	out := make([]yahoo.DailyPrice, len(closes))
	for i, c := range closes {
		out[i] = yahoo.DailyPrice{Date: testDay(i), Close: c}
		if adjCloses != nil {
			out[i].AdjClose = adjCloses[i]
		}
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func newTestService(fetcher PriceFetcher, cache PriceCache, opts Options) *Service {
	log := zerolog.Nop()
	return NewService(fetcher, cache, returns.NewEngine(log), opts, log)
}

func defaultOpts() Options {
	return Options{CacheTTL: time.Hour, MinObs: 3, MaxFillGap: 2}
}

func TestFetchPricesAlignsOnDateUnion(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string][]yahoo.DailyPrice{
		"AAA": {
			{Date: testDay(0), Close: 100},
			{Date: testDay(1), Close: 101},
			{Date: testDay(2), Close: 102},
		},
		"BBB": {
			{Date: testDay(1), Close: 50},
			{Date: testDay(2), Close: 51},
			{Date: testDay(3), Close: 52},
		},
	}}
	svc := newTestService(fetcher, nil, defaultOpts())

	frame, failed, report, err := svc.FetchPrices(context.Background(), []string{"aaa", "BBB", "AAA"}, testDay(0), testDay(3), "")
	require.NoError(t, err)
	assert.Empty(t, failed)

	assert.Equal(t, []string{"AAA", "BBB"}, frame.Symbols)
	require.Equal(t, 4, frame.Rows())
	assert.Equal(t, testDay(0), frame.Dates[0])
	assert.Equal(t, testDay(3), frame.Dates[3])

	// AAA has no day 3, BBB has no day 0.
	assert.True(t, frame.Valid[0][0])
	assert.False(t, frame.Valid[0][1])
	assert.False(t, frame.Valid[3][0])
	assert.True(t, frame.Valid[3][1])
	assert.InDelta(t, 101.0, frame.Values[1][0], 1e-12)
	assert.InDelta(t, 50.0, frame.Values[1][1], 1e-12)

	require.Len(t, report, 2)
	assert.InDelta(t, 0.25, report[0].MissingPct, 1e-12)
	assert.Equal(t, 1, report[0].LongestGap)
}

func TestFetchPricesAdjustedCloseFallback(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string][]yahoo.DailyPrice{
		// ADJ carries adjusted closes, RAW carries none.
		"ADJ": dailyPrices([]float64{100, 101, 102}, []*float64{ptr(99), ptr(100), ptr(101)}),
		"RAW": dailyPrices([]float64{50, 51, 52}, nil),
	}}
	svc := newTestService(fetcher, nil, defaultOpts())

	frame, failed, _, err := svc.FetchPrices(context.Background(), []string{"ADJ", "RAW"}, testDay(0), testDay(2), "")
	require.NoError(t, err)
	assert.Empty(t, failed)
	assert.InDelta(t, 99.0, frame.Values[0][0], 1e-12)
	assert.InDelta(t, 50.0, frame.Values[0][1], 1e-12)

	frame, _, _, err = svc.FetchPrices(context.Background(), []string{"ADJ"}, testDay(0), testDay(2), PriceFieldClose)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, frame.Values[0][0], 1e-12)
}

func TestFetchPricesPartialFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		prices: map[string][]yahoo.DailyPrice{
			"GOOD": dailyPrices([]float64{100, 101}, nil),
		},
		errs: map[string]error{"BAD": errors.New("upstream 404")},
	}
	svc := newTestService(fetcher, nil, defaultOpts())

	frame, failed, _, err := svc.FetchPrices(context.Background(), []string{"GOOD", "BAD"}, testDay(0), testDay(1), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"BAD"}, failed)
	assert.Equal(t, []string{"GOOD"}, frame.Symbols)
}

func TestFetchPricesAllFailed(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"BAD": errors.New("upstream 404")}}
	svc := newTestService(fetcher, nil, defaultOpts())

	frame, failed, _, err := svc.FetchPrices(context.Background(), []string{"BAD"}, testDay(0), testDay(1), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"BAD"}, failed)
	assert.True(t, frame.IsEmpty())
}

func TestFetchPricesNoSymbols(t *testing.T) {
	svc := newTestService(&fakeFetcher{}, nil, defaultOpts())

	_, _, _, err := svc.FetchPrices(context.Background(), []string{" ", ""}, testDay(0), testDay(1), "")
	assert.ErrorIs(t, err, domain.ErrMissingInput)
}

func TestFetchPricesUsesCache(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string][]yahoo.DailyPrice{
		"AAA": dailyPrices([]float64{100, 101}, nil),
	}}
	cache := &fakeCache{}
	svc := newTestService(fetcher, cache, defaultOpts())

	_, _, _, err := svc.FetchPrices(context.Background(), []string{"AAA"}, testDay(0), testDay(1), "")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls["AAA"])
	assert.Equal(t, 1, cache.puts)

	_, _, _, err = svc.FetchPrices(context.Background(), []string{"AAA"}, testDay(0), testDay(1), "")
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls["AAA"], "second fetch should be served from cache")
}

func TestCleanForwardFillsSmallGaps(t *testing.T) {
	dates := []time.Time{testDay(0), testDay(1), testDay(2), testDay(3), testDay(4), testDay(5)}
	frame := domain.NewFrame(dates, []string{"AAA"})
	values := []float64{100, 0, 0, 103, 0, 105}
	valid := []bool{true, false, false, true, false, true}
	for i := range dates {
		frame.Values[i][0] = values[i]
		frame.Valid[i][0] = valid[i]
	}
	svc := newTestService(&fakeFetcher{}, nil, Options{MinObs: 3, MaxFillGap: 2})

	cleaned, dropped, report := svc.Clean(frame)
	assert.Empty(t, dropped)
	require.Equal(t, 6, cleaned.Rows())

	// Gaps of one and two get filled from the previous observation.
	assert.True(t, cleaned.Valid[1][0])
	assert.InDelta(t, 100.0, cleaned.Values[1][0], 1e-12)
	assert.True(t, cleaned.Valid[2][0])
	assert.InDelta(t, 100.0, cleaned.Values[2][0], 1e-12)
	assert.True(t, cleaned.Valid[4][0])
	assert.InDelta(t, 103.0, cleaned.Values[4][0], 1e-12)

	require.Len(t, report, 1)
	assert.InDelta(t, 0.0, report[0].MissingPct, 1e-12)

	// The input frame is untouched.
	assert.False(t, frame.Valid[1][0])
}

func TestCleanLeavesLargeGapsAndLeadingRuns(t *testing.T) {
	dates := []time.Time{testDay(0), testDay(1), testDay(2), testDay(3), testDay(4), testDay(5)}
	frame := domain.NewFrame(dates, []string{"AAA", "BBB"})
	for i := range dates {
		frame.Values[i][1] = 50 + float64(i)
		frame.Valid[i][1] = true
	}
	// AAA starts missing and then has a three-day gap.
	frame.Values[1][0] = 100
	frame.Valid[1][0] = true
	frame.Values[5][0] = 105
	frame.Valid[5][0] = true

	svc := newTestService(&fakeFetcher{}, nil, Options{MinObs: 2, MaxFillGap: 2})
	cleaned, dropped, _ := svc.Clean(frame)
	assert.Empty(t, dropped)

	assert.False(t, cleaned.Valid[0][0], "leading gap must not be filled")
	assert.False(t, cleaned.Valid[2][0], "gap longer than max fill must stay missing")
	assert.False(t, cleaned.Valid[4][0])
}

func TestCleanDropsSparseSymbols(t *testing.T) {
	dates := []time.Time{testDay(0), testDay(1), testDay(2), testDay(3)}
	frame := domain.NewFrame(dates, []string{"FULL", "SPARSE"})
	for i := range dates {
		frame.Values[i][0] = 100 + float64(i)
		frame.Valid[i][0] = true
	}
	frame.Values[0][1] = 50
	frame.Valid[0][1] = true

	svc := newTestService(&fakeFetcher{}, nil, Options{MinObs: 3, MaxFillGap: 0})
	cleaned, dropped, report := svc.Clean(frame)

	assert.Equal(t, []string{"SPARSE"}, dropped)
	assert.Equal(t, []string{"FULL"}, cleaned.Symbols)
	require.Len(t, report, 1)
	assert.Equal(t, "FULL", report[0].Symbol)
}

func TestCleanEmptyFrame(t *testing.T) {
	svc := newTestService(&fakeFetcher{}, nil, defaultOpts())
	cleaned, dropped, report := svc.Clean(domain.Frame{})
	assert.True(t, cleaned.IsEmpty())
	assert.Empty(t, dropped)
	assert.Empty(t, report)
}

func TestFetchBenchmarkReturns(t *testing.T) {
	fetcher := &fakeFetcher{prices: map[string][]yahoo.DailyPrice{
		"SPY": dailyPrices([]float64{100, 101, 102, 103, 104}, nil),
	}}
	svc := newTestService(fetcher, nil, Options{MinObs: 3, MaxFillGap: 2})

	series, err := svc.FetchBenchmarkReturns(context.Background(), "spy", testDay(0), testDay(4), domain.ReturnSimple)
	require.NoError(t, err)
	require.Equal(t, 4, series.Len())
	assert.InDelta(t, 0.01, series.Values[0], 1e-12)
	assert.InDelta(t, 102.0/101.0-1.0, series.Values[1], 1e-12)
}

func TestFetchBenchmarkReturnsFailure(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{"SPY": errors.New("upstream down")}}
	svc := newTestService(fetcher, nil, defaultOpts())

	_, err := svc.FetchBenchmarkReturns(context.Background(), "SPY", testDay(0), testDay(4), domain.ReturnSimple)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestMissingReportLongestGap(t *testing.T) {
	dates := []time.Time{testDay(0), testDay(1), testDay(2), testDay(3), testDay(4)}
	frame := domain.NewFrame(dates, []string{"AAA"})
	frame.Values[0][0] = 100
	frame.Valid[0][0] = true
	frame.Values[4][0] = 104
	frame.Valid[4][0] = true

	report := missingReport(frame)
	require.Len(t, report, 1)
	assert.InDelta(t, 0.6, report[0].MissingPct, 1e-12)
	assert.Equal(t, 3, report[0].LongestGap)
}
