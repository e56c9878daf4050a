package marketdata

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/database/repositories"
	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/returns"
)

// symbolSeries is one symbol's usable price series after field selection.
type symbolSeries struct {
	dates  []time.Time
	values []float64
}

// Service fetches, caches and cleans price panels for the risk engines. It
// also implements the benchmark fetch the risk-metrics engine takes.
type Service struct {
	fetcher PriceFetcher
	cache   PriceCache
	returns *returns.Engine
	opts    Options
	log     zerolog.Logger
}

// NewService creates a new market data service. cache may be nil, which
// disables caching.
func NewService(fetcher PriceFetcher, cache PriceCache, returnsEngine *returns.Engine, opts Options, log zerolog.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		cache:   cache,
		returns: returnsEngine,
		opts:    opts,
		log:     log.With().Str("component", "marketdata").Logger(),
	}
}

// FetchPrices fetches daily prices for the symbols over [start, end] and
// aligns them on the union of trading dates. Symbols that fail or return no
// data end up in the failed list instead of failing the whole fetch.
// priceField "Close" forces raw closes; anything else prefers adjusted
// closes with a fall back to closes for symbols that carry none.
func (s *Service) FetchPrices(ctx context.Context, symbols []string, start, end time.Time, priceField string) (domain.Frame, []string, []MissingReportItem, error) {
	normalized := normalizeSymbols(symbols)
	if len(normalized) == 0 {
		return domain.Frame{}, nil, nil, fmt.Errorf("%w: no symbols to fetch", domain.ErrMissingInput)
	}

	s.log.Info().
		Int("symbols", len(normalized)).
		Str("start", start.Format(domain.DateFormat)).
		Str("end", end.Format(domain.DateFormat)).
		Msg("Fetching prices")

	series := make(map[string]symbolSeries, len(normalized))
	var failed []string
	for _, symbol := range normalized {
		cached, err := s.fetchSymbol(ctx, symbol, start, end)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch symbol")
			failed = append(failed, symbol)
			continue
		}
		resolved, ok := selectPriceField(cached, priceField)
		if !ok {
			s.log.Warn().Str("symbol", symbol).Msg("No usable price data for symbol")
			failed = append(failed, symbol)
			continue
		}
		series[symbol] = resolved
	}

	if len(series) == 0 {
		return domain.Frame{}, normalized, nil, nil
	}

	frame := alignSeries(normalized, series)
	return frame, failed, missingReport(frame), nil
}

// Clean forward-fills small gaps, drops symbols with too few observations
// and removes all-missing rows. Returns the cleaned frame, the symbols that
// were dropped and the post-cleaning missing report.
func (s *Service) Clean(frame domain.Frame) (domain.Frame, []string, []MissingReportItem) {
	if frame.IsEmpty() {
		return frame, nil, nil
	}

	cleaned := copyFrame(frame)
	for col := range cleaned.Symbols {
		forwardFillColumn(&cleaned, col, s.opts.MaxFillGap)
	}

	var dropped []string
	for col, symbol := range cleaned.Symbols {
		if valid := validCount(cleaned, col); valid < s.opts.MinObs {
			dropped = append(dropped, symbol)
			s.log.Warn().
				Str("symbol", symbol).
				Int("valid_obs", valid).
				Int("min_obs", s.opts.MinObs).
				Msg("Removing symbol with insufficient data")
		}
	}
	if len(dropped) > 0 {
		cleaned = cleaned.DropColumns(dropped)
	}
	cleaned = cleaned.DropAllMissingRows()

	s.log.Info().
		Int("rows", cleaned.Rows()).
		Int("symbols", cleaned.Cols()).
		Msg("Cleaned price data")
	return cleaned, dropped, missingReport(cleaned)
}

// FetchBenchmarkReturns fetches a benchmark symbol and converts it into a
// clean return series. Implements the risk-metrics engine's fetcher.
func (s *Service) FetchBenchmarkReturns(ctx context.Context, symbol string, start, end time.Time, returnType string) (domain.Series, error) {
	frame, failed, _, err := s.FetchPrices(ctx, []string{symbol}, start, end, "")
	if err != nil {
		return domain.Series{}, err
	}
	if len(failed) > 0 || frame.IsEmpty() {
		return domain.Series{}, fmt.Errorf("%w: no price data for benchmark %s", domain.ErrInsufficientData, symbol)
	}
	clean, _, _ := s.Clean(frame)

	returnsFrame, err := s.returns.ComputeReturns(clean, returnType)
	if err != nil {
		return domain.Series{}, err
	}
	series, ok := returnsFrame.Column(strings.ToUpper(strings.TrimSpace(symbol)))
	if !ok {
		return domain.Series{}, fmt.Errorf("%w: no return data for benchmark %s", domain.ErrInsufficientData, symbol)
	}
	return series.Dropped(), nil
}

// fetchSymbol serves one symbol's series from the cache or the upstream
// API. Cache failures degrade to a fetch, never to a request failure.
func (s *Service) fetchSymbol(ctx context.Context, symbol string, start, end time.Time) (*repositories.CachedPrices, error) {
	startKey := start.Format(domain.DateFormat)
	endKey := end.Format(domain.DateFormat)

	if s.cache != nil {
		cached, err := s.cache.Get(symbol, startKey, endKey, s.opts.CacheTTL)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Price cache read failed")
		} else if cached != nil {
			s.log.Debug().Str("symbol", symbol).Msg("Price cache hit")
			return cached, nil
		}
	}

	prices, err := s.fetcher.FetchDailyCloses(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: no price data returned for %s", domain.ErrInsufficientData, symbol)
	}

	cached := &repositories.CachedPrices{
		Symbol:    symbol,
		Dates:     make([]string, len(prices)),
		Closes:    make([]float64, len(prices)),
		AdjCloses: make([]*float64, len(prices)),
	}
	for i, p := range prices {
		cached.Dates[i] = p.Date.Format(domain.DateFormat)
		cached.Closes[i] = p.Close
		cached.AdjCloses[i] = p.AdjClose
	}

	if s.cache != nil {
		if err := s.cache.Put(cached, startKey, endKey); err != nil {
			s.log.Warn().Err(err).Str("symbol", symbol).Msg("Price cache write failed")
		}
	}
	return cached, nil
}

// selectPriceField picks adjusted closes when requested and available,
// matching the upstream convention: a symbol with no adjusted closes at all
// falls back to raw closes. The bool is false when nothing usable remains.
func selectPriceField(cached *repositories.CachedPrices, priceField string) (symbolSeries, bool) {
	n := len(cached.Dates)
	if n == 0 {
		return symbolSeries{}, false
	}

	useAdj := priceField != PriceFieldClose && hasAny(cached.AdjCloses)
	out := symbolSeries{
		dates:  make([]time.Time, 0, n),
		values: make([]float64, 0, n),
	}
	for i := 0; i < n; i++ {
		var value float64
		if useAdj {
			if cached.AdjCloses[i] == nil {
				continue
			}
			value = *cached.AdjCloses[i]
		} else {
			value = cached.Closes[i]
		}
		date, err := time.Parse(domain.DateFormat, cached.Dates[i])
		if err != nil {
			continue
		}
		out.dates = append(out.dates, date)
		out.values = append(out.values, value)
	}
	if len(out.dates) == 0 {
		return symbolSeries{}, false
	}
	return out, true
}

// alignSeries builds a frame over the sorted union of all trading dates.
func alignSeries(order []string, series map[string]symbolSeries) domain.Frame {
	dateSet := make(map[time.Time]bool)
	for _, s := range series {
		for _, d := range s.dates {
			dateSet[d] = true
		}
	}
	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	symbols := make([]string, 0, len(series))
	for _, symbol := range order {
		if _, ok := series[symbol]; ok {
			symbols = append(symbols, symbol)
		}
	}

	frame := domain.NewFrame(dates, symbols)
	dateIndex := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		dateIndex[d] = i
	}
	for col, symbol := range symbols {
		s := series[symbol]
		for i, d := range s.dates {
			row := dateIndex[d]
			frame.Values[row][col] = s.values[i]
			frame.Valid[row][col] = true
		}
	}
	return frame
}

func hasAny(values []*float64) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		symbol := strings.ToUpper(strings.TrimSpace(s))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	return out
}

func copyFrame(f domain.Frame) domain.Frame {
	out := domain.NewFrame(f.Dates, f.Symbols)
	for row := range f.Dates {
		copy(out.Values[row], f.Values[row])
		copy(out.Valid[row], f.Valid[row])
	}
	return out
}
