package marketdata

import (
	"context"
	"time"

	"github.com/meridian-labs/riskd/internal/clients/yahoo"
	"github.com/meridian-labs/riskd/internal/database/repositories"
)

// PriceFieldClose forces raw closes instead of adjusted closes.
const PriceFieldClose = "Close"

// MissingReportItem describes data quality for one symbol's series.
type MissingReportItem struct {
	Symbol     string  `json:"symbol"`
	MissingPct float64 `json:"missing_pct"`
	LongestGap int     `json:"longest_gap"`
}

// PriceFetcher fetches daily prices for one symbol. Satisfied by the Yahoo
// client; tests inject fakes.
type PriceFetcher interface {
	FetchDailyCloses(ctx context.Context, symbol string, start, end time.Time) ([]yahoo.DailyPrice, error)
}

// PriceCache persists fetched series between requests. Satisfied by
// repositories.PriceCacheRepository; nil disables caching.
type PriceCache interface {
	Get(symbol, start, end string, ttl time.Duration) (*repositories.CachedPrices, error)
	Put(prices *repositories.CachedPrices, start, end string) error
}

// Options tunes fetching and cleaning.
type Options struct {
	CacheTTL   time.Duration
	MinObs     int // minimum valid observations per symbol after cleaning
	MaxFillGap int // longest gap (trading days) forward-fill may bridge
}
