package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CachedPrices is one cached per-symbol price series, keyed by the exact
// requested date range.
type CachedPrices struct {
	Symbol    string     `json:"symbol"`
	Dates     []string   `json:"dates"` // YYYY-MM-DD
	Closes    []float64  `json:"closes"`
	AdjCloses []*float64 `json:"adj_closes"` // nil where Yahoo had no adjusted close
}

// PriceCacheRepository persists fetched price series so repeated requests
// for the same symbol/range skip the upstream API.
type PriceCacheRepository struct {
	*BaseRepository
}

// NewPriceCacheRepository creates a new price cache repository
func NewPriceCacheRepository(db *sql.DB, log zerolog.Logger) *PriceCacheRepository {
	return &PriceCacheRepository{
		BaseRepository: NewBase(db, log.With().Str("repo", "price_cache").Logger()),
	}
}

// Get returns the cached series for a symbol/range, or nil on a miss.
// Entries older than ttl count as misses.
func (r *PriceCacheRepository) Get(symbol, start, end string, ttl time.Duration) (*CachedPrices, error) {
	var payload string
	var fetchedAt int64
	err := r.db.QueryRow(
		`SELECT payload, fetched_at FROM price_cache WHERE symbol = ? AND start_date = ? AND end_date = ?`,
		symbol, start, end,
	).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query price cache: %w", err)
	}

	if ttl > 0 && time.Since(time.Unix(fetchedAt, 0)) > ttl {
		r.log.Debug().Str("symbol", symbol).Msg("Price cache entry expired")
		return nil, nil
	}

	var cached CachedPrices
	if err := json.Unmarshal([]byte(payload), &cached); err != nil {
		return nil, fmt.Errorf("failed to decode price cache payload: %w", err)
	}
	return &cached, nil
}

// Put stores a fetched series, replacing any previous entry for the same
// symbol/range.
func (r *PriceCacheRepository) Put(prices *CachedPrices, start, end string) error {
	payload, err := json.Marshal(prices)
	if err != nil {
		return fmt.Errorf("failed to encode price cache payload: %w", err)
	}
	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO price_cache (symbol, start_date, end_date, fetched_at, payload) VALUES (?, ?, ?, ?, ?)`,
		prices.Symbol, start, end, time.Now().Unix(), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to write price cache: %w", err)
	}
	return nil
}

// Prune deletes entries older than ttl and returns how many were removed.
func (r *PriceCacheRepository) Prune(ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).Unix()
	result, err := r.db.Exec(`DELETE FROM price_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune price cache: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned price cache rows: %w", err)
	}
	if removed > 0 {
		r.log.Info().Int64("removed", removed).Msg("Pruned expired price cache entries")
	}
	return removed, nil
}
