package returns

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
)

// Engine converts price panels into return series and aggregates returns to
// multi-day horizons.
type Engine struct {
	log zerolog.Logger
}

// NewEngine creates a new returns engine.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "returns").Logger()}
}

// ComputeReturns converts aligned prices into 1-period returns. The first row
// is always undefined and dropped. A return is missing wherever either price
// of the pair is missing, the base price is zero, or (for log returns) the
// ratio is non-positive. Fewer than 2 rows produce an empty frame, not an
// error.
func (e *Engine) ComputeReturns(prices domain.Frame, returnType string) (domain.Frame, error) {
	if returnType != domain.ReturnSimple && returnType != domain.ReturnLog {
		return domain.Frame{}, fmt.Errorf("%w: unknown return type %q", domain.ErrInvalidParameter, returnType)
	}
	if prices.Rows() < 2 {
		return domain.NewFrame(nil, prices.Symbols), nil
	}

	out := domain.NewFrame(prices.Dates[1:], prices.Symbols)
	for row := 1; row < prices.Rows(); row++ {
		for col := range prices.Symbols {
			if !prices.Valid[row][col] || !prices.Valid[row-1][col] {
				continue
			}
			prev := prices.Values[row-1][col]
			cur := prices.Values[row][col]
			if prev == 0 {
				continue
			}
			ratio := cur / prev
			if returnType == domain.ReturnLog {
				if ratio <= 0 {
					continue
				}
				out.Values[row-1][col] = math.Log(ratio)
			} else {
				out.Values[row-1][col] = ratio - 1
			}
			out.Valid[row-1][col] = true
		}
	}

	e.log.Debug().
		Str("return_type", returnType).
		Int("observations", out.Rows()).
		Msg("Computed returns")
	return out, nil
}

// PortfolioReturns combines asset returns into a single weighted series.
// Symbols without a weight entry contribute zero exposure. A row is missing
// whenever any asset return in that row is missing, so incomplete alignment
// surfaces instead of silently shrinking the portfolio.
func (e *Engine) PortfolioReturns(assetReturns domain.Frame, weights map[string]float64) domain.Series {
	if assetReturns.IsEmpty() {
		return domain.Series{}
	}

	wv := assetReturns.WeightVector(weights)
	values := make([]float64, assetReturns.Rows())
	valid := make([]bool, assetReturns.Rows())
	missing := 0
	for row := range assetReturns.Dates {
		sum := 0.0
		ok := true
		for col := range assetReturns.Symbols {
			if !assetReturns.Valid[row][col] {
				ok = false
				break
			}
			sum += wv[col] * assetReturns.Values[row][col]
		}
		if ok {
			values[row] = sum
			valid[row] = true
		} else {
			missing++
		}
	}

	if missing > 0 {
		e.log.Warn().
			Int("missing", missing).
			Float64("missing_pct", 100*float64(missing)/float64(assetReturns.Rows())).
			Msg("Portfolio returns contain missing rows")
	}
	return domain.NewSeriesWithMask(assetReturns.Dates, values, valid)
}

// AggregateToHorizon aggregates 1-period returns into horizon-day returns
// over contiguous windows. Log returns are summed; simple returns are
// compounded (prod(1+r) - 1). Partial windows are dropped, not padded, and
// missing rows are removed before windowing. Horizon <= 1 is the identity
// after dropping missing rows.
func (e *Engine) AggregateToHorizon(s domain.Series, returnType string, horizonDays int) domain.Series {
	clean := s.Dropped()
	if horizonDays <= 1 {
		return clean
	}
	n := clean.Len()
	if n < horizonDays {
		return domain.Series{}
	}

	outN := n - horizonDays + 1
	dates := make([]time.Time, outN)
	values := make([]float64, outN)
	for i := 0; i < outN; i++ {
		dates[i] = clean.Dates[i+horizonDays-1]
		if returnType == domain.ReturnLog {
			sum := 0.0
			for j := 0; j < horizonDays; j++ {
				sum += clean.Values[i+j]
			}
			values[i] = sum
		} else {
			growth := 1.0
			for j := 0; j < horizonDays; j++ {
				growth *= 1 + clean.Values[i+j]
			}
			values[i] = growth - 1
		}
	}
	return domain.NewSeries(dates, values)
}
