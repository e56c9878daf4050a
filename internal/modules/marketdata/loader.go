package marketdata

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/portfolio"
	"github.com/meridian-labs/riskd/internal/modules/returns"
)

// LoadRequest describes the price history backing one risk computation.
type LoadRequest struct {
	Start      time.Time
	End        time.Time
	ReturnType string
	PriceField string
}

// PortfolioData is a fully prepared risk-engine input: normalized positions
// restricted to symbols with usable history, their aligned return matrix and
// the weighted portfolio return series.
type PortfolioData struct {
	Positions        []portfolio.Position
	Weights          map[string]float64
	AssetReturns     domain.Frame
	PortfolioReturns domain.Series
	Failed           []string
	Warnings         []string
	Normalization    *portfolio.NormalizeResult
}

// Loader turns a raw position list into engine-ready return data. It owns
// the normalize, fetch, clean, filter, returns sequence every risk endpoint
// shares.
type Loader struct {
	portfolios *portfolio.Service
	market     *Service
	returns    *returns.Engine
	log        zerolog.Logger
}

// NewLoader creates a portfolio data loader.
func NewLoader(portfolios *portfolio.Service, market *Service, returnsEngine *returns.Engine, log zerolog.Logger) *Loader {
	return &Loader{
		portfolios: portfolios,
		market:     market,
		returns:    returnsEngine,
		log:        log.With().Str("component", "portfolio_loader").Logger(),
	}
}

// Load prepares engine inputs for the given positions and date range.
// Symbols that cannot be fetched or survive cleaning are dropped and the
// remaining weights renormalized; losing every symbol is an error.
func (l *Loader) Load(ctx context.Context, positions []portfolio.Position, req LoadRequest) (*PortfolioData, error) {
	if req.ReturnType == "" {
		req.ReturnType = domain.ReturnLog
	}
	if !req.End.After(req.Start) {
		return nil, fmt.Errorf("%w: end date must be after start date", domain.ErrInvalidParameter)
	}

	norm, err := l.portfolios.Normalize(positions)
	if err != nil {
		return nil, err
	}

	frame, failed, _, err := l.market.FetchPrices(ctx, portfolio.Symbols(norm.Positions), req.Start, req.End, req.PriceField)
	if err != nil {
		return nil, err
	}
	clean, sparse, _ := l.market.Clean(frame)

	unusable := append(append([]string{}, failed...), sparse...)
	kept, filterWarnings, err := l.portfolios.FilterFailed(norm.Positions, unusable)
	if err != nil {
		return nil, err
	}

	assetReturns, err := l.returns.ComputeReturns(clean, req.ReturnType)
	if err != nil {
		return nil, err
	}
	weights := portfolio.Weights(kept)
	portReturns := l.returns.PortfolioReturns(assetReturns, weights)
	if portReturns.Dropped().Len() == 0 {
		return nil, fmt.Errorf("%w: no overlapping return data across portfolio symbols", domain.ErrInsufficientData)
	}

	warnings := append([]string{}, filterWarnings...)
	if len(unusable) > 0 {
		warnings = append(warnings, fmt.Sprintf("Symbols excluded for missing or insufficient price data: %s.", strings.Join(unusable, ", ")))
	}
	if norm.WasNormalized {
		warnings = append(warnings, fmt.Sprintf("Input weights summed to %.6f and were normalized.", norm.SumBefore))
	}

	l.log.Info().
		Int("symbols", len(kept)).
		Int("excluded", len(unusable)).
		Int("return_days", portReturns.Dropped().Len()).
		Msg("Prepared portfolio data")

	return &PortfolioData{
		Positions:        kept,
		Weights:          weights,
		AssetReturns:     assetReturns,
		PortfolioReturns: portReturns,
		Failed:           unusable,
		Warnings:         warnings,
		Normalization:    norm,
	}, nil
}
