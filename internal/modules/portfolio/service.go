package portfolio

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
)

// normalizeTolerance is how far the weight sum may drift from 1 before
// normalization kicks in.
const normalizeTolerance = 1e-6

// zeroWeightEps is the threshold under which a weight counts as zero.
const zeroWeightEps = 1e-10

// Service normalizes and filters portfolio definitions before the risk
// engines see them.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new portfolio service.
func NewService(log zerolog.Logger) *Service {
	return &Service{log: log.With().Str("component", "portfolio").Logger()}
}

// Normalize aggregates duplicate symbols (summing weights, keeping the first
// occurrence's metadata), rejects empty or all-zero portfolios and scales
// weights to sum to 1 when they don't already. Short positions (negative
// weights) are allowed.
func (s *Service) Normalize(positions []Position) (*NormalizeResult, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: portfolio cannot be empty", domain.ErrInvalidParameter)
	}

	order := make([]string, 0, len(positions))
	bySymbol := make(map[string]*Position, len(positions))
	for _, row := range positions {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		if existing, ok := bySymbol[symbol]; ok {
			existing.Weight += row.Weight
			continue
		}
		merged := row
		merged.Symbol = symbol
		bySymbol[symbol] = &merged
		order = append(order, symbol)
	}

	allZero := true
	hasShorts := false
	sumBefore := 0.0
	for _, symbol := range order {
		w := bySymbol[symbol].Weight
		if math.Abs(w) >= zeroWeightEps {
			allZero = false
		}
		if w < 0 {
			hasShorts = true
		}
		sumBefore += w
	}
	if allZero {
		return nil, fmt.Errorf("%w: all portfolio weights are zero", domain.ErrInvalidParameter)
	}
	if hasShorts {
		s.log.Info().Msg("Portfolio contains short positions")
	}

	wasNormalized := false
	if math.Abs(sumBefore-1) > normalizeTolerance {
		wasNormalized = true
		s.log.Info().Float64("sum_before", sumBefore).Msg("Normalizing portfolio weights")
		for _, symbol := range order {
			bySymbol[symbol].Weight /= sumBefore
		}
	}

	out := make([]Position, len(order))
	for i, symbol := range order {
		out[i] = *bySymbol[symbol]
	}
	return &NormalizeResult{
		Positions:     out,
		WasNormalized: wasNormalized,
		SumBefore:     sumBefore,
		HasShorts:     hasShorts,
	}, nil
}

// FilterFailed removes symbols that could not be priced and renormalizes the
// remainder. Errors out when nothing survives.
func (s *Service) FilterFailed(positions []Position, failed []string) ([]Position, []string, error) {
	if len(failed) == 0 {
		return positions, nil, nil
	}

	failedSet := make(map[string]bool, len(failed))
	for _, sym := range failed {
		failedSet[strings.ToUpper(strings.TrimSpace(sym))] = true
	}

	kept := make([]Position, 0, len(positions))
	for _, row := range positions {
		if !failedSet[strings.ToUpper(strings.TrimSpace(row.Symbol))] {
			kept = append(kept, row)
		}
	}
	if len(kept) == 0 {
		return nil, nil, fmt.Errorf("%w: all portfolio symbols failed", domain.ErrInsufficientData)
	}
	if len(kept) == len(positions) {
		return positions, nil, nil
	}

	warnings := []string{fmt.Sprintf("Removed %d failed symbols from portfolio", len(positions)-len(kept))}
	result, err := s.Normalize(kept)
	if err != nil {
		return nil, nil, err
	}
	warnings = append(warnings, "Renormalized portfolio weights after removing failed symbols")
	return result.Positions, warnings, nil
}

// Weights flattens positions into the symbol->weight map the engines take.
func Weights(positions []Position) map[string]float64 {
	out := make(map[string]float64, len(positions))
	for _, row := range positions {
		out[row.Symbol] = row.Weight
	}
	return out
}

// Symbols lists the position symbols in order.
func Symbols(positions []Position) []string {
	out := make([]string, len(positions))
	for i, row := range positions {
		out[i] = row.Symbol
	}
	return out
}
