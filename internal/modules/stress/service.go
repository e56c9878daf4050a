package stress

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/portfolio"
)

// equityPrefix marks ad-hoc uniform scenarios: EQUITY_-10 shocks every
// position by -10%.
const equityPrefix = "EQUITY_"

// customScenario is the key for user-supplied per-symbol shocks.
const customScenario = "CUSTOM"

// topContributors is how many worst positions the report surfaces.
const topContributors = 5

// Service applies scenario shock tables to a portfolio. The model is linear:
// position P&L is weight x shock, with an optional duration pass that turns
// rate shocks into bond return shocks.
type Service struct {
	catalog *Catalog
	log     zerolog.Logger
}

// NewService creates a new stress-testing service around a scenario catalog.
func NewService(catalog *Catalog, log zerolog.Logger) *Service {
	return &Service{
		catalog: catalog,
		log:     log.With().Str("component", "stress").Logger(),
	}
}

// Scenarios lists the available catalog scenarios.
func (s *Service) Scenarios() []ScenarioInfo {
	return s.catalog.List()
}

// Run applies a scenario to the portfolio. In duration_rate_shock mode,
// bond positions with a rate-shocked scenario are repriced through modified
// duration (or a duration implied from DV01); bonds without duration data
// fall back to the flat return shock with a warning, since that fallback is
// an approximation rather than a repricing.
func (s *Service) Run(positions []portfolio.Position, scenario string, shocks map[string]float64, mode string) (*Result, error) {
	if mode == "" {
		mode = ModeReturnShock
	}
	if mode != ModeReturnShock && mode != ModeDurationRateShock {
		return nil, fmt.Errorf("%w: unknown stress mode %q", domain.ErrInvalidParameter, mode)
	}
	if len(positions) == 0 {
		return nil, fmt.Errorf("%w: portfolio cannot be empty", domain.ErrInvalidParameter)
	}

	resolved, err := s.resolveScenario(scenario, positions, shocks)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("scenario", scenario).Str("mode", mode).Msg("Running stress test")

	result := &Result{
		ScenarioName:  resolved.name,
		ScenarioKey:   resolved.key,
		MissingShocks: resolved.missing,
	}
	for _, row := range positions {
		symbol := strings.ToUpper(strings.TrimSpace(row.Symbol))
		result.NetExposure += row.Weight
		result.GrossExposure += math.Abs(row.Weight)

		assetType := s.assetType(symbol, row.AssetType)
		shock, shockType, rateBps := s.shockFor(resolved, symbol, assetType, mode, row, &result.Warnings)

		asset := AssetResult{
			Symbol: symbol,
			Shock:  shock,
			PnL:    row.Weight * shock,
		}
		if mode == ModeDurationRateShock || assetType != AssetEquity {
			asset.AssetType = assetType
		}
		asset.ShockType = shockType
		asset.RateBpsApplied = rateBps

		result.PortfolioPnL += asset.PnL
		result.ByAsset = append(result.ByAsset, asset)
	}
	result.WeightsSum = result.NetExposure

	worst := append([]AssetResult(nil), result.ByAsset...)
	sort.SliceStable(worst, func(i, j int) bool { return worst[i].PnL < worst[j].PnL })
	if len(worst) > topContributors {
		worst = worst[:topContributors]
	}
	result.TopLossContributors = worst

	s.log.Info().Float64("portfolio_pnl", result.PortfolioPnL).Msg("Stress test complete")
	return result, nil
}

// resolvedScenario is a scenario after name validation.
type resolvedScenario struct {
	key     string
	name    string
	uniform *float64           // EQUITY_* shock
	table   *Scenario          // historical or multi-factor entry
	custom  map[string]float64 // CUSTOM shocks, upper-cased keys
	missing []string
}

func (s *Service) resolveScenario(scenario string, positions []portfolio.Position, shocks map[string]float64) (*resolvedScenario, error) {
	if strings.HasPrefix(scenario, equityPrefix) {
		pct, err := strconv.ParseFloat(strings.TrimPrefix(scenario, equityPrefix), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid equity scenario %q", domain.ErrInvalidParameter, scenario)
		}
		shock := pct / 100
		return &resolvedScenario{key: scenario, name: scenario, uniform: &shock}, nil
	}

	if table, ok := s.catalog.Historical[scenario]; ok {
		return &resolvedScenario{key: scenario, name: scenario, table: &table}, nil
	}
	if table, ok := s.catalog.MultiFactor[scenario]; ok {
		name := fmt.Sprintf("%s (%s)", scenario, table.Description)
		return &resolvedScenario{key: scenario, name: name, table: &table}, nil
	}

	if scenario == customScenario {
		if len(shocks) == 0 {
			return nil, fmt.Errorf("%w: CUSTOM scenario requires a shocks map", domain.ErrMissingInput)
		}
		normalized := make(map[string]float64, len(shocks))
		for sym, shock := range shocks {
			normalized[strings.ToUpper(strings.TrimSpace(sym))] = shock
		}
		var missing []string
		for _, row := range positions {
			sym := strings.ToUpper(strings.TrimSpace(row.Symbol))
			if _, ok := normalized[sym]; !ok {
				missing = append(missing, sym)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: CUSTOM scenario missing shocks for: %s",
				domain.ErrMissingInput, strings.Join(missing, ", "))
		}
		return &resolvedScenario{key: customScenario, name: "Custom Scenario", custom: normalized}, nil
	}

	return nil, fmt.Errorf("%w: unknown scenario %q", domain.ErrInvalidParameter, scenario)
}

// assetType classifies a position: explicit row label first, then the
// catalog's symbol table, then equity.
func (s *Service) assetType(symbol, hint string) string {
	switch strings.ToLower(hint) {
	case AssetBond, "fixed_income", "treasury":
		return AssetBond
	case AssetCommodity:
		return AssetCommodity
	case AssetCredit:
		return AssetCredit
	case AssetGrowth:
		return AssetGrowth
	}
	if mapped, ok := s.catalog.AssetTypes[symbol]; ok {
		return mapped
	}
	return AssetEquity
}

func (s *Service) shockFor(
	resolved *resolvedScenario,
	symbol, assetType, mode string,
	row portfolio.Position,
	warnings *[]string,
) (float64, string, *float64) {
	if resolved.custom != nil {
		return resolved.custom[symbol], "return", nil
	}
	if resolved.uniform != nil {
		return *resolved.uniform, "return", nil
	}

	table := *resolved.table
	if override, ok := table.Overrides[symbol]; ok {
		return override, "return", nil
	}

	if assetType == AssetBond && mode == ModeDurationRateShock && table.BondRateBps != nil {
		shock, ok := bondReturnFromRateShock(*table.BondRateBps, row)
		if ok {
			bps := *table.BondRateBps
			return shock, "rate_bps", &bps
		}
		*warnings = append(*warnings, fmt.Sprintf(
			"%s: no duration or DV01 available; applied flat return shock instead of rate repricing", symbol))
	}

	return table.shockForClass(assetType), "return", nil
}

// bondReturnFromRateShock converts a rate shock in basis points into an
// approximate return via modified duration: dP/P = -D * dy. When only DV01
// is known, duration is implied as DV01 * 100 / price (DV01 per $100 face).
// The second return is false when no duration information exists.
func bondReturnFromRateShock(rateBps float64, row portfolio.Position) (float64, bool) {
	deltaYield := rateBps / 10_000

	if row.Duration != nil && *row.Duration > 0 {
		return -*row.Duration * deltaYield, true
	}
	if row.DV01 != nil && row.Price != nil && *row.Price > 0 {
		impliedDuration := *row.DV01 * 100 / *row.Price
		return -impliedDuration * deltaYield, true
	}
	return 0, false
}
