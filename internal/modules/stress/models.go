package stress

// Stress modes.
const (
	ModeReturnShock       = "return_shock"
	ModeDurationRateShock = "duration_rate_shock"
)

// Asset classes a shock can target.
const (
	AssetEquity    = "equity"
	AssetBond      = "bond"
	AssetCredit    = "credit"
	AssetCommodity = "commodity"
	AssetGrowth    = "growth"
)

// Scenario is one shock table. Per-class shocks are return fractions;
// absent classes fall back to the equity shock. BondRateBps is a rate shock
// in basis points applied through duration in duration_rate_shock mode.
type Scenario struct {
	EquityShock    *float64           `yaml:"equity_shock" json:"equity_shock,omitempty"`
	BondShock      *float64           `yaml:"bond_shock" json:"bond_shock,omitempty"`
	CreditShock    *float64           `yaml:"credit_shock" json:"credit_shock,omitempty"`
	CommodityShock *float64           `yaml:"commodity_shock" json:"commodity_shock,omitempty"`
	GrowthShock    *float64           `yaml:"growth_shock" json:"growth_shock,omitempty"`
	BondRateBps    *float64           `yaml:"bond_rate_bps" json:"bond_rate_bps,omitempty"`
	Overrides      map[string]float64 `yaml:"overrides" json:"overrides,omitempty"`
	Description    string             `yaml:"description" json:"description"`
}

// Catalog holds the scenario tables and the symbol->asset-class mapping
// loaded from the scenario file.
type Catalog struct {
	Historical  map[string]Scenario `yaml:"historical"`
	MultiFactor map[string]Scenario `yaml:"multi_factor"`
	AssetTypes  map[string]string   `yaml:"asset_types"`
}

// AssetResult is the stress outcome for a single position.
type AssetResult struct {
	Symbol         string   `json:"symbol"`
	Shock          float64  `json:"shock"`
	PnL            float64  `json:"pnl"`
	AssetType      string   `json:"asset_type,omitempty"`
	ShockType      string   `json:"shock_type,omitempty"`
	RateBpsApplied *float64 `json:"rate_bps_applied,omitempty"`
}

// Result is a full stress-test report. PnL figures are portfolio-return
// fractions (negative = loss).
type Result struct {
	ScenarioName        string        `json:"scenario_name"`
	ScenarioKey         string        `json:"scenario_key"`
	PortfolioPnL        float64       `json:"portfolio_pnl"`
	ByAsset             []AssetResult `json:"by_asset"`
	NetExposure         float64       `json:"net_exposure"`
	WeightsSum          float64       `json:"weights_sum"`
	GrossExposure       float64       `json:"gross_exposure"`
	TopLossContributors []AssetResult `json:"top_loss_contributors"`
	MissingShocks       []string      `json:"missing_shocks,omitempty"`
	Warnings            []string      `json:"warnings,omitempty"`
}

// ScenarioInfo is one catalog entry for listing endpoints.
type ScenarioInfo struct {
	Key         string `json:"key"`
	Kind        string `json:"kind"` // historical | multi_factor
	Description string `json:"description"`
}
