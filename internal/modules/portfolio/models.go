package portfolio

// Position is one portfolio row: a symbol with its weight and optional
// presentation/pricing metadata.
type Position struct {
	Symbol      string  `json:"symbol"`
	Weight      float64 `json:"weight"`
	AssetType   string  `json:"asset_type,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	PriceField  string  `json:"price_field,omitempty"`

	// Optional fields for duration-based stress testing.
	Duration *float64 `json:"duration,omitempty"` // modified duration (years)
	DV01     *float64 `json:"dv01,omitempty"`     // dollar value of 1bp per $100 face
	Currency string   `json:"currency,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Quantity *float64 `json:"quantity,omitempty"`
}

// NormalizeResult reports what normalization did to the input weights.
type NormalizeResult struct {
	Positions     []Position `json:"positions"`
	WasNormalized bool       `json:"was_normalized"`
	SumBefore     float64    `json:"sum_before"`
	HasShorts     bool       `json:"has_shorts"`
}
