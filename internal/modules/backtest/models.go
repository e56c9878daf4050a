package backtest

// Params configures a VaR backtest run.
type Params struct {
	Method       string
	Confidence   float64
	Lookback     int
	BacktestDays int
	MCSims       int
	Seed         int64
}

// Series is the full per-date backtest record.
type Series struct {
	Dates        []string  `json:"dates"`
	Realized     []float64 `json:"realized"`
	VaRThreshold []float64 `json:"var_threshold"`
	Exceptions   []bool    `json:"exceptions"`
}

// ExceptionRow is one realized VaR breach.
type ExceptionRow struct {
	Date         string  `json:"date"`
	Realized     float64 `json:"realized"`
	VaRThreshold float64 `json:"var_threshold"`
}

// Result summarizes an out-of-sample VaR backtest. Built once per run and
// never mutated afterwards.
type Result struct {
	ExceptionsCount int            `json:"exceptions_count"`
	ExceptionsRate  float64        `json:"exceptions_rate"`
	KupiecLR        *float64       `json:"kupiec_lr"`
	KupiecPValue    *float64       `json:"kupiec_pvalue"`
	AvailableDays   int            `json:"available_days"`
	Series          Series         `json:"series"`
	ExceptionsTable []ExceptionRow `json:"exceptions_table"`
}
