package varcalc

// VaR estimation methods.
const (
	MethodHistorical = "historical"
	MethodParametric = "parametric"
	MethodMonteCarlo = "monte_carlo"
)

// Parametric distributions.
const (
	DistNormal   = "normal"
	DistStudentT = "student_t"
)

// Drift handling for parametric and Monte Carlo estimation.
const (
	DriftIgnore  = "ignore"
	DriftInclude = "include"
)

// Historical-simulation weighting schemes.
const (
	WeightingNone = "none"
	WeightingEWMA = "ewma"
)

// MCSimCap is the hard upper bound on Monte Carlo draws regardless of the
// requested count.
const MCSimCap = 200_000

// HistogramBins is the bin count of realized/simulated return histograms.
const HistogramBins = 50

// HistoricalParams configures the historical (optionally EWMA-weighted)
// method.
type HistoricalParams struct {
	Weighting string  `json:"weighting"` // none | ewma
	Lambda    float64 `json:"lambda"`    // EWMA decay, (0,1)
}

// ParametricParams configures the parametric method.
type ParametricParams struct {
	Distribution string `json:"distribution"` // normal | student_t
	Drift        string `json:"drift"`        // ignore | include
}

// MonteCarloParams configures the Monte Carlo method.
type MonteCarloParams struct {
	Simulations int    `json:"simulations"`
	Seed        int64  `json:"seed"`
	Drift       string `json:"drift"`
}

// Params selects a VaR method together with its method-specific
// configuration. Exactly one of Historical/Parametric/MonteCarlo matters,
// chosen by Method; nil sub-configs fall back to defaults.
type Params struct {
	Method         string
	Confidence     float64
	Lookback       int // 0 means the full sample
	ReturnType     string
	HorizonDays    int
	PortfolioValue *float64
	RollingWindow  int
	Historical     *HistoricalParams
	Parametric     *ParametricParams
	MonteCarlo     *MonteCarloParams
}

// Histogram is a lossy summary of a return distribution: n+1 bin edges and
// n counts.
type Histogram struct {
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
}

// RollingVaR is the rolling re-estimated VaR series for the historical and
// parametric methods.
type RollingVaR struct {
	Dates     []string  `json:"dates"`
	VaRSeries []float64 `json:"var_series"`
	Realized  []float64 `json:"realized"`
}

// Contribution is the per-asset decomposition of parametric-normal VaR.
type Contribution struct {
	Symbol       string  `json:"symbol"`
	Weight       float64 `json:"weight"`
	MarginalVaR  float64 `json:"marginal_var"`
	ComponentVaR float64 `json:"component_var"`
}

// FittedParams carries the distribution parameters fitted during parametric
// estimation. Only the fields of the chosen distribution are set.
type FittedParams struct {
	Mu    *float64 `json:"mu,omitempty"`
	Sigma *float64 `json:"sigma,omitempty"`
	DF    *float64 `json:"df,omitempty"`
	Loc   *float64 `json:"loc,omitempty"`
	Scale *float64 `json:"scale,omitempty"`
}

// Metadata describes how a VaR figure was produced.
type Metadata struct {
	EffectiveN       int     `json:"effective_n"`
	HorizonDays      int     `json:"horizon_days"`
	ReturnType       string  `json:"return_type"`
	Drift            string  `json:"drift"`
	HSWeighting      string  `json:"hs_weighting"`
	HSLambda         float64 `json:"hs_lambda"`
	ParametricDist   string  `json:"parametric_dist"`
	Seed             int64   `json:"seed"`
	MCSims           int     `json:"mc_sims"`
	CovarianceMethod string  `json:"covariance_method"`
	VaRUnits         string  `json:"var_units"`
	ReturnUnits      string  `json:"return_units"`
	HorizonModel     string  `json:"horizon_model"`
	Simulations      int     `json:"simulations,omitempty"`
	FittedParams
}

// Result is a single VaR/CVaR estimate with its supporting artifacts. Built
// once per request and never mutated afterwards.
type Result struct {
	Method             string         `json:"method"`
	Confidence         float64        `json:"confidence"`
	VaR                float64        `json:"var"`
	CVaR               float64        `json:"cvar"`
	VaRAmount          *float64       `json:"var_amount"`
	CVaRAmount         *float64       `json:"cvar_amount"`
	Histogram          *Histogram     `json:"histogram"`
	HistogramRealized  *Histogram     `json:"histogram_realized"`
	HistogramSimulated *Histogram     `json:"histogram_simulated,omitempty"`
	Rolling            *RollingVaR    `json:"rolling,omitempty"`
	Returns            []float64      `json:"returns"`
	Warnings           []string       `json:"warnings"`
	Metadata           Metadata       `json:"metadata"`
	ContributionsVaR   []Contribution `json:"contributions_var,omitempty"`
}
