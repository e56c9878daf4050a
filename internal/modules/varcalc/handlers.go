package varcalc

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/marketdata"
	"github.com/meridian-labs/riskd/internal/modules/portfolio"
)

// HandlerDefaults are the request defaults the server injects from config.
type HandlerDefaults struct {
	Seed        int64
	Simulations int
}

// Handler handles HTTP requests for the VaR module.
type Handler struct {
	engine   *Engine
	loader   *marketdata.Loader
	defaults HandlerDefaults
	log      zerolog.Logger
}

// NewHandler creates a new VaR handler.
func NewHandler(engine *Engine, loader *marketdata.Loader, defaults HandlerDefaults, log zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		loader:   loader,
		defaults: defaults,
		log:      log.With().Str("component", "var_handler").Logger(),
	}
}

type varRequest struct {
	Portfolio      []portfolio.Position `json:"portfolio"`
	StartDate      string               `json:"start_date"`
	EndDate        string               `json:"end_date"`
	Method         string               `json:"method"`
	Confidence     float64              `json:"confidence"`
	ReturnType     string               `json:"return_type"`
	PriceField     string               `json:"price_field"`
	LookbackDays   int                  `json:"lookback_days"`
	HorizonDays    int                  `json:"horizon_days"`
	PortfolioValue *float64             `json:"portfolio_value"`
	RollingWindow  int                  `json:"rolling_window"`
	Historical     *HistoricalParams    `json:"historical"`
	Parametric     *ParametricParams    `json:"parametric"`
	MonteCarlo     *MonteCarloParams    `json:"monte_carlo"`
}

// HandleCompute handles POST /api/risk/var.
func (h *Handler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	var req varRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	start, err := time.Parse(domain.DateFormat, req.StartDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(domain.DateFormat, req.EndDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}

	if req.ReturnType == "" {
		req.ReturnType = domain.ReturnLog
	}
	data, err := h.loader.Load(r.Context(), req.Portfolio, marketdata.LoadRequest{
		Start:      start,
		End:        end,
		ReturnType: req.ReturnType,
		PriceField: req.PriceField,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	mc := req.MonteCarlo
	if mc == nil {
		mc = &MonteCarloParams{Simulations: h.defaults.Simulations, Seed: h.defaults.Seed}
	}
	result, err := h.engine.Compute(data.PortfolioReturns, &data.AssetReturns, data.Weights, Params{
		Method:         req.Method,
		Confidence:     req.Confidence,
		Lookback:       req.LookbackDays,
		ReturnType:     req.ReturnType,
		HorizonDays:    req.HorizonDays,
		PortfolioValue: req.PortfolioValue,
		RollingWindow:  req.RollingWindow,
		Historical:     req.Historical,
		Parametric:     req.Parametric,
		MonteCarlo:     mc,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	result.Warnings = append(data.Warnings, result.Warnings...)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientData), errors.Is(err, domain.ErrMissingInput):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("VaR computation failed")
		h.writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
