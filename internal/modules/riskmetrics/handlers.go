package riskmetrics

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
	BenchmarkSymbol   string
	AnnualizationDays int
}

// Handler handles HTTP requests for the risk metrics module.
type Handler struct {
	engine   *Engine
	loader   *marketdata.Loader
	defaults HandlerDefaults
	log      zerolog.Logger
}

// NewHandler creates a new risk metrics handler.
func NewHandler(engine *Engine, loader *marketdata.Loader, defaults HandlerDefaults, log zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		loader:   loader,
		defaults: defaults,
		log:      log.With().Str("component", "riskmetrics_handler").Logger(),
	}
}

type metricsRequest struct {
	Portfolio        []portfolio.Position `json:"portfolio"`
	StartDate        string               `json:"start_date"`
	EndDate          string               `json:"end_date"`
	ReturnType       string               `json:"return_type"`
	PriceField       string               `json:"price_field"`
	BenchmarkSymbol  string               `json:"benchmark_symbol"`
	IncludeBenchmark *bool                `json:"include_benchmark"`
	RollingWindows   []int                `json:"rolling_windows"`
	RiskFreeRate     float64              `json:"risk_free_rate"`
}

// HandleCompute handles POST /api/risk/metrics.
func (h *Handler) HandleCompute(w http.ResponseWriter, r *http.Request) {
	var req metricsRequest
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

	benchmark := req.BenchmarkSymbol
	if benchmark == "" {
		benchmark = h.defaults.BenchmarkSymbol
	}
	includeBenchmark := req.IncludeBenchmark == nil || *req.IncludeBenchmark

	result, err := h.engine.Compute(r.Context(), data.PortfolioReturns, data.AssetReturns, data.Weights, Params{
		BenchmarkSymbol:   benchmark,
		RollingWindows:    req.RollingWindows,
		RiskFreeRate:      req.RiskFreeRate,
		AnnualizationDays: h.defaults.AnnualizationDays,
		ReturnType:        req.ReturnType,
		IncludeBenchmark:  includeBenchmark,
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
		h.log.Error().Err(err).Msg("Risk metrics computation failed")
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
