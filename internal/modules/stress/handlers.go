package stress

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
	"github.com/meridian-labs/riskd/internal/modules/portfolio"
)

// Handler handles HTTP requests for the stress testing module.
type Handler struct {
	service    *Service
	portfolios *portfolio.Service
	log        zerolog.Logger
}

// NewHandler creates a new stress test handler.
func NewHandler(service *Service, portfolios *portfolio.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		portfolios: portfolios,
		log:        log.With().Str("component", "stress_handler").Logger(),
	}
}

// HandleScenarios handles GET /api/stress/scenarios.
func (h *Handler) HandleScenarios(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenarios": h.service.Scenarios(),
	})
}

type stressRequest struct {
	Portfolio []portfolio.Position `json:"portfolio"`
	Scenario  string               `json:"scenario"`
	Shocks    map[string]float64   `json:"shocks"`
	Mode      string               `json:"mode"`
}

// HandleRun handles POST /api/stress/run.
func (h *Handler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req stressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	norm, err := h.portfolios.Normalize(req.Portfolio)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	result, err := h.service.Run(norm.Positions, req.Scenario, req.Shocks, req.Mode)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientData), errors.Is(err, domain.ErrMissingInput):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Stress test failed")
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
