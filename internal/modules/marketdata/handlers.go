package marketdata

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/meridian-labs/riskd/internal/domain"
)

// Handler handles HTTP requests for the market data module.
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new market data handler.
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("component", "marketdata_handler").Logger(),
	}
}

type pricesRequest struct {
	Symbols    []string `json:"symbols"`
	StartDate  string   `json:"start_date"`
	EndDate    string   `json:"end_date"`
	PriceField string   `json:"price_field"`
	Clean      *bool    `json:"clean"`
}

type pricesResponse struct {
	Dates         []string              `json:"dates"`
	Prices        map[string][]*float64 `json:"prices"`
	Failed        []string              `json:"failed_symbols"`
	Dropped       []string              `json:"dropped_symbols,omitempty"`
	MissingReport []MissingReportItem   `json:"missing_report"`
}

// HandlePrices handles POST /api/market/prices.
func (h *Handler) HandlePrices(w http.ResponseWriter, r *http.Request) {
	var req pricesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	start, end, err := parseDateRange(req.StartDate, req.EndDate)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	frame, failed, report, err := h.service.FetchPrices(r.Context(), req.Symbols, start, end, req.PriceField)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	var dropped []string
	if req.Clean == nil || *req.Clean {
		frame, dropped, report = h.service.Clean(frame)
	}

	resp := pricesResponse{
		Dates:         make([]string, len(frame.Dates)),
		Prices:        make(map[string][]*float64, frame.Cols()),
		Failed:        failed,
		Dropped:       dropped,
		MissingReport: report,
	}
	for i, d := range frame.Dates {
		resp.Dates[i] = d.Format(domain.DateFormat)
	}
	for col, symbol := range frame.Symbols {
		column := make([]*float64, frame.Rows())
		for row := range frame.Dates {
			if frame.Valid[row][col] {
				v := frame.Values[row][col]
				column[row] = &v
			}
		}
		resp.Prices[symbol] = column
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// parseDateRange parses and validates a start/end date pair.
func parseDateRange(startDate, endDate string) (time.Time, time.Time, error) {
	start, err := time.Parse(domain.DateFormat, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("start_date must be YYYY-MM-DD")
	}
	end, err := time.Parse(domain.DateFormat, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("end_date must be YYYY-MM-DD")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, errors.New("end_date must be after start_date")
	}
	return start, end, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidParameter):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInsufficientData), errors.Is(err, domain.ErrMissingInput):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		h.log.Error().Err(err).Msg("Price fetch failed")
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
