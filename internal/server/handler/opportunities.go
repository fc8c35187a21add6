package handler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// OpportunityService is the scan surface the handler needs.
type OpportunityService interface {
	Opportunities(ctx context.Context, p domain.ScanParams) (domain.ScanResult, bool, error)
}

// Accepted parameter ranges.
const (
	minSpreadLow   = 0.1
	minSpreadHigh  = 20.0
	matchScoreLow  = 0.3
	matchScoreHigh = 1.0
	limitLow       = 1
	limitHigh      = 200
)

// OpportunityHandler serves GET /api/opportunities.
type OpportunityHandler struct {
	svc    OpportunityService
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(svc OpportunityService, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{svc: svc, logger: logHandler(logger, "opportunities")}
}

type opportunitiesResponse struct {
	ScanID        string                        `json:"scan_id"`
	Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
	Stats         domain.ScanStats              `json:"stats"`
	Params        domain.ScanParams             `json:"params"`
	Cached        bool                          `json:"cached"`
	ComputedAt    string                        `json:"computed_at"`
}

// List runs or serves a cached scan.
// GET /api/opportunities?min_spread=1&min_match_score=0.5&limit=20
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := parseScanParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, cached, err := h.svc.Opportunities(r.Context(), p)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "scan failed", slog.String("error", err.Error()))
		writeErrorDetail(w, http.StatusInternalServerError, "failed to compute opportunities", err.Error())
		return
	}

	opps := res.Opportunities
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	writeJSON(w, http.StatusOK, opportunitiesResponse{
		ScanID:        res.ID,
		Opportunities: opps,
		Stats:         res.Stats,
		Params:        res.Params,
		Cached:        cached,
		ComputedAt:    res.ComputedAt.UTC().Format(time.RFC3339),
	})
}

// parseScanParams reads the optional query parameters. Absent parameters are
// left zero so the service applies its defaults.
func parseScanParams(r *http.Request) (domain.ScanParams, error) {
	q := r.URL.Query()
	var p domain.ScanParams

	if v := q.Get("min_spread"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || f < minSpreadLow || f > minSpreadHigh {
			return p, fmt.Errorf("min_spread must be a number in [%g, %g]", minSpreadLow, minSpreadHigh)
		}
		p.MinSpreadPercent = f
	}
	if v := q.Get("min_match_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(f) || f < matchScoreLow || f > matchScoreHigh {
			return p, fmt.Errorf("min_match_score must be a number in [%g, %g]", matchScoreLow, matchScoreHigh)
		}
		p.MinMatchScore = f
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < limitLow || n > limitHigh {
			return p, fmt.Errorf("limit must be an integer in [%d, %d]", limitLow, limitHigh)
		}
		p.Limit = n
	}
	return p, nil
}
