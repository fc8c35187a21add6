package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// ScanHandler serves scan history from a domain.ScanStore.
type ScanHandler struct {
	store  domain.ScanStore
	logger *slog.Logger
}

// NewScanHandler creates a ScanHandler.
func NewScanHandler(store domain.ScanStore, logger *slog.Logger) *ScanHandler {
	return &ScanHandler{store: store, logger: logHandler(logger, "scans")}
}

type listScansResponse struct {
	Scans []domain.ScanSummary `json:"scans"`
}

// ListRecent returns scan headlines, newest first.
// GET /api/scans/recent?limit=20&offset=0
func (h *ScanHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	scans, err := h.store.ListRecent(r.Context(), parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list scans failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list scans")
		return
	}
	if scans == nil {
		scans = []domain.ScanSummary{}
	}
	writeJSON(w, http.StatusOK, listScansResponse{Scans: scans})
}

// Get returns one stored scan with its opportunities.
// GET /api/scans/{id}
func (h *ScanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "scan not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "get scan failed", slog.String("scan_id", id), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load scan")
		return
	}
	writeJSON(w, http.StatusOK, res)
}
