package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/polyarb/internal/service"
)

// StatusProvider exposes the scan service snapshot.
type StatusProvider interface {
	Status() service.Status
}

// StatusHandler serves the runtime status.
type StatusHandler struct {
	mode    string
	started time.Time
	svc     StatusProvider
}

// NewStatusHandler creates a StatusHandler for the given run mode.
func NewStatusHandler(mode string, svc StatusProvider) *StatusHandler {
	return &StatusHandler{mode: mode, started: time.Now(), svc: svc}
}

type lastScan struct {
	ID         string  `json:"id"`
	ComputedAt string  `json:"computed_at"`
	Count      int     `json:"count"`
	Partial    bool    `json:"partial"`
	FinalState string  `json:"final_state"`
	Seconds    float64 `json:"scan_time_seconds"`
}

// GetStatus responds with the mode, uptime, source reports and the headline
// of the latest scan.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st := h.svc.Status()
	body := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
		"scans":          st.Scans,
		"sources":        st.Sources,
		"default_params": st.Parameters,
		"cache_ttl":      st.TTLSeconds,
	}
	if st.LastScan != nil {
		body["last_scan"] = lastScan{
			ID:         st.LastScan.ID,
			ComputedAt: st.LastScan.ComputedAt.UTC().Format(time.RFC3339),
			Count:      st.LastScan.Stats.Count,
			Partial:    st.LastScan.Stats.Partial,
			FinalState: string(st.LastScan.Stats.FinalState),
			Seconds:    st.LastScan.Stats.ScanTimeSeconds,
		}
	}
	writeJSON(w, http.StatusOK, body)
}
