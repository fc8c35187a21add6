package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/arbitrage"
	"github.com/alanyoungcy/polyarb/internal/cache/memory"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/feed"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/service"
)

func newTestServer(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	poly := write("poly.jsonl", `{"id":"0x01","title":"Will Trump buy Greenland?","price":0.40,"volume":1000}`)
	kalshi := write("kalshi.json", `[{"id":"KXGREENLAND","title":"Will Trump buy Greenland?","price":0.45,"volume":1000}]`)

	fetcher := service.NewFetcher([]domain.RecordSource{
		feed.NewFileSource("polymarket", poly, logger),
		feed.NewFileSource("kalshi", kalshi, logger),
	}, service.FetchConfig{MaxConcurrent: 2, MinVolume: 50}, logger)
	svc := service.NewScanService(service.ScanServiceConfig{
		Fetcher: fetcher,
		Scanner: arbitrage.NewScanner(arbitrage.DefaultConfig(), logger),
		Cache:   memory.NewResultCache(),
		TTL:     30 * time.Second,
	}, logger)

	srv := NewServer(Config{Port: 0, APIKey: "k", CORSOrigins: []string{"*"}}, Handlers{
		Health:        handler.NewHealthHandler(nil, logger),
		Status:        handler.NewStatusHandler("server", svc),
		Opportunities: handler.NewOpportunityHandler(svc, logger),
	}, nil, logger)
	return srv.Handler()
}

func TestServerRoutes(t *testing.T) {
	h := newTestServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health without key = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/opportunities", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("opportunities without key = %d, want 401", rec.Code)
	}

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-API-Key", "k")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec = get("/api/opportunities?limit=5")
	if rec.Code != http.StatusOK {
		t.Fatalf("opportunities = %d %s", rec.Code, rec.Body)
	}
	var body struct {
		Opportunities []domain.ArbitrageOpportunity `json:"opportunities"`
		Cached        bool                          `json:"cached"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Opportunities) != 1 || body.Cached {
		t.Errorf("first response = %+v", body)
	}
	opp := body.Opportunities[0]
	if opp.BestBuyPlatform != "polymarket" || opp.BestSellPlatform != "kalshi" {
		t.Errorf("legs = %s→%s", opp.BestBuyPlatform, opp.BestSellPlatform)
	}

	rec = get("/api/opportunities?limit=5")
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if !body.Cached {
		t.Error("second identical request not served from cache")
	}

	if rec := get("/api/status"); rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
	if rec := get("/api/scans/recent"); rec.Code != http.StatusNotFound {
		t.Errorf("scans without a store = %d, want 404", rec.Code)
	}
}
