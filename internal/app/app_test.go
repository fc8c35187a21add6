package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/notify"
)

func fileConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
			t.Fatal(err)
		}
		return p
	}
	cfg := config.Defaults()
	cfg.Feed.Sources = []config.SourceConfig{
		{Platform: "polymarket", Kind: "file", Path: write("poly.jsonl",
			`{"id":"0x01","title":"Will Trump buy Greenland?","price":0.40,"volume":1000}`)},
		{Platform: "kalshi", Kind: "file", Path: write("kalshi.json",
			`[{"id":"KXGREENLAND","title":"Will Trump buy Greenland?","price":0.45,"volume":1000}]`)},
	}
	return &cfg
}

func TestScannerConfig(t *testing.T) {
	sc := config.Defaults().Scan
	sc.ResultLimit = 7
	sc.TimeBudget.Duration = 5 * time.Second
	got := scannerConfig(sc)
	if got.Limit != 7 || got.TimeBudget != 5*time.Second {
		t.Errorf("scannerConfig = %+v", got)
	}
	if got.MinSpreadPercent != sc.MinSpreadPercent || got.SlugOverlap != sc.SlugOverlapThreshold || got.TokenFloor != sc.CandidateSharedTokenFloor {
		t.Errorf("scannerConfig = %+v, thresholds not copied", got)
	}
}

func TestRunScanMode(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Mode = "scan"

	var out bytes.Buffer
	a := New(cfg, slog.New(slog.DiscardHandler)).WithOutput(&out)
	defer a.Close()

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var res domain.ScanResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if len(res.Opportunities) != 1 {
		t.Fatalf("opportunities = %d, want 1", len(res.Opportunities))
	}
	if res.ID == "" {
		t.Error("result has no scan id")
	}
	if res.Params.Limit != cfg.Scan.ResultLimit {
		t.Errorf("Params.Limit = %d, want %d", res.Params.Limit, cfg.Scan.ResultLimit)
	}
}

func TestRunUnsupportedMode(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Mode = "trade"
	a := New(cfg, slog.New(slog.DiscardHandler))
	defer a.Close()
	if err := a.Run(context.Background()); err == nil {
		t.Error("Run accepted an unknown mode")
	}
}

func TestIngestModeWithoutStore(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Mode = "ingest"
	a := New(cfg, slog.New(slog.DiscardHandler))
	defer a.Close()
	if err := a.Run(context.Background()); !errors.Is(err, domain.ErrNoStore) {
		t.Errorf("Run = %v, want ErrNoStore", err)
	}
}

func TestWireFileSources(t *testing.T) {
	cfg := fileConfig(t)
	deps, cleanup, err := Wire(context.Background(), cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if len(deps.Sources) != 2 || len(deps.FileSources) != 2 {
		t.Errorf("sources = %d/%d, want 2/2", len(deps.Sources), len(deps.FileSources))
	}
	if deps.MemoryCache == nil || deps.Cache == nil {
		t.Error("memory cache not wired")
	}
	if deps.RecordStore != nil || deps.Bus != nil || deps.Archiver != nil {
		t.Error("disabled backends were wired")
	}
	if len(deps.Checks) != 0 {
		t.Errorf("Checks = %d, want none without backends", len(deps.Checks))
	}
}

func TestWirePostgresSourceNeedsStore(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Feed.Sources[0].Kind = "postgres"
	if _, _, err := Wire(context.Background(), cfg, slog.New(slog.DiscardHandler)); err == nil {
		t.Error("Wire accepted a postgres source without supabase")
	}
}

func TestRecorderConfig(t *testing.T) {
	cfg := fileConfig(t)
	cfg.Monitor.NotifyMinConfidence = "medium"
	a := New(cfg, slog.New(slog.DiscardHandler))

	deps := &Dependencies{Notifier: notify.NewNotifier(nil, nil, slog.New(slog.DiscardHandler))}
	rc := a.recorderConfig(deps)
	if rc.Store != nil || rc.Archiver != nil || rc.Bus != nil || rc.Notifier != nil {
		t.Errorf("recorderConfig = %+v, want no backends", rc)
	}
	if rc.MinConfidence != domain.ConfidenceMedium {
		t.Errorf("MinConfidence = %q, want medium", rc.MinConfidence)
	}
}
