package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestFileSourceJSONArray(t *testing.T) {
	path := writeFile(t, "k.json", `[
		{"id": "KX1", "title": "Will it rain?", "price": 0.4, "volume": 100},
		{"platform": "kalshi", "id": "KX2", "title": "Will it snow?", "price": 0.1, "volume": 50},
		{"platform": "polymarket", "id": "0x1", "title": "stray", "price": 0.5, "volume": 10},
		{"id": "", "title": "no id", "price": 0.5}
	]`)
	src := NewFileSource("kalshi", path, nil)
	recs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2: %+v", len(recs), recs)
	}
	if recs[0].Platform != "kalshi" || recs[0].ID != "KX1" {
		t.Errorf("recs[0] = %+v, want platform filled in", recs[0])
	}
	if src.Platform() != "kalshi" {
		t.Errorf("Platform = %q", src.Platform())
	}
}

func TestFileSourceJSONL(t *testing.T) {
	path := writeFile(t, "p.jsonl", `{"id": "a", "title": "A?", "price": 0.2, "volume": 1}

{"id": "b", "title": "B?", "price": 0.3, "volume": 2, "slug": "b-market"}
`)
	recs, err := NewFileSource("polymarket", path, nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 || recs[1].Slug != "b-market" {
		t.Errorf("recs = %+v", recs)
	}
}

func TestFileSourceErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := NewFileSource("x", filepath.Join(t.TempDir(), "missing.json"), nil).Fetch(ctx); err == nil {
		t.Error("missing file: want error")
	}
	bad := writeFile(t, "bad.jsonl", "{\"id\": \"a\"}\nnot json\n")
	if _, err := NewFileSource("x", bad, nil).Fetch(ctx); err == nil {
		t.Error("malformed line: want error")
	}
	empty := writeFile(t, "empty.json", "  \n")
	recs, err := NewFileSource("x", empty, nil).Fetch(ctx)
	if err != nil || len(recs) != 0 {
		t.Errorf("empty file = (%v, %v), want no records", recs, err)
	}
}

type fakeStore struct {
	platform string
	opts     domain.ListOpts
	recs     []domain.MarketRecord
	err      error
}

func (f *fakeStore) UpsertBatch(context.Context, []domain.MarketRecord) (int64, error) { return 0, nil }
func (f *fakeStore) Count(context.Context) (int64, error)                              { return 0, nil }
func (f *fakeStore) ListByPlatform(_ context.Context, platform string, opts domain.ListOpts) ([]domain.MarketRecord, error) {
	f.platform, f.opts = platform, opts
	return f.recs, f.err
}

func TestStoreSource(t *testing.T) {
	store := &fakeStore{recs: []domain.MarketRecord{{Platform: "kalshi", ID: "1"}}}
	src := NewStoreSource("kalshi", store, time.Hour)
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	recs, err := src.Fetch(context.Background())
	if err != nil || len(recs) != 1 {
		t.Fatalf("Fetch = (%v, %v)", recs, err)
	}
	if store.platform != "kalshi" {
		t.Errorf("platform = %q", store.platform)
	}
	if store.opts.Since == nil || !store.opts.Since.Equal(now.Add(-time.Hour)) {
		t.Errorf("Since = %v, want %v", store.opts.Since, now.Add(-time.Hour))
	}

	store.err = errors.New("boom")
	if _, err := NewStoreSource("kalshi", store, 0).Fetch(context.Background()); err == nil {
		t.Error("store error not propagated")
	}
	if store.opts.Since != nil {
		t.Error("zero maxAge should not filter by time")
	}
}

type chanBus struct{ ch chan []byte }

func (b chanBus) Subscribe(context.Context, string) (<-chan []byte, error) { return b.ch, nil }

func TestRefreshListenerDebounces(t *testing.T) {
	bus := chanBus{ch: make(chan []byte, 8)}
	got := make(chan []string, 4)
	l := NewRefreshListener(bus, 20*time.Millisecond, func(_ context.Context, platforms []string) {
		got <- platforms
	}, slogDiscard())

	for _, p := range []string{"kalshi", "polymarket", "kalshi"} {
		b, _ := json.Marshal(RecordsUpdated{Platform: p, Count: 1})
		bus.ch <- b
	}
	bus.ch <- []byte("garbage")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case platforms := <-got:
		if len(platforms) != 2 || platforms[0] != "kalshi" || platforms[1] != "polymarket" {
			t.Errorf("platforms = %v, want [kalshi polymarket]", platforms)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onRefresh never called")
	}

	close(bus.ch)
	if err := <-done; err != nil {
		t.Errorf("Run = %v, want nil after subscription closed", err)
	}
	cancel()
}

func slogDiscard() *slog.Logger { return slog.New(slog.DiscardHandler) }
