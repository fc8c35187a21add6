package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/polyarb/internal/arbitrage"
	"github.com/alanyoungcy/polyarb/internal/cache/memory"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/feed"
	"github.com/alanyoungcy/polyarb/internal/notify"
)

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

type staticSource struct {
	platform string
	recs     []domain.MarketRecord
	err      error
	calls    atomic.Int32
	delay    time.Duration
}

func (s *staticSource) Platform() string { return s.platform }
func (s *staticSource) Fetch(ctx context.Context) ([]domain.MarketRecord, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.recs, s.err
}

func greenland() (*staticSource, *staticSource) {
	title := "Will Trump buy Greenland?"
	poly := &staticSource{platform: "polymarket", recs: []domain.MarketRecord{
		{Platform: "polymarket", ID: "0x01", Title: title, Price: 0.40, Volume: 1000},
	}}
	kalshi := &staticSource{platform: "kalshi", recs: []domain.MarketRecord{
		{Platform: "kalshi", ID: "KXGREENLAND", Title: title, Price: 0.45, Volume: 1000},
	}}
	return poly, kalshi
}

func TestFetcherFilters(t *testing.T) {
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	src := &staticSource{platform: "kalshi", recs: []domain.MarketRecord{
		{Platform: "kalshi", ID: "ok", Price: 0.5, Volume: 100},
		{Platform: "kalshi", ID: "ok", Price: 0.6, Volume: 100},
		{Platform: "kalshi", ID: "thin", Price: 0.5, Volume: 10},
		{Platform: "kalshi", ID: "free", Price: 0, Volume: 100},
		{Platform: "kalshi", ID: "over", Price: 1.2, Volume: 100},
		{Platform: "kalshi", ID: "stale", Price: 0.5, Volume: 100, UpdatedAt: now.Add(-2 * time.Hour)},
		{Platform: "kalshi", ID: "fresh", Price: 1, Volume: 100, UpdatedAt: now.Add(-time.Minute)},
	}}
	f := NewFetcher([]domain.RecordSource{src}, FetchConfig{MinVolume: 50, MaxAge: time.Hour}, discard())
	f.now = func() time.Time { return now }

	recs, reports, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	var ids []string
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	if len(ids) != 2 || ids[0] != "ok" || ids[1] != "fresh" {
		t.Errorf("kept = %v, want [ok fresh]", ids)
	}
	if recs[0].Price != 0.5 {
		t.Errorf("duplicate kept the later record (price %v)", recs[0].Price)
	}
	if reports[0].Fetched != 7 || reports[0].Kept != 2 {
		t.Errorf("report = %+v", reports[0])
	}
}

func TestFetcherSourceOrderAndFailures(t *testing.T) {
	poly, kalshi := greenland()
	poly.delay = 20 * time.Millisecond
	broken := &staticSource{platform: "manifold", err: errors.New("down")}

	f := NewFetcher([]domain.RecordSource{poly, broken, kalshi}, FetchConfig{MaxConcurrent: 3}, discard())
	recs, reports, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(recs) != 2 || recs[0].Platform != "polymarket" || recs[1].Platform != "kalshi" {
		t.Errorf("records not in source order: %+v", recs)
	}
	if reports[1].Error == "" {
		t.Error("failed source not reported")
	}

	_, _, err = NewFetcher([]domain.RecordSource{broken}, FetchConfig{}, discard()).Fetch(context.Background())
	if err == nil {
		t.Error("all sources failing should be an error")
	}
	_, _, err = NewFetcher(nil, FetchConfig{}, discard()).Fetch(context.Background())
	if !errors.Is(err, domain.ErrNoSources) {
		t.Errorf("no sources = %v, want ErrNoSources", err)
	}
}

func newService(t *testing.T, sources ...domain.RecordSource) (*ScanService, *memory.ResultCache) {
	t.Helper()
	cache := memory.NewResultCache()
	svc := NewScanService(ScanServiceConfig{
		Fetcher: NewFetcher(sources, FetchConfig{MaxConcurrent: 2}, discard()),
		Scanner: arbitrage.NewScanner(arbitrage.DefaultConfig(), nil),
		Cache:   cache,
		TTL:     30 * time.Second,
	}, discard())
	return svc, cache
}

func TestOpportunitiesCaches(t *testing.T) {
	poly, kalshi := greenland()
	svc, _ := newService(t, poly, kalshi)
	ctx := context.Background()

	first, cached, err := svc.Opportunities(ctx, domain.ScanParams{})
	if err != nil {
		t.Fatalf("Opportunities: %v", err)
	}
	if cached {
		t.Error("first call reported cached")
	}
	if len(first.Opportunities) != 1 || first.ID == "" {
		t.Fatalf("result = %+v, want one opportunity with an id", first)
	}
	if first.Params != svc.Resolve(domain.ScanParams{}) {
		t.Errorf("Params = %+v, want resolved defaults", first.Params)
	}

	second, cached, err := svc.Opportunities(ctx, domain.ScanParams{})
	if err != nil || !cached || second.ID != first.ID {
		t.Errorf("second call = (%s, cached=%v, %v), want cached %s", second.ID, cached, err, first.ID)
	}
	if poly.calls.Load() != 1 {
		t.Errorf("source fetched %d times, want 1", poly.calls.Load())
	}

	// Different parameters are a different key.
	if _, cached, _ := svc.Opportunities(ctx, domain.ScanParams{Limit: 5}); cached {
		t.Error("different limit served from cache")
	}
	if svc.Status().Scans != 2 {
		t.Errorf("Scans = %d, want 2", svc.Status().Scans)
	}
}

func TestOpportunitiesSingleFlight(t *testing.T) {
	poly, kalshi := greenland()
	poly.delay = 50 * time.Millisecond
	svc, _ := newService(t, poly, kalshi)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _, err := svc.Opportunities(context.Background(), domain.ScanParams{})
			if err != nil {
				t.Errorf("Opportunities: %v", err)
				return
			}
			ids[i] = res.ID
		}()
	}
	wg.Wait()

	if n := poly.calls.Load(); n != 1 {
		t.Errorf("source fetched %d times for concurrent identical requests, want 1", n)
	}
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Errorf("callers saw different results: %v", ids)
			break
		}
	}
}

func TestOpportunitiesFetchError(t *testing.T) {
	broken := &staticSource{platform: "kalshi", err: errors.New("upstream 502")}
	svc, cache := newService(t, broken)
	_, _, err := svc.Opportunities(context.Background(), domain.ScanParams{})
	if err == nil {
		t.Fatal("want error when every source fails")
	}
	if cache.Len() != 0 {
		t.Error("failed scan was cached")
	}
}

type heldLocks struct{}

func (heldLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestOpportunitiesWaitsForLockHolder(t *testing.T) {
	poly, kalshi := greenland()
	cache := memory.NewResultCache()
	svc := NewScanService(ScanServiceConfig{
		Fetcher:  NewFetcher([]domain.RecordSource{poly, kalshi}, FetchConfig{}, discard()),
		Scanner:  arbitrage.NewScanner(arbitrage.DefaultConfig(), nil),
		Cache:    cache,
		Locks:    heldLocks{},
		TTL:      30 * time.Second,
		LockWait: 2 * time.Second,
	}, discard())

	key := CacheKey(svc.Resolve(domain.ScanParams{}))
	go func() {
		time.Sleep(300 * time.Millisecond)
		_ = cache.Set(context.Background(), key, domain.ScanResult{ID: "peer"}, time.Minute)
	}()

	res, cached, err := svc.Opportunities(context.Background(), domain.ScanParams{})
	if err != nil {
		t.Fatalf("Opportunities: %v", err)
	}
	if res.ID != "peer" || !cached {
		t.Errorf("got (%s, cached=%v), want the peer's result", res.ID, cached)
	}
	if poly.calls.Load() != 0 {
		t.Error("scanned while another instance held the lock")
	}
}

func TestCacheKey(t *testing.T) {
	a := CacheKey(domain.ScanParams{MinSpreadPercent: 0.5, MinMatchScore: 0.4, Limit: 50})
	if a != "0.5000:0.4000:50" {
		t.Errorf("CacheKey = %q", a)
	}
}

type memStore struct {
	inserted []string
	keys     []string
}

func (m *memStore) Insert(_ context.Context, res domain.ScanResult, key string) error {
	m.inserted = append(m.inserted, res.ID)
	m.keys = append(m.keys, key)
	return nil
}
func (m *memStore) GetByID(context.Context, string) (domain.ScanResult, error) {
	return domain.ScanResult{}, domain.ErrNotFound
}
func (m *memStore) ListRecent(context.Context, domain.ListOpts) ([]domain.ScanSummary, error) {
	return nil, nil
}

type stubArchiver struct{ err error }

func (s stubArchiver) ArchiveScan(_ context.Context, res domain.ScanResult) (string, error) {
	return "scans/" + res.ID + ".json", s.err
}

type memBus struct {
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}
func (b *memBus) Publish(_ context.Context, ch string, p []byte) error {
	b.published[ch] = append(b.published[ch], p)
	return nil
}
func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }
func (b *memBus) StreamAppend(_ context.Context, s string, p []byte) error {
	b.streamed[s] = append(b.streamed[s], p)
	return nil
}

type memNotifier struct{ events []string }

func (m *memNotifier) Notify(_ context.Context, event, _, _ string) error {
	m.events = append(m.events, event)
	return nil
}

func TestRecorder(t *testing.T) {
	store := &memStore{}
	bus := newMemBus()
	notes := &memNotifier{}
	r := NewRecorder(RecorderConfig{
		Store:         store,
		Archiver:      stubArchiver{},
		Bus:           bus,
		Notifier:      notes,
		MinConfidence: domain.ConfidenceMedium,
	}, discard())

	res := domain.ScanResult{
		ID:         "s1",
		ComputedAt: time.Unix(0, 0),
		Stats:      domain.ScanStats{Partial: true, Count: 3},
		Opportunities: []domain.ArbitrageOpportunity{
			{CanonicalTitle: "a", Confidence: domain.ConfidenceHigh, BestBuyPlatform: "polymarket", BestSellPlatform: "kalshi"},
			{CanonicalTitle: "b", Confidence: domain.ConfidenceMedium},
			{CanonicalTitle: "c", Confidence: domain.ConfidenceLow},
		},
	}
	if sent := r.Record(context.Background(), res); sent != 2 {
		t.Errorf("sent = %d, want 2 (high and medium)", sent)
	}
	if len(store.inserted) != 1 || store.keys[0] != "scans/s1.json" {
		t.Errorf("store = %+v, want insert with archive key", store)
	}
	if len(notes.events) != 3 || notes.events[0] != notify.EventScanPartial {
		t.Errorf("events = %v, want partial alert first", notes.events)
	}

	msgs := bus.published[ScanCompletedChannel]
	if len(msgs) != 1 || len(bus.streamed[ScanHistoryStream]) != 1 {
		t.Fatalf("bus = %+v", bus)
	}
	var ev scanEvent
	if err := json.Unmarshal(msgs[0], &ev); err != nil {
		t.Fatalf("event JSON: %v", err)
	}
	if ev.ScanID != "s1" || len(ev.Top) != 3 || ev.Top[0].Pair != "polymarket→kalshi" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRecorderArchiveFailureStillRecords(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(RecorderConfig{Store: store, Archiver: stubArchiver{err: errors.New("s3 down")}}, discard())
	r.Record(context.Background(), domain.ScanResult{ID: "s2"})
	if len(store.inserted) != 1 || store.keys[0] != "" {
		t.Errorf("store = %+v, want insert without archive key", store)
	}
}

type memRecordStore struct {
	upserts map[string]int
	err     error
}

func (m *memRecordStore) UpsertBatch(_ context.Context, recs []domain.MarketRecord) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	for _, r := range recs {
		m.upserts[r.Platform]++
	}
	return int64(len(recs)), nil
}
func (m *memRecordStore) ListByPlatform(context.Context, string, domain.ListOpts) ([]domain.MarketRecord, error) {
	return nil, nil
}
func (m *memRecordStore) Count(context.Context) (int64, error) { return 0, nil }

func TestIngest(t *testing.T) {
	poly, kalshi := greenland()
	broken := &staticSource{platform: "manifold", err: errors.New("bad file")}
	store := &memRecordStore{upserts: map[string]int{}}
	bus := newMemBus()

	svc := NewIngestService([]domain.RecordSource{poly, broken, kalshi}, store, nil, bus, discard())
	reports, err := svc.Ingest(context.Background())
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(reports) != 3 || reports[1].Error == "" || reports[2].Upserted != 1 {
		t.Errorf("reports = %+v", reports)
	}
	if store.upserts["polymarket"] != 1 || store.upserts["kalshi"] != 1 {
		t.Errorf("upserts = %v", store.upserts)
	}
	signals := bus.published[feed.RecordsUpdatedChannel]
	if len(signals) != 2 {
		t.Fatalf("signals = %d, want 2", len(signals))
	}
	var ev feed.RecordsUpdated
	_ = json.Unmarshal(signals[0], &ev)
	if ev.Platform != "polymarket" || ev.Count != 1 {
		t.Errorf("signal = %+v", ev)
	}

	store.err = errors.New("db down")
	if _, err := svc.Ingest(context.Background()); err == nil {
		t.Error("all sources failing should be an error")
	}
}
