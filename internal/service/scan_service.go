// Package service coordinates record fetching, scanning, result caching and
// the post-scan side effects (history, archive, bus, alerts).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/polyarb/internal/arbitrage"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

// lockPollInterval is how often a caller that lost the scan lock re-reads the
// cache while it waits for the holder to publish.
const lockPollInterval = 250 * time.Millisecond

// RecordFetcher supplies the records of one scan.
type RecordFetcher interface {
	Fetch(ctx context.Context) ([]domain.MarketRecord, []FetchReport, error)
}

// ScanServiceConfig wires a ScanService.
type ScanServiceConfig struct {
	Fetcher  RecordFetcher
	Scanner  *arbitrage.Scanner
	Cache    domain.ResultCache
	Locks    domain.LockManager // optional
	TTL      time.Duration
	LockWait time.Duration
}

// ScanService serves cached scan results and runs fresh scans. Concurrent
// requests for the same parameters inside one process share a single scan;
// with a LockManager, instances sharing a cache do too.
type ScanService struct {
	fetcher  RecordFetcher
	scanner  *arbitrage.Scanner
	cache    domain.ResultCache
	locks    domain.LockManager
	ttl      time.Duration
	lockWait time.Duration
	group    singleflight.Group
	now      func() time.Time
	logger   *slog.Logger

	mu          sync.RWMutex
	last        *domain.ScanResult
	lastReports []FetchReport
	scans       int64
}

// NewScanService creates a ScanService.
func NewScanService(cfg ScanServiceConfig, logger *slog.Logger) *ScanService {
	return &ScanService{
		fetcher:  cfg.Fetcher,
		scanner:  cfg.Scanner,
		cache:    cfg.Cache,
		locks:    cfg.Locks,
		ttl:      cfg.TTL,
		lockWait: cfg.LockWait,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "scan_service")),
	}
}

// CacheKey identifies a parameter set in the result cache.
func CacheKey(p domain.ScanParams) string {
	return fmt.Sprintf("%.4f:%.4f:%d", p.MinSpreadPercent, p.MinMatchScore, p.Limit)
}

// Resolve fills zero-valued request parameters from the scanner defaults.
func (s *ScanService) Resolve(p domain.ScanParams) domain.ScanParams {
	return s.scanner.Config().WithParams(p).Params()
}

// Opportunities returns the result for p, from cache when one is fresh.
// cached reports whether the result came from the cache.
func (s *ScanService) Opportunities(ctx context.Context, p domain.ScanParams) (res domain.ScanResult, cached bool, err error) {
	p = s.Resolve(p)
	key := CacheKey(p)

	if res, ok := s.cache.Get(ctx, key); ok {
		return res, true, nil
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		// The shared scan must outlive any one caller's request.
		return s.computeLocked(context.WithoutCancel(ctx), key, p)
	})
	if err != nil {
		return domain.ScanResult{}, false, err
	}
	out := v.(scanOutcome)
	return out.result, out.cached, nil
}

// Run executes a fresh scan for p regardless of the cache and stores the
// result.
func (s *ScanService) Run(ctx context.Context, p domain.ScanParams) (domain.ScanResult, error) {
	p = s.Resolve(p)
	return s.compute(ctx, CacheKey(p), p)
}

type scanOutcome struct {
	result domain.ScanResult
	cached bool
}

func (s *ScanService) computeLocked(ctx context.Context, key string, p domain.ScanParams) (scanOutcome, error) {
	// A flight that finished just before this one started has already
	// stored the result.
	if res, ok := s.cache.Get(ctx, key); ok {
		return scanOutcome{result: res, cached: true}, nil
	}
	if s.locks == nil {
		res, err := s.compute(ctx, key, p)
		return scanOutcome{result: res}, err
	}

	lockTTL := s.scanner.Config().TimeBudget + s.lockWait
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	unlock, err := s.locks.Acquire(ctx, "scan:"+key, lockTTL)
	switch {
	case err == nil:
		defer unlock()
	case errors.Is(err, domain.ErrLockHeld):
		if res, ok := s.waitForPeer(ctx, key); ok {
			return scanOutcome{result: res, cached: true}, nil
		}
		s.logger.WarnContext(ctx, "scan lock holder did not publish in time, scanning anyway", slog.String("key", key))
	default:
		s.logger.WarnContext(ctx, "scan lock unavailable", slog.String("key", key), slog.String("error", err.Error()))
	}

	res, err := s.compute(ctx, key, p)
	return scanOutcome{result: res}, err
}

// waitForPeer polls the cache until another instance stores key or lockWait
// elapses.
func (s *ScanService) waitForPeer(ctx context.Context, key string) (domain.ScanResult, bool) {
	deadline := time.NewTimer(s.lockWait)
	defer deadline.Stop()
	tick := time.NewTicker(lockPollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return domain.ScanResult{}, false
		case <-deadline.C:
			return domain.ScanResult{}, false
		case <-tick.C:
			if res, ok := s.cache.Get(ctx, key); ok {
				return res, true
			}
		}
	}
}

func (s *ScanService) compute(ctx context.Context, key string, p domain.ScanParams) (domain.ScanResult, error) {
	records, reports, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return domain.ScanResult{}, fmt.Errorf("scan_service: fetch records: %w", err)
	}

	scanner := s.scanner.WithConfig(s.scanner.Config().WithParams(p))
	opps, stats := scanner.Scan(ctx, records)
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}

	res := domain.ScanResult{
		ID:            uuid.NewString(),
		Opportunities: opps,
		Stats:         stats,
		Params:        p,
		ComputedAt:    s.now().UTC(),
	}

	if err := s.cache.Set(ctx, key, res, s.ttl); err != nil {
		s.logger.WarnContext(ctx, "cache set failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	s.mu.Lock()
	s.last = &res
	s.lastReports = reports
	s.scans++
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "scan complete",
		slog.String("scan_id", res.ID),
		slog.Int("records", stats.RecordsIndexed),
		slog.Int("opportunities", stats.Count),
		slog.Float64("seconds", stats.ScanTimeSeconds),
		slog.Bool("partial", stats.Partial),
	)
	return res, nil
}

// Status is a snapshot of the service for the status endpoint.
type Status struct {
	Scans      int64              `json:"scans"`
	LastScan   *domain.ScanResult `json:"-"`
	Sources    []FetchReport      `json:"sources"`
	Parameters domain.ScanParams  `json:"default_params"`
	TTLSeconds float64            `json:"cache_ttl_seconds"`
}

// Status returns the latest scan and source reports.
func (s *ScanService) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Scans:      s.scans,
		Sources:    append([]FetchReport(nil), s.lastReports...),
		Parameters: s.scanner.Config().Params(),
		TTLSeconds: s.ttl.Seconds(),
	}
	if s.last != nil {
		cp := *s.last
		st.LastScan = &cp
	}
	return st
}
