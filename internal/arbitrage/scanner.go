// Package arbitrage finds cross-venue arbitrage in a batch of normalized
// market records: it pairs markets through per-platform indexes, expands
// pairs into multi-platform groups, scores and deduplicates the resulting
// opportunities and ranks them, all within a cooperative time budget.
package arbitrage

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/matching"
)

// Config holds the scan thresholds.
type Config struct {
	MinSpreadPercent float64
	MinMatchScore    float64
	Limit            int
	TimeBudget       time.Duration
	SlugOverlap      float64
	TokenFloor       int
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MinSpreadPercent: 0.5,
		MinMatchScore:    0.40,
		Limit:            50,
		TimeBudget:       60 * time.Second,
		SlugOverlap:      matching.DefaultSlugOverlap,
		TokenFloor:       1,
	}
}

// WithParams overlays the non-zero request parameters on c.
func (c Config) WithParams(p domain.ScanParams) Config {
	if p.MinSpreadPercent > 0 {
		c.MinSpreadPercent = p.MinSpreadPercent
	}
	if p.MinMatchScore > 0 {
		c.MinMatchScore = p.MinMatchScore
	}
	if p.Limit > 0 {
		c.Limit = p.Limit
	}
	return c
}

// Params returns the cache-relevant subset of c.
func (c Config) Params() domain.ScanParams {
	return domain.ScanParams{
		MinSpreadPercent: c.MinSpreadPercent,
		MinMatchScore:    c.MinMatchScore,
		Limit:            c.Limit,
	}
}

// Scanner runs scans. A Scanner holds no per-scan state and may be used from
// several goroutines at once.
type Scanner struct {
	cfg    Config
	now    func() time.Time
	logger *slog.Logger
}

// NewScanner creates a Scanner. A nil logger discards output.
func NewScanner(cfg Config, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scanner{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With(slog.String("component", "scanner")),
	}
}

// WithClock returns a copy of s that reads time from now.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	cp := *s
	cp.now = now
	return &cp
}

// WithConfig returns a copy of s using cfg.
func (s *Scanner) WithConfig(cfg Config) *Scanner {
	cp := *s
	cp.cfg = cfg
	return &cp
}

// Config returns the scanner's thresholds.
func (s *Scanner) Config() Config { return s.cfg }

// Scan finds, deduplicates and ranks the opportunities in records.
//
// The time budget starts when indexing starts and is checked before every
// platform pair and every seed record; ctx cancellation is observed at the
// same points. When either fires the scan stops enumerating and ranks what it
// has, reporting Partial and ScanPartialBudgetExceeded. Fewer than two
// platforms yield no opportunities and zero counters.
func (s *Scanner) Scan(ctx context.Context, records []domain.MarketRecord) ([]domain.ArbitrageOpportunity, domain.ScanStats) {
	start := s.now()
	sm := newStateMachine(s.logger)
	stats := domain.ScanStats{
		PlatformPairs: []string{},
		BudgetSeconds: s.cfg.TimeBudget.Seconds(),
		FinalState:    domain.ScanDone,
	}

	byPlatform, order := partition(records)
	if len(order) < 2 {
		s.logger.DebugContext(ctx, "scan skipped: fewer than two platforms",
			slog.Int("records", len(records)),
			slog.Int("platforms", len(order)),
		)
		return []domain.ArbitrageOpportunity{}, stats
	}

	ex := matching.NewExtractor()
	indexes := make(map[string]*matching.Index, len(order))
	all := make([]*matching.Index, 0, len(order))
	for _, p := range order {
		ix := matching.BuildIndex(ex, p, byPlatform[p])
		indexes[p] = ix
		all = append(all, ix)
	}
	stats.RecordsIndexed = len(records)
	stats.PlatformsIndexed = len(order)

	grouper := NewGrouper(GrouperConfig{
		Extractor:   ex,
		Indexes:     all,
		MinScore:    s.cfg.MinMatchScore,
		SlugOverlap: s.cfg.SlugOverlap,
		TokenFloor:  s.cfg.TokenFloor,
	})

	expired := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return s.cfg.TimeBudget > 0 && s.now().Sub(start) >= s.cfg.TimeBudget
	}

	var found []domain.ArbitrageOpportunity
	partial := false
	sm.to(ctx, domain.ScanPairwise)

scan:
	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if expired() {
				partial = true
				break scan
			}
			seedIx, targetIx := indexes[order[i]], indexes[order[j]]
			if targetIx.Len() < seedIx.Len() {
				seedIx, targetIx = targetIx, seedIx
			}

			for _, seed := range seedIx.Records() {
				if expired() {
					partial = true
					break scan
				}
				if !seed.HasValidPrice() {
					continue
				}
				for _, c := range targetIx.Candidates(ex, seed.Title, s.cfg.TokenFloor) {
					score, ok := grouper.Match(seed, c.Record)
					if !ok {
						continue
					}
					stats.PairsMatched++

					sm.to(ctx, domain.ScanExpansion)
					g := NewGroup(seed)
					g.Add(c.Record, score)
					grouper.Expand(g)
					if opp, ok := ScoreGroup(ex, g, s.cfg.MinSpreadPercent); ok {
						found = append(found, opp)
					}
					sm.to(ctx, domain.ScanPairwise)
				}
			}
		}
	}
	stats.CandidatesEvaluated = grouper.Evaluated()
	stats.TotalFound = len(found)

	sm.to(ctx, domain.ScanDedup)
	deduped := Dedup(found)

	sm.to(ctx, domain.ScanRanking)
	ranked := Rank(deduped, s.cfg.Limit)
	summarize(&stats, ranked)

	if partial {
		stats.Partial = true
		stats.FinalState = domain.ScanPartialBudgetExceeded
	}
	sm.to(ctx, stats.FinalState)
	stats.ScanTimeSeconds = s.now().Sub(start).Seconds()

	s.logger.InfoContext(ctx, "scan complete",
		slog.Int("records", stats.RecordsIndexed),
		slog.Int("candidates", stats.CandidatesEvaluated),
		slog.Int("found", stats.TotalFound),
		slog.Int("returned", stats.Count),
		slog.Bool("partial", stats.Partial),
		slog.Float64("elapsed_s", stats.ScanTimeSeconds),
	)
	return ranked, stats
}

// Rank orders opportunities by confidence (high first), then by descending
// spread, and truncates to limit when limit > 0. Remaining ties fall back to
// match score and the dedup key so the order is deterministic.
func Rank(opps []domain.ArbitrageOpportunity, limit int) []domain.ArbitrageOpportunity {
	out := append([]domain.ArbitrageOpportunity{}, opps...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := a.Confidence.Rank(), b.Confidence.Rank(); ra != rb {
			return ra < rb
		}
		if a.SpreadPercent != b.SpreadPercent {
			return a.SpreadPercent > b.SpreadPercent
		}
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		return DedupKey(a) < DedupKey(b)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func summarize(stats *domain.ScanStats, opps []domain.ArbitrageOpportunity) {
	stats.Count = len(opps)
	if len(opps) == 0 {
		return
	}
	pairs := make(map[string]struct{})
	var spreadSum float64
	for _, o := range opps {
		spreadSum += o.SpreadPercent
		stats.TotalProfitPotential += o.ProfitPotential
		pairs[o.PlatformPair()] = struct{}{}
	}
	stats.AvgSpreadPercent = spreadSum / float64(len(opps))
	for p := range pairs {
		stats.PlatformPairs = append(stats.PlatformPairs, p)
	}
	sort.Strings(stats.PlatformPairs)
	stats.PlatformPairCount = len(stats.PlatformPairs)
}

// partition splits records by platform, preserving input order within each
// platform, and returns the platforms in lexical order.
func partition(records []domain.MarketRecord) (map[string][]domain.MarketRecord, []string) {
	by := make(map[string][]domain.MarketRecord)
	for _, r := range records {
		by[r.Platform] = append(by[r.Platform], r)
	}
	order := make([]string, 0, len(by))
	for p := range by {
		order = append(order, p)
	}
	sort.Strings(order)
	return by, order
}
