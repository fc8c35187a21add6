package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// FetchConfig tunes how records are gathered before a scan.
type FetchConfig struct {
	MinVolume     float64
	MaxConcurrent int
	// MaxAge drops records whose UpdatedAt is older; zero disables the check.
	// Records without a timestamp are always kept.
	MaxAge  time.Duration
	Timeout time.Duration
}

// FetchReport describes one source's contribution to a fetch.
type FetchReport struct {
	Platform string  `json:"platform"`
	Fetched  int     `json:"fetched"`
	Kept     int     `json:"kept"`
	Seconds  float64 `json:"seconds"`
	Error    string  `json:"error,omitempty"`
}

// Fetcher pulls records from every source concurrently and applies the
// pre-scan filters.
type Fetcher struct {
	sources []domain.RecordSource
	cfg     FetchConfig
	now     func() time.Time
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher over sources.
func NewFetcher(sources []domain.RecordSource, cfg FetchConfig, logger *slog.Logger) *Fetcher {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	return &Fetcher{
		sources: sources,
		cfg:     cfg,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "fetcher")),
	}
}

// Fetch returns the filtered records of all sources, in source order. A
// failing source is reported and skipped; Fetch fails only when no sources
// are configured or every source failed.
func (f *Fetcher) Fetch(ctx context.Context) ([]domain.MarketRecord, []FetchReport, error) {
	if len(f.sources) == 0 {
		return nil, nil, domain.ErrNoSources
	}

	results := make([][]domain.MarketRecord, len(f.sources))
	reports := make([]FetchReport, len(f.sources))
	errs := make([]error, len(f.sources))

	var g errgroup.Group
	g.SetLimit(f.cfg.MaxConcurrent)
	for i, src := range f.sources {
		g.Go(func() error {
			results[i], reports[i], errs[i] = f.fetchOne(ctx, src)
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.MarketRecord
	failed := 0
	for i := range f.sources {
		if errs[i] != nil {
			failed++
			continue
		}
		out = append(out, results[i]...)
	}
	if failed == len(f.sources) {
		return nil, reports, fmt.Errorf("fetcher: all %d sources failed: %w", failed, errors.Join(errs...))
	}
	return out, reports, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, src domain.RecordSource) ([]domain.MarketRecord, FetchReport, error) {
	start := f.now()
	rep := FetchReport{Platform: src.Platform()}

	if f.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Timeout)
		defer cancel()
	}

	recs, err := src.Fetch(ctx)
	rep.Seconds = f.now().Sub(start).Seconds()
	if err != nil {
		rep.Error = err.Error()
		f.logger.WarnContext(ctx, "source fetch failed",
			slog.String("platform", rep.Platform),
			slog.String("error", err.Error()),
		)
		return nil, rep, err
	}

	kept := f.filter(recs)
	rep.Fetched, rep.Kept = len(recs), len(kept)
	f.logger.DebugContext(ctx, "source fetched",
		slog.String("platform", rep.Platform),
		slog.Int("fetched", rep.Fetched),
		slog.Int("kept", rep.Kept),
	)
	return kept, rep, nil
}

// filter keeps records with a usable price, enough volume and a recent
// enough timestamp. Later duplicates of a platform:id are dropped.
func (f *Fetcher) filter(recs []domain.MarketRecord) []domain.MarketRecord {
	now := f.now()
	seen := make(map[string]bool, len(recs))
	out := make([]domain.MarketRecord, 0, len(recs))
	for _, r := range recs {
		if !r.HasValidPrice() || r.Volume < f.cfg.MinVolume {
			continue
		}
		if f.cfg.MaxAge > 0 && !r.UpdatedAt.IsZero() && now.Sub(r.UpdatedAt) > f.cfg.MaxAge {
			continue
		}
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	return out
}
