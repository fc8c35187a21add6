package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// StoreSource reads one platform's records from a domain.RecordStore, which
// the ingest mode keeps populated.
type StoreSource struct {
	platform string
	store    domain.RecordStore
	maxAge   time.Duration
	now      func() time.Time
}

// NewStoreSource creates a StoreSource. A positive maxAge restricts Fetch to
// records updated within that window.
func NewStoreSource(platform string, store domain.RecordStore, maxAge time.Duration) *StoreSource {
	return &StoreSource{platform: platform, store: store, maxAge: maxAge, now: time.Now}
}

// Platform returns the platform this source serves.
func (s *StoreSource) Platform() string { return s.platform }

// Fetch lists the platform's stored records.
func (s *StoreSource) Fetch(ctx context.Context) ([]domain.MarketRecord, error) {
	var opts domain.ListOpts
	if s.maxAge > 0 {
		since := s.now().Add(-s.maxAge)
		opts.Since = &since
	}
	recs, err := s.store.ListByPlatform(ctx, s.platform, opts)
	if err != nil {
		return nil, fmt.Errorf("feed: list %s: %w", s.platform, err)
	}
	return recs, nil
}

var _ domain.RecordSource = (*StoreSource)(nil)
