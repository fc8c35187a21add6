package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
}

// RecordSource yields already-normalized market records for one platform.
type RecordSource interface {
	Platform() string
	Fetch(ctx context.Context) ([]MarketRecord, error)
}

// RecordStore persists normalized market records.
type RecordStore interface {
	UpsertBatch(ctx context.Context, records []MarketRecord) (int64, error)
	ListByPlatform(ctx context.Context, platform string, opts ListOpts) ([]MarketRecord, error)
	Count(ctx context.Context) (int64, error)
}

// ScanSummary is the persisted headline of one scan run.
type ScanSummary struct {
	ID         string     `json:"id"`
	ComputedAt time.Time  `json:"computed_at"`
	Params     ScanParams `json:"params"`
	Stats      ScanStats  `json:"stats"`
	ArchiveKey string     `json:"archive_key,omitempty"`
}

// ScanStore persists scan history.
type ScanStore interface {
	Insert(ctx context.Context, result ScanResult, archiveKey string) error
	GetByID(ctx context.Context, id string) (ScanResult, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]ScanSummary, error)
}
