package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/feed"
)

// RecordArchiver uploads a platform snapshot and returns its object key.
type RecordArchiver interface {
	ArchiveRecords(ctx context.Context, platform string, records []domain.MarketRecord, at time.Time) (string, error)
}

// IngestReport summarizes one source's ingest.
type IngestReport struct {
	Platform   string `json:"platform"`
	Records    int    `json:"records"`
	Upserted   int64  `json:"upserted"`
	ArchiveKey string `json:"archive_key,omitempty"`
	Error      string `json:"error,omitempty"`
}

// IngestService loads records from file sources into the record store,
// optionally snapshots them to object storage, and signals subscribers.
type IngestService struct {
	sources  []domain.RecordSource
	store    domain.RecordStore
	archiver RecordArchiver   // optional
	bus      domain.SignalBus // optional
	now      func() time.Time
	logger   *slog.Logger
}

// NewIngestService creates an IngestService. archiver and bus may be nil.
func NewIngestService(sources []domain.RecordSource, store domain.RecordStore, archiver RecordArchiver, bus domain.SignalBus, logger *slog.Logger) *IngestService {
	return &IngestService{
		sources:  sources,
		store:    store,
		archiver: archiver,
		bus:      bus,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "ingest_service")),
	}
}

// Ingest processes every source in order. It returns an error only when no
// source is configured or every source failed.
func (s *IngestService) Ingest(ctx context.Context) ([]IngestReport, error) {
	if len(s.sources) == 0 {
		return nil, domain.ErrNoSources
	}
	reports := make([]IngestReport, 0, len(s.sources))
	failed := 0
	for _, src := range s.sources {
		rep, err := s.ingestOne(ctx, src)
		if err != nil {
			rep.Error = err.Error()
			failed++
			s.logger.ErrorContext(ctx, "ingest failed",
				slog.String("platform", rep.Platform),
				slog.String("error", err.Error()),
			)
		}
		reports = append(reports, rep)
	}
	if failed == len(s.sources) {
		return reports, fmt.Errorf("ingest_service: all %d sources failed", failed)
	}
	return reports, nil
}

func (s *IngestService) ingestOne(ctx context.Context, src domain.RecordSource) (IngestReport, error) {
	rep := IngestReport{Platform: src.Platform()}
	recs, err := src.Fetch(ctx)
	if err != nil {
		return rep, fmt.Errorf("ingest_service: fetch %s: %w", rep.Platform, err)
	}
	rep.Records = len(recs)

	n, err := s.store.UpsertBatch(ctx, recs)
	rep.Upserted = n
	if err != nil {
		return rep, fmt.Errorf("ingest_service: upsert %s: %w", rep.Platform, err)
	}

	now := s.now().UTC()
	if s.archiver != nil {
		key, err := s.archiver.ArchiveRecords(ctx, rep.Platform, recs, now)
		if err != nil {
			s.logger.WarnContext(ctx, "snapshot archive failed", slog.String("platform", rep.Platform), slog.String("error", err.Error()))
		}
		rep.ArchiveKey = key
	}

	if s.bus != nil {
		payload, _ := json.Marshal(feed.RecordsUpdated{Platform: rep.Platform, Count: n, At: now})
		if err := s.bus.Publish(ctx, feed.RecordsUpdatedChannel, payload); err != nil {
			s.logger.WarnContext(ctx, "refresh signal failed", slog.String("platform", rep.Platform), slog.String("error", err.Error()))
		}
	}

	s.logger.InfoContext(ctx, "ingested",
		slog.String("platform", rep.Platform),
		slog.Int("records", rep.Records),
		slog.Int64("upserted", rep.Upserted),
	)
	return rep, nil
}
