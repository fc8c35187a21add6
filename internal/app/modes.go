package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/feed"
	"github.com/alanyoungcy/polyarb/internal/server"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/service"
)

const (
	// refreshDebounce coalesces bursts of records_updated signals.
	refreshDebounce = 2 * time.Second
	// shutdownTimeout bounds the graceful HTTP drain.
	shutdownTimeout = 5 * time.Second
)

// newScanService builds the scan service shared by every scanning mode.
func (a *App) newScanService(deps *Dependencies) *service.ScanService {
	return service.NewScanService(service.ScanServiceConfig{
		Fetcher:  deps.Fetcher,
		Scanner:  deps.Scanner,
		Cache:    deps.Cache,
		Locks:    deps.Locks,
		TTL:      a.cfg.Cache.TTL.Duration,
		LockWait: a.cfg.Cache.LockWait.Duration,
	}, a.logger)
}

// ServerMode serves the HTTP API until the context is cancelled.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode", slog.Int("sources", len(deps.Sources)))

	svc := a.newScanService(deps)
	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps, svc)
	a.startCacheSweeper(ctx, g, deps)
	return g.Wait()
}

// ScanMode runs one fresh scan with the configured thresholds and writes the
// result to the app's output as indented JSON.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode", slog.Int("sources", len(deps.Sources)))

	svc := a.newScanService(deps)
	res, err := svc.Run(ctx, domain.ScanParams{})
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("scan mode: write result: %w", err)
	}
	return nil
}

// MonitorMode scans every monitor.interval and records each result. A
// records_updated signal on the bus triggers an early scan. The HTTP server
// runs alongside when enabled.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode",
		slog.Duration("interval", a.cfg.Monitor.Interval.Duration),
	)

	svc := a.newScanService(deps)
	recorder := service.NewRecorder(a.recorderConfig(deps), a.logger)

	g, ctx := errgroup.WithContext(ctx)

	// Buffered so a refresh arriving mid-scan queues exactly one rerun.
	triggerCh := make(chan struct{}, 1)
	trigger := func() {
		select {
		case triggerCh <- struct{}{}:
		default:
		}
	}

	if deps.Bus != nil {
		listener := feed.NewRefreshListener(deps.Bus, refreshDebounce, func(ctx context.Context, platforms []string) {
			a.logger.InfoContext(ctx, "records refreshed, scheduling scan", slog.Any("platforms", platforms))
			trigger()
		}, a.logger)
		g.Go(func() error {
			return listener.Run(ctx)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Monitor.Interval.Duration)
		defer ticker.Stop()

		trigger()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			case <-triggerCh:
			}
			a.monitorOnce(ctx, svc, recorder, deps)
		}
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, svc)
	}
	a.startCacheSweeper(ctx, g, deps)

	return g.Wait()
}

// monitorOnce runs and records a single scan. Failures are logged and
// notified; the monitor keeps going.
func (a *App) monitorOnce(ctx context.Context, svc *service.ScanService, recorder *service.Recorder, deps *Dependencies) {
	res, err := svc.Run(ctx, domain.ScanParams{})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		a.logger.ErrorContext(ctx, "monitor scan failed", slog.String("error", err.Error()))
		if nerr := deps.Notifier.Notify(ctx, "error", "Scan failed", err.Error()); nerr != nil {
			a.logger.WarnContext(ctx, "error notification failed", slog.String("error", nerr.Error()))
		}
		return
	}
	alerts := recorder.Record(ctx, res)
	a.logger.InfoContext(ctx, "monitor scan recorded",
		slog.String("scan_id", res.ID),
		slog.Int("opportunities", len(res.Opportunities)),
		slog.Int("alerts", alerts),
	)
}

// recorderConfig picks the recorder side effects enabled by [monitor] and
// available in deps. Interfaces are only set for non-nil backends.
func (a *App) recorderConfig(deps *Dependencies) service.RecorderConfig {
	rc := service.RecorderConfig{
		MinConfidence: domain.ParseConfidence(a.cfg.Monitor.NotifyMinConfidence),
	}
	if a.cfg.Monitor.Record && deps.ScanStore != nil {
		rc.Store = deps.ScanStore
	}
	if a.cfg.Monitor.Archive && deps.Archiver != nil {
		rc.Archiver = deps.Archiver
	}
	if a.cfg.Monitor.Publish && deps.Bus != nil {
		rc.Bus = deps.Bus
	}
	if deps.Notifier.Enabled() {
		rc.Notifier = deps.Notifier
	}
	return rc
}

// IngestMode loads every file source into the record store once and logs a
// per-platform summary.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode", slog.Int("sources", len(deps.FileSources)))
	if deps.RecordStore == nil {
		return fmt.Errorf("ingest mode: %w", domain.ErrNoStore)
	}

	var archiver service.RecordArchiver
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	var bus domain.SignalBus
	if deps.Bus != nil {
		bus = deps.Bus
	}

	ingest := service.NewIngestService(deps.FileSources, deps.RecordStore, archiver, bus, a.logger)
	reports, err := ingest.Ingest(ctx)
	for _, rep := range reports {
		a.logger.InfoContext(ctx, "ingest summary",
			slog.String("platform", rep.Platform),
			slog.Int("records", rep.Records),
			slog.Int64("upserted", rep.Upserted),
			slog.String("archive_key", rep.ArchiveKey),
			slog.String("error", rep.Error),
		)
	}
	if err != nil {
		return fmt.Errorf("ingest mode: %w", err)
	}
	return nil
}

// startHTTPServer adds the HTTP server to g. The server is shut down
// gracefully when ctx is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *service.ScanService) {
	handlers := server.Handlers{
		Health:        handler.NewHealthHandler(deps.Checks, a.logger),
		Status:        handler.NewStatusHandler(a.cfg.Mode, svc),
		Opportunities: handler.NewOpportunityHandler(svc, a.logger),
	}
	if deps.ScanStore != nil {
		handlers.Scans = handler.NewScanHandler(deps.ScanStore, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:               a.cfg.Server.Port,
		CORSOrigins:        a.cfg.Server.CORSOrigins,
		APIKey:             a.cfg.Server.APIKey,
		RateLimitPerMinute: a.cfg.Server.RateLimitPerMinute,
		WriteTimeout:       a.cfg.Scan.TimeBudget.Duration + a.cfg.Feed.FetchTimeout.Duration + 10*time.Second,
	}, handlers, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startCacheSweeper evicts expired in-memory results once per TTL. It is a
// no-op for the redis backend, where keys expire on their own.
func (a *App) startCacheSweeper(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.MemoryCache == nil {
		return
	}
	g.Go(func() error {
		ticker := time.NewTicker(a.cfg.Cache.TTL.Duration)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := deps.MemoryCache.Sweep(); n > 0 {
					a.logger.DebugContext(ctx, "swept expired results", slog.Int("evicted", n))
				}
			}
		}
	})
}
