package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/notify"
)

// Bus channel and stream names used by the recorder.
const (
	ScanCompletedChannel = "scan_completed"
	ScanHistoryStream    = "scan_history"
)

// ScanArchiver uploads a full scan result and returns its object key.
type ScanArchiver interface {
	ArchiveScan(ctx context.Context, res domain.ScanResult) (string, error)
}

// AlertNotifier is the notify.Notifier surface the recorder needs.
type AlertNotifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// RecorderConfig wires a Recorder. Every dependency is optional.
type RecorderConfig struct {
	Store         domain.ScanStore
	Archiver      ScanArchiver
	Bus           domain.SignalBus
	Notifier      AlertNotifier
	MinConfidence domain.Confidence
	// MaxAlerts caps opportunity alerts per scan; zero means 5.
	MaxAlerts int
}

// Recorder applies the post-scan side effects in monitor mode: archive,
// history row, bus publication and alerts. Each step is best effort; a
// failure is logged and the remaining steps still run.
type Recorder struct {
	cfg    RecorderConfig
	logger *slog.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = 5
	}
	if cfg.MinConfidence == "" {
		cfg.MinConfidence = domain.ConfidenceHigh
	}
	return &Recorder{cfg: cfg, logger: logger.With(slog.String("component", "recorder"))}
}

// scanEvent is the payload published on ScanCompletedChannel.
type scanEvent struct {
	Event      string           `json:"event"`
	ScanID     string           `json:"scan_id"`
	ComputedAt string           `json:"computed_at"`
	Stats      domain.ScanStats `json:"stats"`
	ArchiveKey string           `json:"archive_key,omitempty"`
	Top        []topOpportunity `json:"top,omitempty"`
}

type topOpportunity struct {
	Title         string            `json:"title"`
	Pair          string            `json:"pair"`
	SpreadPercent float64           `json:"spread_percent"`
	Confidence    domain.Confidence `json:"confidence"`
}

// Record runs every configured side effect for res and returns how many
// alerts were sent.
func (r *Recorder) Record(ctx context.Context, res domain.ScanResult) int {
	log := r.logger.With(slog.String("scan_id", res.ID))

	var archiveKey string
	if r.cfg.Archiver != nil {
		key, err := r.cfg.Archiver.ArchiveScan(ctx, res)
		if err != nil {
			log.WarnContext(ctx, "archive failed", slog.String("error", err.Error()))
		} else {
			archiveKey = key
		}
	}

	if r.cfg.Store != nil {
		if err := r.cfg.Store.Insert(ctx, res, archiveKey); err != nil {
			log.WarnContext(ctx, "history insert failed", slog.String("error", err.Error()))
		}
	}

	if r.cfg.Bus != nil {
		if err := r.publish(ctx, res, archiveKey); err != nil {
			log.WarnContext(ctx, "publish failed", slog.String("error", err.Error()))
		}
	}

	sent := 0
	if r.cfg.Notifier != nil {
		sent = r.alert(ctx, res)
	}
	return sent
}

func (r *Recorder) publish(ctx context.Context, res domain.ScanResult, archiveKey string) error {
	ev := scanEvent{
		Event:      ScanCompletedChannel,
		ScanID:     res.ID,
		ComputedAt: res.ComputedAt.Format(time.RFC3339),
		Stats:      res.Stats,
		ArchiveKey: archiveKey,
	}
	for i, o := range res.Opportunities {
		if i == 3 {
			break
		}
		ev.Top = append(ev.Top, topOpportunity{
			Title:         o.CanonicalTitle,
			Pair:          o.PlatformPair(),
			SpreadPercent: o.SpreadPercent,
			Confidence:    o.Confidence,
		})
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("recorder: marshal event: %w", err)
	}
	if err := r.cfg.Bus.Publish(ctx, ScanCompletedChannel, payload); err != nil {
		return err
	}
	return r.cfg.Bus.StreamAppend(ctx, ScanHistoryStream, payload)
}

func (r *Recorder) alert(ctx context.Context, res domain.ScanResult) int {
	if res.Stats.Partial {
		msg := fmt.Sprintf("Scan %s stopped at the %.0fs budget after %d candidate comparisons; %d opportunities kept.",
			res.ID, res.Stats.BudgetSeconds, res.Stats.CandidatesEvaluated, res.Stats.Count)
		if err := r.cfg.Notifier.Notify(ctx, notify.EventScanPartial, "Partial scan", msg); err != nil {
			r.logger.WarnContext(ctx, "partial-scan alert failed", slog.String("error", err.Error()))
		}
	}

	minRank := r.cfg.MinConfidence.Rank()
	sent := 0
	for _, o := range res.Opportunities {
		if sent == r.cfg.MaxAlerts {
			break
		}
		if o.Confidence.Rank() > minRank {
			continue
		}
		title, msg := FormatAlert(o)
		if err := r.cfg.Notifier.Notify(ctx, notify.EventOpportunity, title, msg); err != nil {
			r.logger.WarnContext(ctx, "opportunity alert failed", slog.String("error", err.Error()))
			continue
		}
		sent++
	}
	return sent
}

// FormatAlert renders an opportunity as a chat notification.
func FormatAlert(o domain.ArbitrageOpportunity) (title, message string) {
	title = fmt.Sprintf("%.2f%% spread %s (%s)", o.SpreadPercent, o.PlatformPair(), o.Confidence)

	var b strings.Builder
	b.WriteString(o.CanonicalTitle)
	b.WriteString("\n")
	b.WriteString(o.StrategySummary)
	fmt.Fprintf(&b, "\nmatch %.2f, feasibility %.0f (%s), min volume $%.0f",
		o.MatchScore, o.FeasibilityScore, o.FeasibilityLabel, o.MinSideVolume)
	return title, b.String()
}
