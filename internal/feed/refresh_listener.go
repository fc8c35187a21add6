package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"time"
)

// RecordsUpdatedChannel is the bus channel ingest publishes to after writing
// a platform's records.
const RecordsUpdatedChannel = "records_updated"

// RecordsUpdated is the payload published on RecordsUpdatedChannel.
type RecordsUpdated struct {
	Platform string    `json:"platform"`
	Count    int64     `json:"count"`
	At       time.Time `json:"at"`
}

// Subscriber is the subscribe half of domain.SignalBus.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RefreshListener turns "records_updated" signals into onRefresh calls. Bursts
// arriving within the debounce window collapse into one call.
type RefreshListener struct {
	bus       Subscriber
	debounce  time.Duration
	onRefresh func(ctx context.Context, platforms []string)
	logger    *slog.Logger
}

// NewRefreshListener creates a RefreshListener.
func NewRefreshListener(bus Subscriber, debounce time.Duration, onRefresh func(context.Context, []string), logger *slog.Logger) *RefreshListener {
	return &RefreshListener{
		bus:       bus,
		debounce:  debounce,
		onRefresh: onRefresh,
		logger:    logger.With(slog.String("component", "refresh_listener")),
	}
}

// Run blocks until ctx is done or the subscription closes.
func (l *RefreshListener) Run(ctx context.Context) error {
	ch, err := l.bus.Subscribe(ctx, RecordsUpdatedChannel)
	if err != nil {
		return err
	}
	l.logger.Info("refresh listener started")
	defer l.logger.Info("refresh listener stopped")

	pending := map[string]bool{}
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var ev RecordsUpdated
			if err := json.Unmarshal(data, &ev); err != nil || ev.Platform == "" {
				l.logger.Debug("ignoring malformed refresh signal", slog.Int("payload_len", len(data)))
				continue
			}
			pending[ev.Platform] = true
			if fire == nil {
				fire = time.After(l.debounce)
			}
		case <-fire:
			fire = nil
			platforms := slices.Sorted(maps.Keys(pending))
			clear(pending)
			l.onRefresh(ctx, platforms)
		}
	}
}
