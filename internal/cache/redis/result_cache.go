package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/redis/go-redis/v9"
)

// ResultCache implements domain.ResultCache by storing each scan result as a
// JSON string under "<ns>:scan:<key>" with SET EX. A single SET replaces the
// value atomically, so readers see either the old or the new result.
type ResultCache struct {
	c      *Client
	logger *slog.Logger
}

// NewResultCache creates a ResultCache backed by the given Client. A nil
// logger discards output.
func NewResultCache(c *Client, logger *slog.Logger) *ResultCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResultCache{c: c, logger: logger.With(slog.String("component", "redis_result_cache"))}
}

// Get returns the cached result for key. Transport and decoding failures are
// logged and reported as a miss so the caller falls back to a fresh scan.
func (rc *ResultCache) Get(ctx context.Context, key string) (domain.ScanResult, bool) {
	raw, err := rc.c.rdb.Get(ctx, rc.c.Key("scan", key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			rc.logger.WarnContext(ctx, "cache get failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return domain.ScanResult{}, false
	}
	var res domain.ScanResult
	if err := json.Unmarshal(raw, &res); err != nil {
		rc.logger.WarnContext(ctx, "cache entry undecodable", slog.String("key", key), slog.String("error", err.Error()))
		return domain.ScanResult{}, false
	}
	return res, true
}

// Set stores value under key with the given ttl.
func (rc *ResultCache) Set(ctx context.Context, key string, value domain.ScanResult, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("redis: encode scan %s: %w", key, err)
	}
	if err := rc.c.rdb.Set(ctx, rc.c.Key("scan", key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis: cache set %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.ResultCache = (*ResultCache)(nil)
