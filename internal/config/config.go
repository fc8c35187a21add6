// Package config defines the top-level configuration for the arbitrage
// scanner and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYARB_* environment variables.
type Config struct {
	Scan     ScanConfig     `toml:"scan"`
	Feed     FeedConfig     `toml:"feed"`
	Cache    CacheConfig    `toml:"cache"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ScanConfig holds the matching and scoring thresholds.
type ScanConfig struct {
	MinSpreadPercent          float64  `toml:"min_spread_percent"`
	MinMatchScore             float64  `toml:"min_match_score"`
	ResultLimit               int      `toml:"result_limit"`
	TimeBudget                duration `toml:"time_budget"`
	SlugOverlapThreshold      float64  `toml:"slug_overlap_threshold"`
	CandidateSharedTokenFloor int      `toml:"candidate_shared_token_floor"`
}

// SourceConfig describes one per-platform record source.
type SourceConfig struct {
	Platform string `toml:"platform"`
	// Kind is "file" (JSON or JSONL on disk) or "postgres" (market_records).
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

// FeedConfig controls how records are gathered before a scan.
type FeedConfig struct {
	Sources              []SourceConfig `toml:"sources"`
	MinVolume            float64        `toml:"min_volume"`
	MaxConcurrentFetches int            `toml:"max_concurrent_fetches"`
	MaxRecordAge         duration       `toml:"max_record_age"`
	FetchTimeout         duration       `toml:"fetch_timeout"`
}

// CacheConfig selects and tunes the scan result cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend  string   `toml:"backend"`
	TTL      duration `toml:"ttl"`
	LockWait duration `toml:"lock_wait"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Prefix         string `toml:"prefix"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled            bool     `toml:"enabled"`
	Port               int      `toml:"port"`
	CORSOrigins        []string `toml:"cors_origins"`
	APIKey             string   `toml:"api_key"`
	RateLimitPerMinute int      `toml:"rate_limit_per_minute"`
}

// MonitorConfig controls periodic scanning.
type MonitorConfig struct {
	Interval duration `toml:"interval"`
	Archive  bool     `toml:"archive"`
	Record   bool     `toml:"record"`
	Publish  bool     `toml:"publish"`
	// NotifyMinConfidence is the lowest confidence that triggers an alert:
	// "high", "medium" or "low".
	NotifyMinConfidence string `toml:"notify_min_confidence"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Scan: ScanConfig{
			MinSpreadPercent:          0.5,
			MinMatchScore:             0.40,
			ResultLimit:               50,
			TimeBudget:                duration{60 * time.Second},
			SlugOverlapThreshold:      0.35,
			CandidateSharedTokenFloor: 1,
		},
		Feed: FeedConfig{
			MinVolume:            50,
			MaxConcurrentFetches: 4,
			FetchTimeout:         duration{30 * time.Second},
		},
		Cache: CacheConfig{
			Backend:  "memory",
			TTL:      duration{30 * time.Second},
			LockWait: duration{10 * time.Second},
		},
		Supabase: SupabaseConfig{
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "require",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyarb",
			UseSSL:         false,
			ForcePathStyle: true,
			Prefix:         "",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8080,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Monitor: MonitorConfig{
			Interval:            duration{2 * time.Minute},
			Archive:             true,
			Record:              true,
			Publish:             true,
			NotifyMinConfidence: "high",
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "scan_partial", "error"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"server":  true,
	"scan":    true,
	"monitor": true,
	"ingest":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validSourceKinds = map[string]bool{
	"file":     true,
	"postgres": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, scan, monitor, ingest)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Scan
	if c.Scan.MinSpreadPercent < 0.1 || c.Scan.MinSpreadPercent > 20 {
		errs = append(errs, fmt.Sprintf("scan: min_spread_percent must be 0.1-20, got %v", c.Scan.MinSpreadPercent))
	}
	if c.Scan.MinMatchScore < 0.3 || c.Scan.MinMatchScore > 1.0 {
		errs = append(errs, fmt.Sprintf("scan: min_match_score must be 0.3-1.0, got %v", c.Scan.MinMatchScore))
	}
	if c.Scan.ResultLimit < 1 || c.Scan.ResultLimit > 200 {
		errs = append(errs, fmt.Sprintf("scan: result_limit must be 1-200, got %d", c.Scan.ResultLimit))
	}
	if c.Scan.TimeBudget.Duration <= 0 {
		errs = append(errs, "scan: time_budget must be > 0")
	}
	if c.Scan.SlugOverlapThreshold < 0 || c.Scan.SlugOverlapThreshold > 1 {
		errs = append(errs, "scan: slug_overlap_threshold must be 0-1")
	}
	if c.Scan.CandidateSharedTokenFloor < 1 {
		errs = append(errs, "scan: candidate_shared_token_floor must be >= 1")
	}

	// Feed
	needsSources := c.Mode != "ingest"
	if needsSources && len(c.Feed.Sources) == 0 {
		errs = append(errs, "feed: at least one source is required")
	}
	usesPostgres := false
	for i, s := range c.Feed.Sources {
		if strings.TrimSpace(s.Platform) == "" {
			errs = append(errs, fmt.Sprintf("feed: sources[%d]: platform must not be empty", i))
		}
		if !validSourceKinds[s.Kind] {
			errs = append(errs, fmt.Sprintf("feed: sources[%d]: unknown kind %q (valid: file, postgres)", i, s.Kind))
		}
		if s.Kind == "file" && s.Path == "" {
			errs = append(errs, fmt.Sprintf("feed: sources[%d]: path is required for kind file", i))
		}
		if s.Kind == "postgres" {
			usesPostgres = true
		}
	}
	if c.Feed.MinVolume < 0 {
		errs = append(errs, "feed: min_volume must be >= 0")
	}
	if c.Feed.MaxConcurrentFetches < 1 {
		errs = append(errs, "feed: max_concurrent_fetches must be >= 1")
	}

	// Cache
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if !c.Redis.Enabled {
			errs = append(errs, "cache: backend redis requires redis.enabled")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache: unknown backend %q (valid: memory, redis)", c.Cache.Backend))
	}
	if c.Cache.TTL.Duration < 20*time.Second || c.Cache.TTL.Duration > 60*time.Second {
		errs = append(errs, fmt.Sprintf("cache: ttl must be 20s-60s, got %s", c.Cache.TTL.Duration))
	}

	// Supabase
	if (usesPostgres || c.Mode == "ingest") && !c.Supabase.Enabled {
		errs = append(errs, "supabase: must be enabled for postgres sources and ingest mode")
	}
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled || c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, "server: rate_limit_per_minute must be >= 0")
	}

	// Monitor
	if c.Mode == "monitor" && c.Monitor.Interval.Duration <= 0 {
		errs = append(errs, "monitor: interval must be > 0")
	}
	switch c.Monitor.NotifyMinConfidence {
	case "high", "medium", "low":
	default:
		errs = append(errs, fmt.Sprintf("monitor: notify_min_confidence %q (valid: high, medium, low)", c.Monitor.NotifyMinConfidence))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
