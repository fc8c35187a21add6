// Package feed supplies normalized market records to the scanner from files
// on disk or from the record store, and listens for refresh signals.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// maxLineBytes bounds a single JSONL record.
const maxLineBytes = 1 << 20

// FileSource reads one platform's records from a JSON array or JSON Lines
// file. The format is detected from the first non-space byte.
type FileSource struct {
	platform string
	path     string
	logger   *slog.Logger
}

// NewFileSource creates a FileSource. A nil logger discards output.
func NewFileSource(platform, path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileSource{
		platform: platform,
		path:     path,
		logger:   logger.With(slog.String("component", "file_source"), slog.String("platform", platform)),
	}
}

// Platform returns the platform this source serves.
func (s *FileSource) Platform() string { return s.platform }

// Fetch reads and decodes the file. Records without a platform inherit the
// source's; records that name another platform or fail validation are
// skipped.
func (s *FileSource) Fetch(ctx context.Context) ([]domain.MarketRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("feed: read %s: %w", s.path, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := decodeRecords(data)
	if err != nil {
		return nil, fmt.Errorf("feed: decode %s: %w", s.path, err)
	}

	out := make([]domain.MarketRecord, 0, len(raw))
	skipped := 0
	for _, r := range raw {
		if r.Platform == "" {
			r.Platform = s.platform
		}
		if r.Platform != s.platform {
			skipped++
			continue
		}
		if err := r.Validate(); err != nil {
			s.logger.Debug("skipping record", slog.String("error", err.Error()))
			skipped++
			continue
		}
		out = append(out, r)
	}
	if skipped > 0 {
		s.logger.Warn("records skipped", slog.Int("skipped", skipped), slog.Int("kept", len(out)))
	}
	return out, nil
}

func decodeRecords(data []byte) ([]domain.MarketRecord, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var recs []domain.MarketRecord
		if err := json.Unmarshal(trimmed, &recs); err != nil {
			return nil, err
		}
		return recs, nil
	}

	var recs []domain.MarketRecord
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var r domain.MarketRecord
		if err := json.Unmarshal(b, &r); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		recs = append(recs, r)
	}
	return recs, sc.Err()
}

var _ domain.RecordSource = (*FileSource)(nil)
