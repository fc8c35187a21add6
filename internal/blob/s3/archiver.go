package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// multipartThreshold is the payload size above which uploads switch to the
// multipart transfer manager.
const multipartThreshold = 8 * 1024 * 1024

// Archiver writes scan results and ingested record snapshots as JSON objects.
//
//	scans/2026/10/14/<scan-id>.json
//	records/2026/10/14/<platform>-150405.jsonl
type Archiver struct {
	writer domain.BlobWriter
}

// NewArchiver creates an Archiver on top of any domain.BlobWriter.
func NewArchiver(writer domain.BlobWriter) *Archiver {
	return &Archiver{writer: writer}
}

// ScanKey returns the object path for a scan computed at t.
func ScanKey(id string, t time.Time) string {
	return fmt.Sprintf("scans/%s/%s.json", t.UTC().Format("2006/01/02"), id)
}

// RecordsKey returns the object path for a platform snapshot taken at t.
func RecordsKey(platform string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("records/%s/%s-%s.jsonl", t.Format("2006/01/02"), platform, t.Format("150405"))
}

// ArchiveScan uploads the full scan result and returns its object path.
func (a *Archiver) ArchiveScan(ctx context.Context, res domain.ScanResult) (string, error) {
	buf, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive scan %s marshal: %w", res.ID, err)
	}
	key := ScanKey(res.ID, res.ComputedAt)
	if err := a.upload(ctx, key, buf, "application/json"); err != nil {
		return "", fmt.Errorf("s3blob: archive scan %s: %w", res.ID, err)
	}
	return key, nil
}

// ArchiveRecords uploads one platform's records as JSONL and returns the
// object path. An empty slice uploads nothing and returns "".
func (a *Archiver) ArchiveRecords(ctx context.Context, platform string, records []domain.MarketRecord, at time.Time) (string, error) {
	if len(records) == 0 {
		return "", nil
	}
	buf, err := marshalJSONL(records)
	if err != nil {
		return "", fmt.Errorf("s3blob: archive records %s marshal: %w", platform, err)
	}
	key := RecordsKey(platform, at)
	if err := a.upload(ctx, key, buf, "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: archive records %s: %w", platform, err)
	}
	return key, nil
}

func (a *Archiver) upload(ctx context.Context, key string, buf []byte, contentType string) error {
	if len(buf) > multipartThreshold {
		return a.writer.PutMultipart(ctx, key, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, key, bytes.NewReader(buf), contentType)
}

// marshalJSONL encodes each element as one compact JSON line.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
