package domain

import (
	"context"
	"io"
)

// BlobWriter stores scan results and ingested record snapshots in object
// storage. Keys are relative to the configured bucket prefix.
type BlobWriter interface {
	// Put stores one archive object under key.
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
	// PutMultipart stores a large snapshot in parts of partSize bytes.
	PutMultipart(ctx context.Context, key string, data io.Reader, partSize int64) error
}
