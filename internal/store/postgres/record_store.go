package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// RecordStore implements domain.RecordStore over the market_records table.
type RecordStore struct {
	pool *pgxpool.Pool
}

// NewRecordStore creates a RecordStore backed by the given pool.
func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

const upsertRecordSQL = `
	INSERT INTO market_records (
		platform, id, title, price, volume, slug, url, updated_at, ingested_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	ON CONFLICT (platform, id) DO UPDATE SET
		title       = EXCLUDED.title,
		price       = EXCLUDED.price,
		volume      = EXCLUDED.volume,
		slug        = EXCLUDED.slug,
		url         = EXCLUDED.url,
		updated_at  = EXCLUDED.updated_at,
		ingested_at = NOW()`

// UpsertBatch writes records in one pipelined batch and returns the number
// of rows affected. Records that fail Validate are rejected before anything
// is sent.
func (s *RecordStore) UpsertBatch(ctx context.Context, records []domain.MarketRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return 0, fmt.Errorf("postgres: upsert records: %w", err)
		}
		updated := r.UpdatedAt
		if updated.IsZero() {
			updated = time.Now().UTC()
		}
		batch.Queue(upsertRecordSQL,
			r.Platform, r.ID, r.Title, r.Price, r.Volume, r.Slug, r.URL, updated,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	var affected int64
	for i := range records {
		tag, err := br.Exec()
		if err != nil {
			return affected, fmt.Errorf("postgres: upsert record batch item %d (%s): %w", i, records[i].Key(), err)
		}
		affected += tag.RowsAffected()
	}
	return affected, nil
}

const recordCols = `platform, id, title, price, volume, slug, url, updated_at`

func scanRecord(row pgx.Row) (domain.MarketRecord, error) {
	var r domain.MarketRecord
	err := row.Scan(&r.Platform, &r.ID, &r.Title, &r.Price, &r.Volume, &r.Slug, &r.URL, &r.UpdatedAt)
	return r, err
}

// ListByPlatform returns the platform's records, most recently updated
// first, with optional Since, Limit and Offset filters.
func (s *RecordStore) ListByPlatform(ctx context.Context, platform string, opts domain.ListOpts) ([]domain.MarketRecord, error) {
	query := `SELECT ` + recordCols + ` FROM market_records WHERE platform = $1`
	args := []any{platform}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND updated_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	query += " ORDER BY updated_at DESC, id"
	query, args = pageClause(query, args, argIdx, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list records %s: %w", platform, err)
	}
	defer rows.Close()

	var out []domain.MarketRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan record row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list records %s: %w", platform, err)
	}
	return out, nil
}

// Count returns the total number of stored records.
func (s *RecordStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM market_records`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count records: %w", err)
	}
	return n, nil
}

var _ domain.RecordStore = (*RecordStore)(nil)
