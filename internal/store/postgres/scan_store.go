package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// ScanStore implements domain.ScanStore over the scan_runs table. Stats and
// opportunities are stored as JSONB.
type ScanStore struct {
	pool *pgxpool.Pool
}

// NewScanStore creates a ScanStore backed by the given pool.
func NewScanStore(pool *pgxpool.Pool) *ScanStore {
	return &ScanStore{pool: pool}
}

// Insert records one completed scan. Re-inserting an ID is a no-op.
func (s *ScanStore) Insert(ctx context.Context, res domain.ScanResult, archiveKey string) error {
	statsJSON, err := json.Marshal(res.Stats)
	if err != nil {
		return fmt.Errorf("postgres: encode scan stats %s: %w", res.ID, err)
	}
	opps := res.Opportunities
	if opps == nil {
		opps = []domain.ArbitrageOpportunity{}
	}
	oppsJSON, err := json.Marshal(opps)
	if err != nil {
		return fmt.Errorf("postgres: encode scan opportunities %s: %w", res.ID, err)
	}

	const query = `
		INSERT INTO scan_runs (
			id, computed_at, min_spread, min_match_score, result_limit,
			opportunity_count, final_state, partial, stats, opportunities, archive_key
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		res.ID, res.ComputedAt,
		res.Params.MinSpreadPercent, res.Params.MinMatchScore, res.Params.Limit,
		len(res.Opportunities), string(res.Stats.FinalState), res.Stats.Partial,
		statsJSON, oppsJSON, archiveKey,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert scan %s: %w", res.ID, err)
	}
	return nil
}

// GetByID returns the full stored scan, or domain.ErrNotFound.
func (s *ScanStore) GetByID(ctx context.Context, id string) (domain.ScanResult, error) {
	const query = `
		SELECT id, computed_at, min_spread, min_match_score, result_limit, stats, opportunities
		FROM scan_runs WHERE id = $1`

	var (
		res       domain.ScanResult
		statsJSON []byte
		oppsJSON  []byte
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&res.ID, &res.ComputedAt,
		&res.Params.MinSpreadPercent, &res.Params.MinMatchScore, &res.Params.Limit,
		&statsJSON, &oppsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ScanResult{}, domain.ErrNotFound
		}
		return domain.ScanResult{}, fmt.Errorf("postgres: get scan %s: %w", id, err)
	}
	if err := json.Unmarshal(statsJSON, &res.Stats); err != nil {
		return domain.ScanResult{}, fmt.Errorf("postgres: decode scan stats %s: %w", id, err)
	}
	if err := json.Unmarshal(oppsJSON, &res.Opportunities); err != nil {
		return domain.ScanResult{}, fmt.Errorf("postgres: decode scan opportunities %s: %w", id, err)
	}
	return res, nil
}

// ListRecent returns scan headlines, newest first. Opportunities are not
// loaded.
func (s *ScanStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.ScanSummary, error) {
	query := `
		SELECT id, computed_at, min_spread, min_match_score, result_limit, stats, archive_key
		FROM scan_runs`
	var args []any
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" WHERE computed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	query += " ORDER BY computed_at DESC"
	query, args = pageClause(query, args, argIdx, opts.Limit, opts.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scans: %w", err)
	}
	defer rows.Close()

	var out []domain.ScanSummary
	for rows.Next() {
		var (
			sum       domain.ScanSummary
			statsJSON []byte
		)
		if err := rows.Scan(
			&sum.ID, &sum.ComputedAt,
			&sum.Params.MinSpreadPercent, &sum.Params.MinMatchScore, &sum.Params.Limit,
			&statsJSON, &sum.ArchiveKey,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan scan_runs row: %w", err)
		}
		if err := json.Unmarshal(statsJSON, &sum.Stats); err != nil {
			return nil, fmt.Errorf("postgres: decode scan stats %s: %w", sum.ID, err)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scans: %w", err)
	}
	return out, nil
}

var _ domain.ScanStore = (*ScanStore)(nil)
