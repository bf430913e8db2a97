package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vault-sentinel/internal/models"
)

// snapshotColumns is the canonical select list, matching scanSnapshot.
const snapshotColumns = `
	id, collected_at, nav, pnl, apr, volume, allow_deposits,
	nav_ath, drawdown_pct, max_drawdown,
	funding_rate, open_interest, volume_24h,
	dd_score, tvl_score, momentum_score, vol_score,
	apr_score, funding_score, oi_score, composite_score,
	created_at`

// SnapshotRepository handles snapshot storage operations
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{
		pool: pool,
	}
}

// Insert stores a snapshot. The unique index over the hour-truncated
// collected_at makes the insert a silent no-op when the hour is already
// populated; the return value reports whether a row was actually created.
// This is the system's sole concurrency-safety mechanism for racing writers.
func (r *SnapshotRepository) Insert(ctx context.Context, s *models.Snapshot) (bool, error) {
	query := `
		INSERT INTO snapshots (
			collected_at, nav, pnl, apr, volume, allow_deposits,
			nav_ath, drawdown_pct, max_drawdown,
			funding_rate, open_interest, volume_24h,
			dd_score, tvl_score, momentum_score, vol_score,
			apr_score, funding_score, oi_score, composite_score
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19, $20
		)
		ON CONFLICT (date_trunc('hour', (collected_at AT TIME ZONE 'utc')))
		DO NOTHING
	`

	tag, err := r.pool.Exec(
		ctx,
		query,
		s.CollectedAt,
		s.Nav,
		s.Pnl,
		s.Apr,
		s.Volume,
		s.AllowDeposits,
		s.NavAth,
		s.DrawdownPct,
		s.MaxDrawdown,
		s.FundingRate,
		s.OpenInterest,
		s.Volume24h,
		s.DdScore,
		s.TvlScore,
		s.MomentumScore,
		s.VolScore,
		s.AprScore,
		s.FundingScore,
		s.OiScore,
		s.CompositeScore,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetLatest retrieves the most recent snapshot, or nil if the store is empty.
func (r *SnapshotRepository) GetLatest(ctx context.Context) (*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		ORDER BY collected_at DESC
		LIMIT 1
	`

	snapshot, err := scanSnapshot(r.pool.QueryRow(ctx, query))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return snapshot, nil
}

// GetSince retrieves all snapshots at or after the cutoff, ordered ascending.
func (r *SnapshotRepository) GetSince(ctx context.Context, cutoff time.Time) ([]*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		WHERE collected_at >= $1
		ORDER BY collected_at ASC
	`
	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots since %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// GetAll retrieves every snapshot ordered ascending. Used by the unbounded
// range read and the bulk recompute job.
func (r *SnapshotRepository) GetAll(ctx context.Context) ([]*models.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM snapshots
		ORDER BY collected_at ASC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	return collectSnapshots(rows)
}

// UpdateDerived rewrites the derived columns of an existing row: running
// ATH/drawdown state and the score set. Only the bulk recompute pass calls
// this; snapshots are otherwise immutable.
func (r *SnapshotRepository) UpdateDerived(ctx context.Context, s *models.Snapshot) error {
	query := `
		UPDATE snapshots SET
			nav_ath = $2,
			drawdown_pct = $3,
			max_drawdown = $4,
			dd_score = $5,
			tvl_score = $6,
			momentum_score = $7,
			vol_score = $8,
			apr_score = $9,
			funding_score = $10,
			oi_score = $11,
			composite_score = $12
		WHERE id = $1
	`
	_, err := r.pool.Exec(
		ctx,
		query,
		s.ID,
		s.NavAth,
		s.DrawdownPct,
		s.MaxDrawdown,
		s.DdScore,
		s.TvlScore,
		s.MomentumScore,
		s.VolScore,
		s.AprScore,
		s.FundingScore,
		s.OiScore,
		s.CompositeScore,
	)
	if err != nil {
		return fmt.Errorf("failed to update snapshot %d: %w", s.ID, err)
	}
	return nil
}

// Count returns the number of stored snapshots.
func (r *SnapshotRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count snapshots: %w", err)
	}
	return count, nil
}

func collectSnapshots(rows pgx.Rows) ([]*models.Snapshot, error) {
	var snapshots []*models.Snapshot
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snapshots = append(snapshots, snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot rows: %w", err)
	}
	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (*models.Snapshot, error) {
	var s models.Snapshot
	err := row.Scan(
		&s.ID,
		&s.CollectedAt,
		&s.Nav,
		&s.Pnl,
		&s.Apr,
		&s.Volume,
		&s.AllowDeposits,
		&s.NavAth,
		&s.DrawdownPct,
		&s.MaxDrawdown,
		&s.FundingRate,
		&s.OpenInterest,
		&s.Volume24h,
		&s.DdScore,
		&s.TvlScore,
		&s.MomentumScore,
		&s.VolScore,
		&s.AprScore,
		&s.FundingScore,
		&s.OiScore,
		&s.CompositeScore,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
