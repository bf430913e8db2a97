// Package service orchestrates the ingestion, backfill, query and seeding
// flows on top of the pure analytics pipeline and the snapshot store.
package service

import (
	"context"
	"time"

	"github.com/vault-sentinel/internal/adapter"
	"github.com/vault-sentinel/internal/analytics"
	"github.com/vault-sentinel/internal/models"
)

// Provider fetches raw vault/market payloads from the upstream data source.
type Provider interface {
	FetchVaultState(ctx context.Context) (*adapter.VaultPayload, error)
	FetchMarketContext(ctx context.Context) (*adapter.MarketContext, error)
}

// SnapshotStore is the persistence surface the services depend on.
type SnapshotStore interface {
	Insert(ctx context.Context, s *models.Snapshot) (bool, error)
	GetLatest(ctx context.Context) (*models.Snapshot, error)
	GetSince(ctx context.Context, cutoff time.Time) ([]*models.Snapshot, error)
	GetAll(ctx context.Context) ([]*models.Snapshot, error)
	UpdateDerived(ctx context.Context, s *models.Snapshot) error
}

// toStats projects stored snapshots onto the view the signal calculator
// consumes.
func toStats(snapshots []*models.Snapshot) []analytics.SnapshotStat {
	stats := make([]analytics.SnapshotStat, len(snapshots))
	for i, s := range snapshots {
		stats[i] = analytics.SnapshotStat{
			CollectedAt:  s.CollectedAt,
			Nav:          s.Nav,
			OpenInterest: s.OpenInterest,
		}
	}
	return stats
}

// applyScores copies a score set onto a snapshot's nullable score columns.
func applyScores(s *models.Snapshot, sc analytics.ScoreSet) {
	s.DdScore = intPtr(sc.Dd)
	s.TvlScore = intPtr(sc.Tvl)
	s.MomentumScore = intPtr(sc.Momentum)
	s.VolScore = intPtr(sc.Vol)
	s.AprScore = intPtr(sc.Apr)
	s.FundingScore = intPtr(sc.Funding)
	s.OiScore = intPtr(sc.Oi)
	s.CompositeScore = intPtr(sc.Composite)
}

func intPtr(v int) *int {
	return &v
}
