package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/vault-sentinel/internal/analytics"
	apperrors "github.com/vault-sentinel/internal/errors"
	"github.com/vault-sentinel/internal/models"
)

// SeedService handles the one-time bootstrap replay and the bulk
// recomputation maintenance pass. Both reuse the same pure scoring pipeline
// as the live ingestion path.
type SeedService struct {
	provider Provider
	store    SnapshotStore
}

// NewSeedService creates the seeding/recompute service.
func NewSeedService(provider Provider, store SnapshotStore) *SeedService {
	return &SeedService{provider: provider, store: store}
}

// Seed replays the provider's all-time NAV history into the snapshot table
// through the idempotent write path. Historical APR and market context are
// unknown, so those sub-scores come out neutral. Safe to re-run: existing
// hours are skipped.
func (s *SeedService) Seed(ctx context.Context) (int, error) {
	payload, err := s.provider.FetchVaultState(ctx)
	if err != nil {
		return 0, apperrors.NewUpstreamError("vault details", err)
	}
	state, err := analytics.NormalizeVaultState(payload.Timeframes)
	if err != nil {
		return 0, apperrors.NewUpstreamError("vault details", err)
	}

	pnlByTs := make(map[int64]float64, len(state.PnlHistory))
	for _, p := range state.PnlHistory {
		pnlByTs[p.Ts.UnixMilli()] = p.Value
	}

	points := make([]analytics.ReplayPoint, 0, len(state.NavHistory))
	for _, p := range state.NavHistory {
		rp := analytics.ReplayPoint{Ts: p.Ts, Nav: p.Value}
		if pnl, ok := pnlByTs[p.Ts.UnixMilli()]; ok {
			v := pnl
			rp.Pnl = &v
		}
		points = append(points, rp)
	}

	inserted := 0
	for _, row := range analytics.ReplaySeries(points) {
		snapshot := &models.Snapshot{
			CollectedAt:   row.Ts,
			Nav:           row.Nav,
			Pnl:           row.Pnl,
			AllowDeposits: true,
			NavAth:        row.NavAth,
			DrawdownPct:   row.DrawdownPct,
			MaxDrawdown:   row.MaxDrawdown,
		}
		applyScores(snapshot, row.Scores)

		ok, err := s.store.Insert(ctx, snapshot)
		if err != nil {
			return inserted, apperrors.NewDatabaseError("seed insert", err)
		}
		if ok {
			inserted++
		}
	}

	log.Info().Int("points", len(points)).Int("inserted", inserted).Msg("seed replay complete")
	return inserted, nil
}

// Recompute rewrites navAth/drawdownPct/maxDrawdown and every score across
// all stored history in chronological order. Deterministic over the stored
// sequence, so it is idempotent and restartable: re-running converges on the
// same values.
func (s *SeedService) Recompute(ctx context.Context) (int, error) {
	rows, err := s.store.GetAll(ctx)
	if err != nil {
		return 0, apperrors.NewDatabaseError("recompute read", err)
	}

	history := make([]analytics.SnapshotStat, 0, len(rows))
	var ath, maxDd float64
	updated := 0

	for _, snapshot := range rows {
		if snapshot.Nav > ath {
			ath = snapshot.Nav
		}
		var dd float64
		if ath > 0 {
			dd = (snapshot.Nav - ath) / ath
		}
		if dd < maxDd {
			maxDd = dd
		}

		signals := analytics.ComputeTrailingSignals(
			analytics.TrailingWindow(history, snapshot.CollectedAt),
			snapshot.Nav,
			snapshot.CollectedAt,
		)
		scores := analytics.ComputeScores(analytics.ScoreInput{
			Drawdown:    dd,
			Signals:     signals,
			Apr:         snapshot.Apr,
			FundingRate: snapshot.FundingRate,
		})

		snapshot.NavAth = ath
		snapshot.DrawdownPct = dd
		snapshot.MaxDrawdown = maxDd
		applyScores(snapshot, scores)

		if err := s.store.UpdateDerived(ctx, snapshot); err != nil {
			return updated, apperrors.NewDatabaseError("recompute update", err)
		}
		updated++

		history = append(history, analytics.SnapshotStat{
			CollectedAt:  snapshot.CollectedAt,
			Nav:          snapshot.Nav,
			OpenInterest: snapshot.OpenInterest,
		})
	}

	log.Info().Int("updated", updated).Msg("bulk recompute complete")
	return updated, nil
}
