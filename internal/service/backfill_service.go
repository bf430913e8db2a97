package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/vault-sentinel/internal/adapter"
	"github.com/vault-sentinel/internal/analytics"
	apperrors "github.com/vault-sentinel/internal/errors"
	"github.com/vault-sentinel/internal/models"
)

// backfillTimeframes are the coarser historical series used to fill hourly
// gaps, most recent resolution first.
var backfillTimeframes = []string{"month", "week"}

// BackfillService retroactively inserts missing snapshots from coarser
// historical timeframes of the same raw payload the live write used.
type BackfillService struct {
	store SnapshotStore
}

// NewBackfillService creates the gap-fill service.
func NewBackfillService(store SnapshotStore) *BackfillService {
	return &BackfillService{store: store}
}

// Run replays each backfill timeframe through the idempotent write path and
// returns how many historical rows were actually inserted. ATH/drawdown are
// recomputed locally per timeframe: the historical source approximates, it
// does not override, the authoritative running values.
func (s *BackfillService) Run(ctx context.Context, payload *adapter.VaultPayload) (int, error) {
	inserted := 0
	for _, name := range backfillTimeframes {
		frame, ok := payload.Timeframes[name]
		if !ok {
			log.Debug().Str("timeframe", name).Msg("backfill timeframe missing from payload")
			continue
		}

		n, err := s.fillTimeframe(ctx, frame)
		inserted += n
		if err != nil {
			return inserted, apperrors.NewBackfillError(name, err)
		}
		log.Info().Str("timeframe", name).Int("inserted", n).Msg("backfill timeframe replayed")
	}
	return inserted, nil
}

func (s *BackfillService) fillTimeframe(ctx context.Context, frame analytics.Timeframe) (int, error) {
	pnlByTs := make(map[int64]float64, len(frame.PnlHistory))
	for _, p := range frame.PnlHistory {
		pnlByTs[p.Ts.UnixMilli()] = p.Value
	}

	points := make([]analytics.ReplayPoint, 0, len(frame.AccountValueHistory))
	for _, p := range frame.AccountValueHistory {
		if p.Value <= 0 {
			continue
		}
		rp := analytics.ReplayPoint{Ts: p.Ts, Nav: p.Value}
		// PnL is matched by exact timestamp only; anything else stays null.
		if pnl, ok := pnlByTs[p.Ts.UnixMilli()]; ok {
			v := pnl
			rp.Pnl = &v
		}
		points = append(points, rp)
	}

	// Writes are strictly sequential: every row's local ATH/drawdown depends
	// on the running state of all prior rows in the replay.
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
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}
