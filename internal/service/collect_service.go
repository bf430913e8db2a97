package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vault-sentinel/internal/adapter"
	"github.com/vault-sentinel/internal/analytics"
	apperrors "github.com/vault-sentinel/internal/errors"
	"github.com/vault-sentinel/internal/models"
	"github.com/vault-sentinel/internal/storage"
)

// CollectResult is the outcome of one ingestion cycle.
type CollectResult struct {
	Snapshot *models.Snapshot `json:"snapshot"`
	// Skipped is true when the current UTC hour already had a snapshot and
	// the write was a no-op. Not an error: the racing writer won.
	Skipped bool `json:"skipped"`
	// Backfilled counts historical rows inserted by the daily gap-fill pass.
	Backfilled int `json:"backfilled,omitempty"`
}

// CollectService runs the ingestion cycle: fetch, normalize, score, store.
type CollectService struct {
	provider Provider
	store    SnapshotStore
	cache    *storage.CacheService
	backfill *BackfillService
	now      func() time.Time
}

// NewCollectService creates the ingestion service. cache and backfill may be
// nil.
func NewCollectService(provider Provider, store SnapshotStore, cache *storage.CacheService, backfill *BackfillService) *CollectService {
	return &CollectService{
		provider: provider,
		store:    store,
		cache:    cache,
		backfill: backfill,
		now:      time.Now,
	}
}

// Collect executes one ingestion cycle. Vault-state failure is fatal for the
// cycle; market-context failure degrades to neutral defaults.
func (s *CollectService) Collect(ctx context.Context) (*CollectResult, error) {
	now := s.now().UTC()

	// The two provider requests are independent; issue them concurrently.
	var (
		payload    *adapter.VaultPayload
		payloadErr error
		market     *adapter.MarketContext
		marketErr  error
	)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		payload, payloadErr = s.provider.FetchVaultState(ctx)
	}()
	go func() {
		defer wg.Done()
		market, marketErr = s.provider.FetchMarketContext(ctx)
	}()
	wg.Wait()

	if payloadErr != nil {
		return nil, apperrors.NewUpstreamError("vault details", payloadErr)
	}
	if marketErr != nil {
		// Market context is supplementary; score it neutral and move on.
		log.Warn().Err(marketErr).Msg("market context unavailable, using neutral defaults")
		market = &adapter.MarketContext{}
	}

	state, err := analytics.NormalizeVaultState(payload.Timeframes)
	if err != nil {
		return nil, apperrors.NewUpstreamError("vault details", err)
	}

	cutoff := now.Add(-analytics.TrailingWindowDays * 24 * time.Hour)
	history, err := s.store.GetSince(ctx, cutoff)
	if err != nil {
		return nil, apperrors.NewDatabaseError("trailing history read", err)
	}

	signals := analytics.ComputeTrailingSignals(toStats(history), state.CurrentNav, now)
	apr := payload.Apr
	scores := analytics.ComputeScores(analytics.ScoreInput{
		Drawdown:    state.CurrentDrawdown,
		Signals:     signals,
		Apr:         &apr,
		FundingRate: market.FundingRate,
	})

	snapshot := &models.Snapshot{
		CollectedAt:   now,
		Nav:           state.CurrentNav,
		Pnl:           state.CurrentPnl,
		Apr:           &apr,
		Volume:        payload.Volume,
		AllowDeposits: payload.AllowDeposits,
		NavAth:        state.CurrentAth,
		DrawdownPct:   state.CurrentDrawdown,
		MaxDrawdown:   state.MaxDrawdown,
		FundingRate:   market.FundingRate,
		OpenInterest:  market.OpenInterest,
		Volume24h:     market.Volume24h,
	}
	applyScores(snapshot, scores)

	inserted, err := s.store.Insert(ctx, snapshot)
	if err != nil {
		return nil, apperrors.NewDatabaseError("snapshot insert", err)
	}
	if inserted {
		if err := s.cache.InvalidateSnapshots(ctx); err != nil {
			log.Warn().Err(err).Msg("snapshot cache invalidation failed")
		}
	}

	result := &CollectResult{
		Snapshot: snapshot,
		Skipped:  !inserted,
	}

	// Gap-filling piggybacks on the first ingestion cycle of each UTC day.
	// Best-effort: a failure here never fails the request.
	if now.Hour() == 0 && s.backfill != nil {
		n, err := s.backfill.Run(ctx, payload)
		if err != nil {
			log.Warn().Err(err).Int("inserted", n).Msg("gap-fill backfill failed")
		}
		result.Backfilled = n
	}

	return result, nil
}
