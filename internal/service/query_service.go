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

// QueryService serves the read endpoints: latest snapshot with a live
// provider readout, and range/resolution reads over stored history.
type QueryService struct {
	store    SnapshotStore
	provider Provider
	cache    *storage.CacheService
	now      func() time.Time
}

// NewQueryService creates the read service. cache may be nil.
func NewQueryService(store SnapshotStore, provider Provider, cache *storage.CacheService) *QueryService {
	return &QueryService{
		store:    store,
		provider: provider,
		cache:    cache,
		now:      time.Now,
	}
}

// LiveState is the live provider readout returned alongside the latest
// stored snapshot.
type LiveState struct {
	Nav              float64  `json:"nav"`
	Pnl              *float64 `json:"pnl"`
	Apr              float64  `json:"apr"`
	AllowDeposits    bool     `json:"allowDeposits"`
	MaxDistributable *float64 `json:"maxDistributable"`
	NavAth           float64  `json:"navAth"`
	DrawdownPct      float64  `json:"drawdownPct"`
	MaxDrawdown      float64  `json:"maxDrawdown"`
	FundingRate      *float64 `json:"fundingRate"`
	OpenInterest     *float64 `json:"openInterest"`
	Volume24h        *float64 `json:"volume24h"`
}

// LatestResult pairs the most recent stored snapshot with the live readout.
// Either side may be null: Snapshot when the store is empty, Live when the
// provider is unreachable.
type LatestResult struct {
	Snapshot *models.Snapshot `json:"snapshot"`
	Live     *LiveState       `json:"live"`
}

// Latest returns the newest stored snapshot plus a best-effort live readout.
func (s *QueryService) Latest(ctx context.Context) (*LatestResult, error) {
	snapshot, err := s.store.GetLatest(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("latest snapshot read", err)
	}

	return &LatestResult{
		Snapshot: snapshot,
		Live:     s.liveReadout(ctx),
	}, nil
}

// liveReadout fetches and normalizes current provider state. Stored history
// is the primary data here, so any failure degrades to a null readout.
func (s *QueryService) liveReadout(ctx context.Context) *LiveState {
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
		log.Warn().Err(payloadErr).Msg("live vault readout unavailable")
		return nil
	}
	if marketErr != nil {
		log.Warn().Err(marketErr).Msg("live market context unavailable")
		market = &adapter.MarketContext{}
	}

	state, err := analytics.NormalizeVaultState(payload.Timeframes)
	if err != nil {
		log.Warn().Err(err).Msg("live vault payload malformed")
		return nil
	}

	return &LiveState{
		Nav:              state.CurrentNav,
		Pnl:              state.CurrentPnl,
		Apr:              payload.Apr,
		AllowDeposits:    payload.AllowDeposits,
		MaxDistributable: payload.MaxDistributable,
		NavAth:           state.CurrentAth,
		DrawdownPct:      state.CurrentDrawdown,
		MaxDrawdown:      state.MaxDrawdown,
		FundingRate:      market.FundingRate,
		OpenInterest:     market.OpenInterest,
		Volume24h:        market.Volume24h,
	}
}

// RangeResult is one resolution-aware read over stored history.
type RangeResult struct {
	Range      string             `json:"range"`
	Resolution string             `json:"resolution"`
	Count      int                `json:"count"`
	Snapshots  []*models.Snapshot `json:"snapshots"`
}

// Range validates the range/resolution pair and returns the matching rows,
// daily-aggregated when the resolved resolution asks for it. Validation
// failures reject the request before any store access.
func (s *QueryService) Range(ctx context.Context, rangeStr, resolutionStr string) (*RangeResult, error) {
	timeRange, ok := models.ParseTimeRange(rangeStr)
	if !ok {
		return nil, apperrors.NewValidationError("range", "must be one of 24h, 7d, 30d, 90d, 1y, all")
	}
	resolution, ok := models.ParseResolution(resolutionStr)
	if !ok {
		return nil, apperrors.NewValidationError("resolution", "must be one of auto, hourly, daily")
	}
	resolved := resolution.Resolve(timeRange)

	key := storage.RangeKey(string(timeRange), string(resolved))
	var cached RangeResult
	if hit, err := s.cache.Get(ctx, key, &cached); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot cache read failed")
	} else if hit {
		return &cached, nil
	}

	var (
		rows []*models.Snapshot
		err  error
	)
	if cutoff, bounded := timeRange.Cutoff(s.now().UTC()); bounded {
		rows, err = s.store.GetSince(ctx, cutoff)
	} else {
		rows, err = s.store.GetAll(ctx)
	}
	if err != nil {
		return nil, apperrors.NewDatabaseError("snapshot range read", err)
	}

	if resolved == models.ResolutionDaily {
		rows = storage.AggregateDaily(rows)
	}
	if rows == nil {
		rows = []*models.Snapshot{}
	}

	result := &RangeResult{
		Range:      string(timeRange),
		Resolution: string(resolved),
		Count:      len(rows),
		Snapshots:  rows,
	}

	if err := s.cache.Set(ctx, key, result); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("snapshot cache write failed")
	}
	return result, nil
}
