package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vault-sentinel/internal/adapter"
	"github.com/vault-sentinel/internal/analytics"
	apperrors "github.com/vault-sentinel/internal/errors"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
}

func vaultPayload(end time.Time, navs ...float64) *adapter.VaultPayload {
	return &adapter.VaultPayload{
		Timeframes: map[string]analytics.Timeframe{
			analytics.SourceTimeframe: {AccountValueHistory: hourlySeries(end, navs...)},
		},
		Apr:           0.12,
		AllowDeposits: true,
	}
}

func TestCollect(t *testing.T) {
	store := newMemStore()
	funding := 0.0001
	oi := 1500.0
	provider := &mockProvider{
		fetchVaultStateFunc: func(ctx context.Context) (*adapter.VaultPayload, error) {
			return vaultPayload(fixedNow(), 100, 110, 90, 95), nil
		},
		fetchMarketContextFunc: func(ctx context.Context) (*adapter.MarketContext, error) {
			return &adapter.MarketContext{FundingRate: &funding, OpenInterest: &oi}, nil
		},
	}

	svc := NewCollectService(provider, store, nil, nil)
	svc.now = fixedNow

	result, err := svc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if result.Skipped {
		t.Error("Skipped = true on first collect, want false")
	}

	snap := result.Snapshot
	if snap.Nav != 95 {
		t.Errorf("Nav = %v, want 95", snap.Nav)
	}
	if snap.NavAth != 110 {
		t.Errorf("NavAth = %v, want 110", snap.NavAth)
	}
	if snap.FundingRate == nil || *snap.FundingRate != funding {
		t.Errorf("FundingRate = %v, want %v", snap.FundingRate, funding)
	}
	if snap.Apr == nil || *snap.Apr != 0.12 {
		t.Errorf("Apr = %v, want 0.12", snap.Apr)
	}
	if snap.CompositeScore == nil {
		t.Fatal("CompositeScore = nil, want a value")
	}
	if *snap.CompositeScore < 0 || *snap.CompositeScore > 100 {
		t.Errorf("CompositeScore = %d, want within [0,100]", *snap.CompositeScore)
	}
	if len(store.rows) != 1 {
		t.Errorf("stored rows = %d, want 1", len(store.rows))
	}
}

func TestCollectSkipsDuplicateHour(t *testing.T) {
	store := newMemStore()
	provider := &mockProvider{
		fetchVaultStateFunc: func(ctx context.Context) (*adapter.VaultPayload, error) {
			return vaultPayload(fixedNow(), 100, 105), nil
		},
		fetchMarketContextFunc: func(ctx context.Context) (*adapter.MarketContext, error) {
			return &adapter.MarketContext{}, nil
		},
	}

	svc := NewCollectService(provider, store, nil, nil)
	svc.now = fixedNow

	if _, err := svc.Collect(context.Background()); err != nil {
		t.Fatalf("first Collect: %v", err)
	}
	result, err := svc.Collect(context.Background())
	if err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if !result.Skipped {
		t.Error("Skipped = false on same-hour collect, want true")
	}
	if len(store.rows) != 1 {
		t.Errorf("stored rows = %d, want 1", len(store.rows))
	}
}

func TestCollectVaultFailureIsFatal(t *testing.T) {
	provider := &mockProvider{
		fetchVaultStateFunc: func(ctx context.Context) (*adapter.VaultPayload, error) {
			return nil, errors.New("connection refused")
		},
		fetchMarketContextFunc: func(ctx context.Context) (*adapter.MarketContext, error) {
			return &adapter.MarketContext{}, nil
		},
	}

	svc := NewCollectService(provider, newMemStore(), nil, nil)
	svc.now = fixedNow

	_, err := svc.Collect(context.Background())
	if err == nil {
		t.Fatal("expected error when vault fetch fails")
	}
	if apperrors.Categorize(err).Category != apperrors.CategoryUpstream {
		t.Errorf("error category = %v, want upstream", apperrors.Categorize(err).Category)
	}
}

func TestCollectMarketFailureDegradesToNeutral(t *testing.T) {
	store := newMemStore()
	provider := &mockProvider{
		fetchVaultStateFunc: func(ctx context.Context) (*adapter.VaultPayload, error) {
			return vaultPayload(fixedNow(), 100, 105), nil
		},
		fetchMarketContextFunc: func(ctx context.Context) (*adapter.MarketContext, error) {
			return nil, errors.New("timeout")
		},
	}

	svc := NewCollectService(provider, store, nil, nil)
	svc.now = fixedNow

	result, err := svc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}

	snap := result.Snapshot
	if snap.FundingRate != nil {
		t.Errorf("FundingRate = %v, want nil", *snap.FundingRate)
	}
	if snap.FundingScore == nil || *snap.FundingScore != analytics.NeutralScore {
		t.Errorf("FundingScore = %v, want neutral %d", snap.FundingScore, analytics.NeutralScore)
	}
	if snap.OiScore == nil || *snap.OiScore != analytics.NeutralScore {
		t.Errorf("OiScore = %v, want neutral %d", snap.OiScore, analytics.NeutralScore)
	}
}

func TestCollectRunsBackfillAtMidnight(t *testing.T) {
	midnight := time.Date(2025, 6, 15, 0, 10, 0, 0, time.UTC)
	store := newMemStore()

	payload := vaultPayload(midnight, 100, 105)
	// A week timeframe carrying older hours the live path never saw.
	weekEnd := midnight.Add(-48 * time.Hour)
	payload.Timeframes["week"] = analytics.Timeframe{
		AccountValueHistory: hourlySeries(weekEnd, 90, 92, 94),
	}

	provider := &mockProvider{
		fetchVaultStateFunc: func(ctx context.Context) (*adapter.VaultPayload, error) {
			return payload, nil
		},
		fetchMarketContextFunc: func(ctx context.Context) (*adapter.MarketContext, error) {
			return &adapter.MarketContext{}, nil
		},
	}

	svc := NewCollectService(provider, store, nil, NewBackfillService(store))
	svc.now = func() time.Time { return midnight }

	result, err := svc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if result.Backfilled != 3 {
		t.Errorf("Backfilled = %d, want 3", result.Backfilled)
	}
	if len(store.rows) != 4 {
		t.Errorf("stored rows = %d, want 4 (1 live + 3 backfilled)", len(store.rows))
	}
}

func TestCollectSkipsBackfillOffMidnight(t *testing.T) {
	store := newMemStore()
	payload := vaultPayload(fixedNow(), 100, 105)
	payload.Timeframes["week"] = analytics.Timeframe{
		AccountValueHistory: hourlySeries(fixedNow().Add(-48*time.Hour), 90, 92),
	}

	provider := &mockProvider{
		fetchVaultStateFunc: func(ctx context.Context) (*adapter.VaultPayload, error) {
			return payload, nil
		},
		fetchMarketContextFunc: func(ctx context.Context) (*adapter.MarketContext, error) {
			return &adapter.MarketContext{}, nil
		},
	}

	svc := NewCollectService(provider, store, nil, NewBackfillService(store))
	svc.now = fixedNow

	result, err := svc.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if result.Backfilled != 0 {
		t.Errorf("Backfilled = %d, want 0 outside hour zero", result.Backfilled)
	}
	if len(store.rows) != 1 {
		t.Errorf("stored rows = %d, want 1", len(store.rows))
	}
}
