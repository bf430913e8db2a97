package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vault-sentinel/internal/adapter"
	"github.com/vault-sentinel/internal/analytics"
)

func backfillPayload(end time.Time) *adapter.VaultPayload {
	return &adapter.VaultPayload{
		Timeframes: map[string]analytics.Timeframe{
			"month": {AccountValueHistory: hourlySeries(end, 100, 110, 90)},
			"week":  {AccountValueHistory: hourlySeries(end, 100, 110, 90, 95)},
		},
	}
}

func TestBackfillRun(t *testing.T) {
	end := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	svc := NewBackfillService(store)

	inserted, err := svc.Run(context.Background(), backfillPayload(end))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// month fills 3 hours, week adds the one hour month lacked.
	if inserted != 4 {
		t.Errorf("inserted = %d, want 4", inserted)
	}

	rows, _ := store.GetAll(context.Background())
	if len(rows) != 4 {
		t.Fatalf("stored rows = %d, want 4", len(rows))
	}

	// Derived state is replayed locally: ATH carries across the series.
	last := rows[len(rows)-1]
	if last.NavAth != 110 {
		t.Errorf("last NavAth = %v, want 110", last.NavAth)
	}
	if last.CompositeScore == nil {
		t.Error("last CompositeScore = nil, want scored backfill rows")
	}
	// Historical rows never carry market context or APR.
	if last.FundingRate != nil || last.Apr != nil {
		t.Errorf("FundingRate = %v, Apr = %v, want both nil", last.FundingRate, last.Apr)
	}
}

func TestBackfillIdempotent(t *testing.T) {
	end := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	svc := NewBackfillService(store)

	if _, err := svc.Run(context.Background(), backfillPayload(end)); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	inserted, err := svc.Run(context.Background(), backfillPayload(end))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second run inserted = %d, want 0", inserted)
	}
}

func TestBackfillSkipsMissingTimeframe(t *testing.T) {
	end := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	svc := NewBackfillService(store)

	payload := &adapter.VaultPayload{
		Timeframes: map[string]analytics.Timeframe{
			"week": {AccountValueHistory: hourlySeries(end, 100, 105)},
		},
	}

	inserted, err := svc.Run(context.Background(), payload)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}
}

func TestBackfillMatchesPnlByExactTimestamp(t *testing.T) {
	end := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	svc := NewBackfillService(store)

	nav := hourlySeries(end, 100, 105)
	payload := &adapter.VaultPayload{
		Timeframes: map[string]analytics.Timeframe{
			"week": {
				AccountValueHistory: nav,
				PnlHistory: []analytics.Point{
					{Ts: nav[0].Ts, Value: 7},
					// Off by a minute: must not attach to any row.
					{Ts: nav[1].Ts.Add(time.Minute), Value: 99},
				},
			},
		},
	}

	if _, err := svc.Run(context.Background(), payload); err != nil {
		t.Fatalf("Run: %v", err)
	}

	rows, _ := store.GetAll(context.Background())
	if rows[0].Pnl == nil || *rows[0].Pnl != 7 {
		t.Errorf("rows[0].Pnl = %v, want 7", rows[0].Pnl)
	}
	if rows[1].Pnl != nil {
		t.Errorf("rows[1].Pnl = %v, want nil for unmatched timestamp", *rows[1].Pnl)
	}
}

func TestBackfillDropsNonPositiveNav(t *testing.T) {
	end := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	svc := NewBackfillService(store)

	nav := hourlySeries(end, 100, 0, 105)
	payload := &adapter.VaultPayload{
		Timeframes: map[string]analytics.Timeframe{
			"week": {AccountValueHistory: nav},
		},
	}

	inserted, err := svc.Run(context.Background(), payload)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2 with the zero-NAV hour dropped", inserted)
	}
}

func TestBackfillInsertErrorStopsRun(t *testing.T) {
	end := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	store := newMemStore()
	store.insertErr = errors.New("connection lost")
	svc := NewBackfillService(store)

	_, err := svc.Run(context.Background(), backfillPayload(end))
	if err == nil {
		t.Fatal("expected error when insert fails")
	}
}
