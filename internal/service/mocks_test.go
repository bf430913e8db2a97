package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/vault-sentinel/internal/adapter"
	"github.com/vault-sentinel/internal/analytics"
	"github.com/vault-sentinel/internal/models"
)

// mockProvider implements Provider with overridable function fields.
type mockProvider struct {
	fetchVaultStateFunc    func(ctx context.Context) (*adapter.VaultPayload, error)
	fetchMarketContextFunc func(ctx context.Context) (*adapter.MarketContext, error)
}

func (m *mockProvider) FetchVaultState(ctx context.Context) (*adapter.VaultPayload, error) {
	if m.fetchVaultStateFunc != nil {
		return m.fetchVaultStateFunc(ctx)
	}
	return nil, fmt.Errorf("fetchVaultStateFunc not set")
}

func (m *mockProvider) FetchMarketContext(ctx context.Context) (*adapter.MarketContext, error) {
	if m.fetchMarketContextFunc != nil {
		return m.fetchMarketContextFunc(ctx)
	}
	return nil, fmt.Errorf("fetchMarketContextFunc not set")
}

// memStore is an in-memory SnapshotStore keyed by UTC hour, mirroring the
// unique-hour write semantics of the real repository.
type memStore struct {
	rows      map[time.Time]*models.Snapshot
	insertErr error
	readErr   error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[time.Time]*models.Snapshot)}
}

func (m *memStore) Insert(_ context.Context, s *models.Snapshot) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	key := s.HourKey()
	if _, exists := m.rows[key]; exists {
		return false, nil
	}
	cp := *s
	m.rows[key] = &cp
	return true, nil
}

func (m *memStore) GetLatest(_ context.Context) (*models.Snapshot, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	all := m.sorted()
	if len(all) == 0 {
		return nil, nil
	}
	return all[len(all)-1], nil
}

func (m *memStore) GetSince(_ context.Context, cutoff time.Time) ([]*models.Snapshot, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	var out []*models.Snapshot
	for _, s := range m.sorted() {
		if !s.CollectedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) GetAll(_ context.Context) ([]*models.Snapshot, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.sorted(), nil
}

func (m *memStore) UpdateDerived(_ context.Context, s *models.Snapshot) error {
	key := s.HourKey()
	if _, exists := m.rows[key]; !exists {
		return fmt.Errorf("no row for hour %v", key)
	}
	cp := *s
	m.rows[key] = &cp
	return nil
}

func (m *memStore) sorted() []*models.Snapshot {
	out := make([]*models.Snapshot, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CollectedAt.Before(out[j].CollectedAt)
	})
	return out
}

// hourlySeries builds an ascending hourly NAV series ending at end.
func hourlySeries(end time.Time, navs ...float64) []analytics.Point {
	points := make([]analytics.Point, len(navs))
	for i, nav := range navs {
		points[i] = analytics.Point{
			Ts:    end.Add(-time.Duration(len(navs)-1-i) * time.Hour),
			Value: nav,
		}
	}
	return points
}
