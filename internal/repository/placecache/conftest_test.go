package placecache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/db"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

type mockProvider struct {
	record       venue.Record
	point        geo.Point
	err          error
	detailCalls  int
	geocodeCalls int
	searchCalls  int
}

func (m *mockProvider) Search(_ context.Context, _ venue.SearchQuery) ([]venue.Record, error) {
	m.searchCalls++
	return []venue.Record{m.record}, m.err
}

func (m *mockProvider) Details(_ context.Context, _ string) (venue.Record, error) {
	m.detailCalls++
	return m.record, m.err
}

func (m *mockProvider) Geocode(_ context.Context, _ string) (geo.Point, error) {
	m.geocodeCalls++
	return m.point, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedProvider(t *testing.T, inner *mockProvider) (*CachedProvider, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	cp := New(inner, "google", ms, time.Hour, nil, zap.NewNop())
	return cp, ms
}
