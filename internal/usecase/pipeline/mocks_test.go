package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/conversation"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
)

type mockPlaces struct {
	mu        sync.Mutex
	records   []venue.Record
	searchErr error
	// block, when set, holds Search until closed or ctx is done.
	block      chan struct{}
	searches   atomic.Int32
	lastQuery  venue.SearchQuery
	detailsErr map[string]error
	geocodes   map[string]geo.Point
}

func (m *mockPlaces) Search(ctx context.Context, q venue.SearchQuery) ([]venue.Record, error) {
	m.searches.Add(1)
	m.mu.Lock()
	m.lastQuery = q
	block := m.block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	out := make([]venue.Record, len(m.records))
	for i, r := range m.records {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *mockPlaces) Details(_ context.Context, id string) (venue.Record, error) {
	if err := m.detailsErr[id]; err != nil {
		return venue.Record{}, err
	}
	return venue.Record{ID: id, Phone: "+1 415 555 0100", Enriched: true}, nil
}

func (m *mockPlaces) Geocode(_ context.Context, address string) (geo.Point, error) {
	p, ok := m.geocodes[address]
	if !ok {
		return geo.Point{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPlaces) query() venue.SearchQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

type mockComposer struct {
	err   error
	calls atomic.Int32
	last  conversation.ComposeInput
}

func (m *mockComposer) Compose(_ context.Context, in conversation.ComposeInput) (string, error) {
	m.calls.Add(1)
	m.last = in
	if m.err != nil {
		return "", m.err
	}
	return "Here are some great spots.", nil
}
