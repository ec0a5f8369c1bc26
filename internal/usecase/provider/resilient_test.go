package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	"github.com/kailas-cloud/venuefinder/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type mockProvider struct {
	calls    atomic.Int32
	searchFn func(n int32) ([]venue.Record, error)
	detailFn func(n int32) (venue.Record, error)
	geoFn    func(n int32) (geo.Point, error)
}

func (m *mockProvider) Search(_ context.Context, _ venue.SearchQuery) ([]venue.Record, error) {
	return m.searchFn(m.calls.Add(1))
}

func (m *mockProvider) Details(_ context.Context, _ string) (venue.Record, error) {
	return m.detailFn(m.calls.Add(1))
}

func (m *mockProvider) Geocode(_ context.Context, _ string) (geo.Point, error) {
	return m.geoFn(m.calls.Add(1))
}

func fastOpts() Options {
	return Options{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}
}

var transient = fmt.Errorf("HTTP 503: %w", domain.ErrProviderTransient)

func TestResilient_RetriesTransientThenSucceeds(t *testing.T) {
	m := &mockProvider{searchFn: func(n int32) ([]venue.Record, error) {
		if n < 3 {
			return nil, transient
		}
		return []venue.Record{{ID: "1", Location: geo.Point{Lat: 37.78, Lng: -122.42}}}, nil
	}}
	r := NewResilient(m, "test-retry", fastOpts(), zap.NewNop())

	got, err := r.Search(context.Background(), venue.SearchQuery{Text: "pizza", Location: geo.Point{Lat: 37.77, Lng: -122.42}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", m.calls.Load())
	}
	if got[0].DistanceMiles < 0.6 || got[0].DistanceMiles > 0.8 {
		t.Errorf("DistanceMiles = %v, want ~0.69", got[0].DistanceMiles)
	}
	if v := testutil.ToFloat64(metrics.ProviderRetriesTotal.WithLabelValues("test-retry", "search")); v != 2 {
		t.Errorf("retries metric = %v, want 2", v)
	}
}

func TestResilient_ExhaustedIsUnavailable(t *testing.T) {
	m := &mockProvider{detailFn: func(int32) (venue.Record, error) { return venue.Record{}, transient }}
	r := NewResilient(m, "test-exhaust", fastOpts(), zap.NewNop())

	_, err := r.Details(context.Background(), "x")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
	if !errors.Is(err, domain.ErrProviderTransient) {
		t.Error("cause should stay in the chain")
	}
	if m.calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", m.calls.Load())
	}
}

func TestResilient_PermanentNotRetried(t *testing.T) {
	perm := fmt.Errorf("HTTP 400: %w", domain.ErrProviderError)
	m := &mockProvider{geoFn: func(int32) (geo.Point, error) { return geo.Point{}, perm }}
	r := NewResilient(m, "test-perm", fastOpts(), zap.NewNop())

	_, err := r.Geocode(context.Background(), "nowhere")
	if !errors.Is(err, domain.ErrProviderError) || errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v", err)
	}
	if m.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", m.calls.Load())
	}
}

func TestResilient_ContextCancelDuringBackoff(t *testing.T) {
	m := &mockProvider{searchFn: func(int32) ([]venue.Record, error) { return nil, transient }}
	r := NewResilient(m, "test-cancel", Options{MaxAttempts: 5, BaseBackoff: time.Second}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Search(ctx, venue.SearchQuery{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("backoff did not honor context")
	}
}

func TestResilient_SearchLimit(t *testing.T) {
	m := &mockProvider{searchFn: func(int32) ([]venue.Record, error) {
		return []venue.Record{{ID: "1"}, {ID: "2"}, {ID: "3"}}, nil
	}}
	r := NewResilient(m, "test-limit", fastOpts(), zap.NewNop())

	got, err := r.Search(context.Background(), venue.SearchQuery{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "2" {
		t.Errorf("got %v, want first two in provider order", got)
	}
}

func TestResilient_Backoff(t *testing.T) {
	r := NewResilient(&mockProvider{}, "test", Options{}, zap.NewNop())
	want := []time.Duration{200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, 1600 * time.Millisecond, 2 * time.Second, 2 * time.Second}
	for i, w := range want {
		if got := r.backoff(i); got != w {
			t.Errorf("backoff(%d) = %v, want %v", i, got, w)
		}
	}
}

func TestResilient_HealthCheckFollowsLastCall(t *testing.T) {
	fail := true
	m := &mockProvider{detailFn: func(int32) (venue.Record, error) {
		if fail {
			return venue.Record{}, transient
		}
		return venue.Record{ID: "x"}, nil
	}}
	r := NewResilient(m, "test-health", fastOpts(), zap.NewNop())

	if err := r.HealthCheck(context.Background()); err != nil {
		t.Fatalf("fresh provider unhealthy: %v", err)
	}
	_, _ = r.Details(context.Background(), "x")
	if err := r.HealthCheck(context.Background()); !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}

	fail = false
	_, _ = r.Details(context.Background(), "x")
	if err := r.HealthCheck(context.Background()); err != nil {
		t.Errorf("recovered provider still unhealthy: %v", err)
	}
}
