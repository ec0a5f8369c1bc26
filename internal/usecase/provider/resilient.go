package provider

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/domain"
	"github.com/kailas-cloud/venuefinder/internal/domain/geo"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	"github.com/kailas-cloud/venuefinder/internal/metrics"
)

// Retry defaults.
const (
	DefaultMaxAttempts = 3
	DefaultBaseBackoff = 200 * time.Millisecond
	DefaultMaxBackoff  = 2 * time.Second
)

// Options configures retries.
type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = DefaultBaseBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = DefaultMaxBackoff
	}
}

// Resilient wraps a Provider with bounded retries of transient failures.
// Exhausted retries surface as domain.ErrProviderUnavailable; permanent
// errors pass through on the first attempt. Safe for concurrent use.
type Resilient struct {
	inner  Provider
	name   string
	opts   Options
	logger *zap.Logger
	// down is set when the last call exhausted its retries.
	down atomic.Bool
}

// NewResilient creates a retrying decorator. name labels metrics and logs.
func NewResilient(inner Provider, name string, opts Options, logger *zap.Logger) *Resilient {
	opts.applyDefaults()
	return &Resilient{inner: inner, name: name, opts: opts, logger: logger}
}

// Search runs a text search, recomputes distances from the query point and
// caps the result at q.Limit. Provider order is preserved.
func (r *Resilient) Search(ctx context.Context, q venue.SearchQuery) ([]venue.Record, error) {
	var out []venue.Record
	err := r.call(ctx, "search", func(ctx context.Context) error {
		var err error
		out, err = r.inner.Search(ctx, q)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range out {
		out[i].DistanceMiles = geo.Round(geo.DistanceMiles(q.Location, out[i].Location), 2)
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Details fetches the enriched record for id.
func (r *Resilient) Details(ctx context.Context, id string) (venue.Record, error) {
	var out venue.Record
	err := r.call(ctx, "details", func(ctx context.Context) error {
		var err error
		out, err = r.inner.Details(ctx, id)
		return err
	})
	return out, err
}

// Geocode resolves an address to coordinates.
func (r *Resilient) Geocode(ctx context.Context, address string) (geo.Point, error) {
	var out geo.Point
	err := r.call(ctx, "geocode", func(ctx context.Context) error {
		var err error
		out, err = r.inner.Geocode(ctx, address)
		return err
	})
	return out, err
}

func (r *Resilient) call(ctx context.Context, op string, fn func(context.Context) error) error {
	start := time.Now()
	defer func() {
		metrics.ProviderRequestDuration.WithLabelValues(r.name, op).Observe(time.Since(start).Seconds())
	}()

	var lastErr error
	for attempt := range r.opts.MaxAttempts {
		err := fn(ctx)
		if err == nil {
			metrics.ProviderRequestsTotal.WithLabelValues(r.name, op, "ok").Inc()
			r.down.Store(false)
			return nil
		}

		if !errors.Is(err, domain.ErrProviderTransient) {
			metrics.ProviderRequestsTotal.WithLabelValues(r.name, op, "error").Inc()
			return fmt.Errorf("%s %s: %w", r.name, op, err)
		}

		lastErr = err
		if attempt == r.opts.MaxAttempts-1 {
			break
		}

		backoff := r.backoff(attempt)
		r.logger.Warn("Place provider transient failure, retrying",
			zap.String("provider", r.name),
			zap.String("op", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		metrics.ProviderRetriesTotal.WithLabelValues(r.name, op).Inc()

		select {
		case <-ctx.Done():
			metrics.ProviderRequestsTotal.WithLabelValues(r.name, op, "canceled").Inc()
			return fmt.Errorf("%s %s: %w", r.name, op, ctx.Err())
		case <-time.After(backoff):
		}
	}

	metrics.ProviderRequestsTotal.WithLabelValues(r.name, op, "unavailable").Inc()
	r.down.Store(true)
	r.logger.Error("Place provider unavailable",
		zap.String("provider", r.name),
		zap.String("op", op),
		zap.Int("attempts", r.opts.MaxAttempts),
		zap.Error(lastErr),
	)
	return fmt.Errorf("%s %s after %d attempts: %w: %w",
		r.name, op, r.opts.MaxAttempts, domain.ErrProviderUnavailable, lastErr)
}

// HealthCheck is passive: it fails while the most recent call ended with
// exhausted retries, so health probes never spend provider quota.
func (r *Resilient) HealthCheck(context.Context) error {
	if r.down.Load() {
		return fmt.Errorf("%s: %w", r.name, domain.ErrProviderUnavailable)
	}
	return nil
}

func (r *Resilient) backoff(attempt int) time.Duration {
	d := r.opts.BaseBackoff << attempt
	if d <= 0 || d > r.opts.MaxBackoff {
		return r.opts.MaxBackoff
	}
	return d
}
