package venuefinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
)

const (
	metricsNamespace = "venuefinder"
	metricsSubsystem = "sdk"
)

// clientMetrics are the embedded client's collectors. Turn outcomes are
// labelled by cache decision so hosts can see how often a refinement was
// answered without calling the place provider.
type clientMetrics struct {
	calls   *prometheus.CounterVec   // operation, outcome
	latency *prometheus.HistogramVec // operation
	turns   *prometheus.CounterVec   // cache
	venues  prometheus.Histogram
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "calls_total",
			Help:      "Client calls by operation and outcome (ok, busy, timeout, not_found, invalid, error).",
		}, []string{"operation", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "call_duration_seconds",
			Help:      "Client call duration in seconds, lock wait included.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "turns_total",
			Help:      "Committed turns by candidate cache decision (reused, no_cache, query_changed, ...).",
		}, []string{"cache"}),
		venues: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "turn_venues",
			Help:      "Venues returned per committed turn.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 10, 20},
		}),
	}

	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.latency); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.turns); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.venues); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse lets several clients in one process share a registry.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("venuefinder: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("venuefinder: metric already registered as %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts client calls. A nil observer is a no-op.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)
	outcome := outcomeOf(err)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, outcome).Inc()
		o.metrics.latency.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	switch outcome {
	case "ok":
		o.logger.Debug("call completed", "op", op, "duration", dur)
	case "error":
		o.logger.Warn("call failed", "op", op, "duration", dur, "error", err)
	default:
		// Expected caller-side conditions.
		o.logger.Info("call rejected", "op", op, "outcome", outcome, "duration", dur, "error", err)
	}
}

// observeTurn records what a committed turn did with the candidate cache.
func (o *observer) observeTurn(res pipeline.Result) {
	if o == nil {
		return
	}
	if o.metrics != nil {
		o.metrics.turns.WithLabelValues(string(res.Reason)).Inc()
		o.metrics.venues.Observe(float64(len(res.Venues)))
	}
	if o.logger != nil {
		o.logger.Debug("turn committed",
			"session_id", res.SessionID,
			"cache", string(res.Reason),
			"fetched", res.Fetched,
			"venues", len(res.Venues),
		)
	}
}

// outcomeOf maps an error to a low-cardinality label.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSessionBusy):
		return "busy"
	case errors.Is(err, ErrPipelineTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidDirective), errors.Is(err, ErrLocationRequired):
		return "invalid"
	}
	return "error"
}
