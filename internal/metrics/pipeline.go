package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "venuefinder"

// Place provider metrics.
var (
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of place provider calls",
		},
		[]string{"provider", "op", "status"},
	)

	ProviderRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Place provider call duration in seconds, retries included",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "op"},
	)

	ProviderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Retries of transient place provider failures",
		},
		[]string{"provider", "op"},
	)

	PlaceCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "place_cache_total",
			Help:      "Place details/geocode cache hits and misses",
		},
		[]string{"op", "result"}, // "hit" / "miss"
	)
)

// Language model metrics.
var (
	LLMRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of language model requests",
		},
		[]string{"model", "status"},
	)

	LLMRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Language model request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"model"},
	)

	LLMTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Total language model tokens consumed",
		},
		[]string{"model", "type"},
	)
)

// Pipeline and session metrics.
var (
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Pipeline turns by outcome",
		},
		[]string{"outcome"},
	)

	FetchDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_decisions_total",
			Help:      "Candidate cache reuse decisions by reason",
		},
		[]string{"reason"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"stage"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Sessions currently held in memory",
		},
	)

	SessionLockWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_lock_wait_seconds",
			Help:      "Time spent waiting for a session lock",
			Buckets:   []float64{0.0001, 0.001, 0.01, 0.1, 0.5, 1, 2.5, 5},
		},
	)
)

var registered bool

// Register registers the application metrics. Must be called once from main.
func Register() {
	if registered {
		return
	}
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderRequestDuration,
		ProviderRetriesTotal,
		PlaceCacheTotal,
		LLMRequestsTotal,
		LLMRequestDuration,
		LLMTokensTotal,
		TurnsTotal,
		FetchDecisionsTotal,
		StageDuration,
		ActiveSessions,
		SessionLockWait,
	)
	registered = true
}
