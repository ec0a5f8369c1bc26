package venuefinder

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver     string // "memory", "valkey" or "redis"
	addrs      []string
	password   string
	standalone bool

	providerKind    string // "google" or "foursquare"
	providerKey     string
	providerBaseURL string

	llmKey     string
	llmBaseURL string
	llmModel   string

	dailyTokens   int64
	monthlyTokens int64

	resultLimit int
	idleTTL     time.Duration
	placeTTL    time.Duration

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithValkey snapshots sessions and caches place details in Valkey.
func WithValkey(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithRedis snapshots sessions and caches place details in Redis.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithStandalone disables cluster topology discovery.
// Use for single-node Valkey/Redis instances.
func WithStandalone() Option {
	return optionFunc(func(c *clientConfig) {
		c.standalone = true
	})
}

// WithGooglePlaces selects the Google Places provider.
func WithGooglePlaces(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.providerKind = "google"
		c.providerKey = apiKey
	})
}

// WithFoursquare selects the Foursquare Places provider.
func WithFoursquare(apiKey string) Option {
	return optionFunc(func(c *clientConfig) {
		c.providerKind = "foursquare"
		c.providerKey = apiKey
	})
}

// WithProviderBaseURL overrides the place provider endpoint (proxies, tests).
func WithProviderBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.providerBaseURL = url
	})
}

// WithOpenAI enables language model responses. Without it the client
// answers with a template response.
func WithOpenAI(apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llmKey = apiKey
		c.llmModel = model
	})
}

// WithOpenAIBaseURL points the composer at an OpenAI-compatible endpoint.
func WithOpenAIBaseURL(url string) Option {
	return optionFunc(func(c *clientConfig) {
		c.llmBaseURL = url
	})
}

// WithTokenBudget rejects language model calls once the daily or monthly
// token limit is spent. Zero means unlimited. Over budget, responses fall
// back to the template text.
func WithTokenBudget(daily, monthly int64) Option {
	return optionFunc(func(c *clientConfig) {
		c.dailyTokens = daily
		c.monthlyTokens = monthly
	})
}

// WithResultLimit sets how many venues a turn returns.
// Default: 5.
func WithResultLimit(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.resultLimit = n
	})
}

// WithSessionTTL sets how long an idle session is kept.
// Default: 1h.
func WithSessionTTL(ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.idleTTL = ttl
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
