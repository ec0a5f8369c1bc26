package venuefinder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/db"
	dbMemory "github.com/kailas-cloud/venuefinder/internal/db/memory"
	dbRedis "github.com/kailas-cloud/venuefinder/internal/db/redis"
	domsession "github.com/kailas-cloud/venuefinder/internal/domain/session"
	"github.com/kailas-cloud/venuefinder/internal/metrics"
	"github.com/kailas-cloud/venuefinder/internal/repository/placecache"
	"github.com/kailas-cloud/venuefinder/internal/repository/snapshot"
	openaiTransport "github.com/kailas-cloud/venuefinder/internal/transport/openai"
	"github.com/kailas-cloud/venuefinder/internal/transport/places"
	budgetuc "github.com/kailas-cloud/venuefinder/internal/usecase/budget"
	healthuc "github.com/kailas-cloud/venuefinder/internal/usecase/health"
	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
	"github.com/kailas-cloud/venuefinder/internal/usecase/provider"
	"github.com/kailas-cloud/venuefinder/internal/usecase/ranking"
	usession "github.com/kailas-cloud/venuefinder/internal/usecase/session"
	usageuc "github.com/kailas-cloud/venuefinder/internal/usecase/usage"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultProviderTimeout  = 10 * time.Second
	defaultIdleTTL          = time.Hour
	defaultPlaceTTL         = 24 * time.Hour
)

// Internal interfaces for substitution in tests.
type turnRunner interface {
	Run(ctx context.Context, req pipeline.TurnRequest) (pipeline.Result, error)
}

type sessionManager interface {
	Get(ctx context.Context, id string) (*domsession.Session, error)
	Reset(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// Client is the venuefinder entry point.
type Client struct {
	store     db.Store
	turns     turnRunner
	sessions  sessionManager
	healthSvc healthUseCase
	usageSvc  usageUseCase
	obs       *observer
}

// New creates a Client. A place provider is required; storage defaults to
// in-process memory. The provided context is used for the readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		driver:   "memory",
		llmModel: "gpt-4o-mini",
		idleTTL:  defaultIdleTTL,
		placeTTL: defaultPlaceTTL,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.providerKey == "" {
		return nil, errors.New("venuefinder: place provider required (use WithGooglePlaces or WithFoursquare)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("venuefinder: database not ready: %w", err)
	}

	return wireClient(store, cfg, obs), nil
}

func createStore(cfg *clientConfig) (db.Store, error) {
	switch cfg.driver {
	case "memory":
		return dbMemory.NewStore(time.Minute), nil
	case "valkey", "redis":
		if len(cfg.addrs) == 0 || cfg.addrs[0] == "" {
			return nil, fmt.Errorf("venuefinder: %s address required", cfg.driver)
		}
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.addrs,
			Password:   cfg.password,
			Standalone: cfg.standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("venuefinder: create %s store: %w", cfg.driver, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("venuefinder: unknown driver %q", cfg.driver)
	}
}

func wireClient(store db.Store, cfg *clientConfig, obs *observer) *Client {
	// Internals log through zap; client operations are reported via the observer.
	logger := zap.NewNop()

	var inner provider.Provider
	switch cfg.providerKind {
	case "foursquare":
		inner = places.NewFoursquare(places.FoursquareConfig{
			APIKey: cfg.providerKey, BaseURL: cfg.providerBaseURL, Timeout: defaultProviderTimeout,
		})
	default:
		inner = places.NewGoogle(places.GoogleConfig{
			APIKey: cfg.providerKey, BaseURL: cfg.providerBaseURL, Timeout: defaultProviderTimeout,
		})
	}
	resilient := provider.NewResilient(inner, cfg.providerKind, provider.Options{}, logger)
	cached := placecache.New(resilient, cfg.providerKind, store, cfg.placeTTL, metrics.PlaceCacheTotal, logger)

	var (
		composer   pipeline.Composer = openaiTransport.StaticComposer{}
		llmChecker healthuc.Checker
		budget     usageuc.BudgetReader
	)
	if cfg.llmKey != "" {
		ocfg := &openaiTransport.Config{
			APIKey:  cfg.llmKey,
			BaseURL: cfg.llmBaseURL,
			Model:   cfg.llmModel,
			Logger:  logger,
		}
		if cfg.dailyTokens > 0 || cfg.monthlyTokens > 0 {
			tracker := budgetuc.NewTracker(cfg.llmModel, cfg.dailyTokens, cfg.monthlyTokens, budgetuc.ActionReject, logger)
			ocfg.Budget = tracker
			budget = tracker
		}
		c := openaiTransport.NewComposer(ocfg)
		composer, llmChecker = c, c
	}

	sessions := usession.New(usession.Config{
		IdleTTL:         cfg.idleTTL,
		CreateOnUnknown: true,
	}, snapshot.New(store, cfg.idleTTL), logger)

	turns := pipeline.New(cached, sessions, composer, ranking.New(ranking.Weights{}, cfg.resultLimit),
		pipeline.DefaultOptions(), logger)

	return &Client{
		store:     store,
		turns:     turns,
		sessions:  sessions,
		healthSvc: healthuc.New(store, resilient, llmChecker),
		usageSvc:  usageuc.New(budget),
		obs:       obs,
	}
}

// Close releases all resources.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ask runs one conversational turn. On error the session is unchanged.
func (c *Client) Ask(ctx context.Context, t Turn) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	req, err := toTurnRequest(t)
	if err != nil {
		return Result{}, err
	}
	out, err := c.turns.Run(ctx, req)
	if err != nil {
		return Result{}, fmt.Errorf("ask: %w", err)
	}
	c.obs.observeTurn(out)
	return fromResult(out), nil
}

// Session returns the current state of a conversation.
func (c *Client) Session(ctx context.Context, id string) (s Session, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get_session", start, err) }()

	sess, err := c.sessions.Get(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return fromSession(sess), nil
}

// ResetSession clears history and cached candidates but keeps the id. Filters
// restart from the session's standing preferences.
func (c *Client) ResetSession(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("reset_session", start, err) }()

	if err = c.sessions.Reset(ctx, id); err != nil {
		return fmt.Errorf("reset session %s: %w", id, err)
	}
	return nil
}

// DeleteSession forgets a conversation.
func (c *Client) DeleteSession(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_session", start, err) }()

	if err = c.sessions.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}
