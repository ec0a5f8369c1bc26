package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/config"
	"github.com/kailas-cloud/venuefinder/internal/db"
	dbMemory "github.com/kailas-cloud/venuefinder/internal/db/memory"
	dbRedis "github.com/kailas-cloud/venuefinder/internal/db/redis"
	"github.com/kailas-cloud/venuefinder/internal/domain/candidate"
	logpkg "github.com/kailas-cloud/venuefinder/internal/logger"
	"github.com/kailas-cloud/venuefinder/internal/metrics"
	budgetrepo "github.com/kailas-cloud/venuefinder/internal/repository/budget"
	"github.com/kailas-cloud/venuefinder/internal/repository/placecache"
	"github.com/kailas-cloud/venuefinder/internal/repository/snapshot"
	chiTransport "github.com/kailas-cloud/venuefinder/internal/transport/chi"
	"github.com/kailas-cloud/venuefinder/internal/transport/mcptools"
	openaiTransport "github.com/kailas-cloud/venuefinder/internal/transport/openai"
	"github.com/kailas-cloud/venuefinder/internal/transport/places"
	budgetuc "github.com/kailas-cloud/venuefinder/internal/usecase/budget"
	healthuc "github.com/kailas-cloud/venuefinder/internal/usecase/health"
	"github.com/kailas-cloud/venuefinder/internal/usecase/pipeline"
	"github.com/kailas-cloud/venuefinder/internal/usecase/provider"
	"github.com/kailas-cloud/venuefinder/internal/usecase/ranking"
	usession "github.com/kailas-cloud/venuefinder/internal/usecase/session"
	usageuc "github.com/kailas-cloud/venuefinder/internal/usecase/usage"
	"github.com/kailas-cloud/venuefinder/internal/version"
)

func newServeCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and MCP server",
		Long: `Run the HTTP and MCP server.

Configuration is read from config/<env>.yaml; env defaults to $ENV or "local".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if env == "" {
				env = config.GetEnv()
			}
			return runServe(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment (local, dev, docker, prod)")
	return cmd
}

func runServe(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, logpkg.Options{Level: cfg.Logging.Level, File: cfg.Logging.File})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting venuefinder server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("provider", cfg.Provider.Kind),
	)

	store, err := newStore(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to create database store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		return fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database")

	// Register pipeline metrics explicitly (no init())
	metrics.Register()

	// Place provider chain: HTTP client -> retries -> details/geocode cache
	resilient := provider.NewResilient(newPlaces(cfg.Provider), cfg.Provider.Kind, provider.Options{
		MaxAttempts: cfg.Provider.MaxAttempts,
		BaseBackoff: time.Duration(cfg.Provider.BackoffMs) * time.Millisecond,
	}, logger)
	cached := placecache.New(
		resilient, cfg.Provider.Kind, store,
		time.Duration(cfg.Cache.PlaceTTLSec)*time.Second,
		metrics.PlaceCacheTotal, logger,
	)

	tracker := newBudgetTracker(ctx, cfg.LLM, store, logger)
	composer, llmChecker := newComposer(cfg.LLM, tracker, logger)

	sessions := usession.New(usession.Config{
		IdleTTL:         cfg.IdleTTL(),
		LockTimeout:     cfg.LockTimeout(),
		CreateOnUnknown: *cfg.Session.CreateOnUnknown,
	}, snapshot.New(store, cfg.IdleTTL()), logger)

	w := cfg.Pipeline.Weights
	ranker := ranking.New(ranking.Weights{Text: w.Text, Rating: w.Rating, Proximity: w.Proximity}, cfg.Pipeline.ResultLimit)

	turns := pipeline.New(cached, sessions, composer, ranker, pipeline.Options{
		FetchLimit:        cfg.Pipeline.FetchLimit,
		EnrichTopN:        cfg.Pipeline.EnrichTopN,
		EnrichConcurrency: cfg.Pipeline.EnrichConcurrency,
		Timeout:           cfg.PipelineTimeout(),
		Policy: candidate.Policy{
			SimilarityThreshold:    cfg.Pipeline.Similarity,
			LocationToleranceMiles: cfg.Pipeline.ToleranceMiles,
			MaxAge:                 cfg.CandidateMaxAge(),
		},
	}, logger)

	healthSvc := healthuc.New(store, resilient, llmChecker)

	// Pass nil interface (not typed nil pointer!) when no budget is tracked.
	var budgetReader usageuc.BudgetReader
	if tracker != nil {
		budgetReader = tracker
	}
	usageSvc := usageuc.New(budgetReader)

	api := chiTransport.NewServer(turns, sessions, healthSvc, usageSvc, logger)
	mcpSrv := mcptools.NewServer(mcptools.Deps{Turns: turns, Sessions: sessions, Version: version.Version})

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	api.Register(r)
	r.Handle("/mcp", server.NewStreamableHTTPServer(mcpSrv))

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-quit:
		logger.Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}

// newStore creates the key-value store for the configured driver.
func newStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case "valkey", "redis":
		// Both speak RESP; one rueidis client serves either.
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Addrs,
			Username:   cfg.Username,
			Password:   cfg.Password,
			DB:         cfg.DB,
			Standalone: cfg.Standalone,
		})
		if err != nil {
			return nil, fmt.Errorf("%s store: %w", cfg.Driver, err)
		}
		return s, nil
	case "memory":
		return dbMemory.NewStore(time.Minute), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

func newPlaces(cfg config.ProviderConfig) provider.Provider {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if cfg.Kind == "foursquare" {
		return places.NewFoursquare(places.FoursquareConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: timeout})
	}
	return places.NewGoogle(places.GoogleConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Timeout: timeout})
}

// newBudgetTracker returns nil when no language model or token limit is configured.
func newBudgetTracker(ctx context.Context, cfg config.LLMConfig, store db.Store, logger *zap.Logger) *budgetuc.Tracker {
	if cfg.APIKey == "" || !cfg.Budget.Enabled() {
		return nil
	}
	tracker := budgetuc.NewTracker(
		cfg.Model, cfg.Budget.DailyTokenLimit, cfg.Budget.MonthlyTokenLimit,
		budgetuc.Action(cfg.Budget.Action), logger,
	)
	return tracker.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
}

// newComposer returns the language model composer, or the template composer
// when no API key is configured. The checker is nil in the latter case.
func newComposer(cfg config.LLMConfig, tracker *budgetuc.Tracker, logger *zap.Logger) (pipeline.Composer, healthuc.Checker) {
	if cfg.APIKey == "" {
		logger.Warn("llm.api_key is empty, responses use the template composer")
		// Pass nil interface (not typed nil pointer!) so health skips the check.
		return openaiTransport.StaticComposer{}, nil
	}
	ocfg := &openaiTransport.Config{
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		Model:        cfg.Model,
		Temperature:  cfg.Temperature,
		MaxTokens:    cfg.MaxTokens,
		HistoryTurns: cfg.HistoryTurns,
		Logger:       logger,
	}
	if tracker != nil {
		ocfg.Budget = tracker
	}
	c := openaiTransport.NewComposer(ocfg)
	return c, c
}
