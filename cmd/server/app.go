package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/api"
	"github.com/karthickraja0810/clinical-decision-support/internal/cache"
	"github.com/karthickraja0810/clinical-decision-support/internal/config"
	"github.com/karthickraja0810/clinical-decision-support/internal/database"
	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
	"github.com/karthickraja0810/clinical-decision-support/internal/repository"
	"github.com/karthickraja0810/clinical-decision-support/internal/service"
	"github.com/karthickraja0810/clinical-decision-support/pkg/external"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	cfg       *domain.Config
	logger    *logrus.Logger
	cache     *cache.MemoryCache
	shared    *external.CacheClient
	db        *database.DB
	reasoning *service.ReasoningService
	closers   []func()
}

// loadConfig reads the config file (or the default search paths) and
// validates it.
func loadConfig(path string) (*config.Manager, error) {
	var (
		manager *config.Manager
		err     error
	)
	if path != "" {
		manager, err = config.NewManagerFromFile(path)
	} else {
		manager, err = config.NewManager()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := manager.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return manager, nil
}

// newApp wires the reasoning service and its optional collaborators. The
// database connection is opened only when a host is configured.
func newApp(ctx context.Context, cfg *domain.Config) (*app, error) {
	a := &app{
		cfg:    cfg,
		logger: config.NewLogger(cfg.Logging.Level, cfg.Logging.Format, nil),
	}

	memCache, err := cache.NewMemoryCache(cfg.Cache.MemorySize, cfg.Cache.DefaultTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	a.cache = memCache

	if cfg.Cache.RedisURL != "" {
		shared, err := external.NewCacheClient(external.RedisCacheConfig{
			RedisURL:   cfg.Cache.RedisURL,
			DefaultTTL: cfg.Cache.DefaultTTL,
		})
		if err != nil {
			a.logger.WithError(err).Warn("Redis cache unavailable, continuing with memory cache only")
		} else {
			a.shared = shared
			a.closers = append(a.closers, func() { shared.Close() })
		}
	}

	if cfg.Database.Enabled() {
		db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), a.logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		a.closers = append(a.closers, db.Close)
	}

	opts := []service.ReasoningOption{
		service.WithRetrievalLimit(cfg.Retrieval.ResultLimit),
		service.WithExcerptLength(cfg.Retrieval.ExcerptLength),
		service.WithCollaboratorTimeouts(cfg.Retrieval.Timeout, cfg.Explanation.Timeout),
	}

	var retriever domain.GuidelineRetriever
	switch cfg.Retrieval.Backend {
	case "sqlite":
		store := external.NewSQLiteGuidelineStore(cfg.Retrieval.SQLitePath)
		a.closers = append(a.closers, func() { store.Close() })
		retriever = store
	case "postgres":
		if a.db == nil {
			a.Close()
			return nil, fmt.Errorf("retrieval backend postgres requires a database connection")
		}
		retriever = external.NewPostgresGuidelineStore(a.db.Pool)
	}
	if retriever != nil {
		opts = append(opts, service.WithGuidelineRetriever(
			external.NewResilientRetriever(retriever, external.DefaultCircuitBreakerConfig(), memCache, a.shared, a.logger)))
	}

	if cfg.Explanation.Enabled {
		ollama := external.NewOllamaClient(external.OllamaConfig{
			BaseURL:   cfg.Explanation.BaseURL,
			Model:     cfg.Explanation.Model,
			Timeout:   cfg.Explanation.Timeout,
			RateLimit: cfg.Explanation.RateLimit,
		}, a.logger)
		opts = append(opts, service.WithExplanationGenerator(
			external.NewResilientExplainer(ollama, external.DefaultCircuitBreakerConfig(), memCache, a.logger)))
	}

	a.reasoning = service.NewReasoningService(a.logger, opts...)

	a.logger.WithFields(logrus.Fields{
		"retrieval":   cfg.Retrieval.Backend,
		"explanation": cfg.Explanation.Enabled,
		"database":    a.db != nil,
		"redis":       a.shared != nil,
	}).Info("Reasoning service initialized")
	return a, nil
}

// openFeedbackStore opens the configured feedback backend.
func (a *app) openFeedbackStore() (feedback.Store, error) {
	switch a.cfg.Feedback.Backend {
	case "postgres":
		return feedback.NewPostgresStoreFromURL(database.ConfigFromDomain(a.cfg.Database).URL())
	default:
		return feedback.NewSQLiteStore(a.cfg.Feedback.SQLitePath)
	}
}

// apiDependencies builds the HTTP layer's collaborators.
func (a *app) apiDependencies() (api.Dependencies, error) {
	store, err := a.openFeedbackStore()
	if err != nil {
		return api.Dependencies{}, fmt.Errorf("failed to open feedback store: %w", err)
	}
	a.closers = append(a.closers, func() { store.Close() })

	deps := api.Dependencies{
		Assessor:  a.reasoning,
		Evaluator: a.reasoning.RuleEngine(),
		Feedback:  store,
		Checks: map[string]api.HealthCheck{
			"feedback": func(ctx context.Context) error {
				_, err := store.Count(ctx)
				return err
			},
		},
	}
	if a.db != nil {
		deps.Assessments = repository.NewAssessmentRepository(a.db.Pool, a.logger)
		deps.Checks["database"] = a.db.Health
	}
	if a.shared != nil {
		deps.Checks["redis"] = a.shared.Ping
	}
	return deps, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
