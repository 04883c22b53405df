// Package mcp provides the MCP server implementation.
// This file contains the lightweight server that requires no external databases.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/cache"
	litecfg "github.com/karthickraja0810/clinical-decision-support/internal/config"
	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
	"github.com/karthickraja0810/clinical-decision-support/internal/mcp/tools"
	"github.com/karthickraja0810/clinical-decision-support/internal/service"
	"github.com/karthickraja0810/clinical-decision-support/pkg/external"
)

const (
	liteServerName    = "clinical-decision-support-lite"
	liteServerVersion = "v1.0.0"
)

// LiteServer is a lightweight MCP server that requires no external databases.
// It uses in-memory caching and SQLite for persistence.
type LiteServer struct {
	config        *litecfg.LiteConfig
	mcpServer     *mcp.Server
	toolRegistry  *tools.ToolRegistry
	toolNames     []string
	reasoning     *service.ReasoningService
	feedbackStore feedback.Store
	guidelines    *external.SQLiteGuidelineStore
	retriever     domain.GuidelineRetriever
	explainer     domain.ExplanationGenerator
	cache         *cache.MemoryCache
	logger        *logrus.Logger
}

// LiteServerOption is a functional option for LiteServer.
type LiteServerOption func(*LiteServer) error

// WithFeedbackStore sets a custom feedback store.
func WithFeedbackStore(store feedback.Store) LiteServerOption {
	return func(s *LiteServer) error {
		s.feedbackStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) LiteServerOption {
	return func(s *LiteServer) error {
		s.logger = logger
		return nil
	}
}

// WithGuidelineRetriever replaces the SQLite guideline index.
func WithGuidelineRetriever(retriever domain.GuidelineRetriever) LiteServerOption {
	return func(s *LiteServer) error {
		s.retriever = retriever
		return nil
	}
}

// WithExplanationGenerator replaces the Ollama narrative generator.
func WithExplanationGenerator(explainer domain.ExplanationGenerator) LiteServerOption {
	return func(s *LiteServer) error {
		s.explainer = explainer
		return nil
	}
}

// NewLiteServer creates a new lightweight MCP server instance.
// It requires no external databases - uses in-memory cache and SQLite.
func NewLiteServer(cfg *litecfg.LiteConfig, opts ...LiteServerOption) (*LiteServer, error) {
	server := &LiteServer{
		config: cfg,
		logger: litecfg.NewLogger(cfg.LogLevel, cfg.LogFormat, nil),
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	memCache, err := cache.NewMemoryCache(cfg.CacheMaxItems, cfg.CacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	server.cache = memCache

	if server.feedbackStore == nil {
		store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create feedback store: %w", err)
		}
		server.feedbackStore = store
	}

	// Collaborators are optional: a missing guideline index yields empty
	// evidence, an unreachable Ollama server yields the fallback narrative.
	if server.retriever == nil {
		server.guidelines = external.NewSQLiteGuidelineStore(cfg.GuidelineDBPath())
		server.retriever = server.guidelines
	}
	retriever := external.NewResilientRetriever(server.retriever, external.DefaultCircuitBreakerConfig(), memCache, nil, server.logger)

	reasoningOpts := []service.ReasoningOption{
		service.WithGuidelineRetriever(retriever),
		service.WithCollaboratorTimeouts(cfg.RetrievalTimeout, cfg.ExplanationTimeout),
	}
	if server.explainer == nil && cfg.ExplanationEnabled {
		server.explainer = external.NewOllamaClient(external.OllamaConfig{
			BaseURL: cfg.OllamaURL,
			Model:   cfg.OllamaModel,
			Timeout: cfg.ExplanationTimeout,
		}, server.logger)
	}
	if server.explainer != nil {
		explainer := external.NewResilientExplainer(server.explainer, external.DefaultCircuitBreakerConfig(), memCache, server.logger)
		reasoningOpts = append(reasoningOpts, service.WithExplanationGenerator(explainer))
	}
	server.reasoning = service.NewReasoningService(server.logger, reasoningOpts...)

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    liteServerName,
		Version: liteServerVersion,
	}, nil)

	server.toolRegistry = tools.NewToolRegistry(server.logger, server.reasoning, server.feedbackStore, memCache, cfg.ExportDir())
	server.toolNames = server.toolRegistry.RegisterAllTools(server.mcpServer)

	server.logger.WithFields(logrus.Fields{
		"data_dir":    cfg.DataDir,
		"explanation": server.explainer != nil,
		"tools":       len(server.toolNames),
	}).Info("Lite server initialized successfully")
	return server, nil
}

// Start serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *LiteServer) Start(ctx context.Context) error {
	s.logger.Info("Starting clinical decision support MCP server (lite) on stdio")
	return s.Run(ctx, &mcp.StdioTransport{})
}

// Run serves MCP over the given transport.
func (s *LiteServer) Run(ctx context.Context, transport mcp.Transport) error {
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Connect starts a single session over the given transport without blocking.
func (s *LiteServer) Connect(ctx context.Context, transport mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, transport, nil)
}

// Close cleans up server resources.
func (s *LiteServer) Close() error {
	if s.feedbackStore != nil {
		if err := s.feedbackStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close feedback store")
		}
	}
	if s.guidelines != nil {
		if err := s.guidelines.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close guideline store")
		}
	}
	return nil
}

// ToolNames returns the registered tool names in registration order.
func (s *LiteServer) ToolNames() []string {
	return s.toolNames
}

// GetFeedbackStore returns the feedback store for external access.
func (s *LiteServer) GetFeedbackStore() feedback.Store {
	return s.feedbackStore
}

// GetCache returns the memory cache for external access.
func (s *LiteServer) GetCache() *cache.MemoryCache {
	return s.cache
}
