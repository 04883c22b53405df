package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/cache"
	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
	"github.com/karthickraja0810/clinical-decision-support/internal/middleware"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Evaluator runs individual domain rules.
type Evaluator interface {
	EvaluateDomain(code string, record *domain.PatientRecord) (*domain.DomainVerdict, error)
	Domains() []string
}

// HealthCheck reports the state of one dependency.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators the HTTP layer serves. Assessments,
// Feedback and Cards are optional.
type Dependencies struct {
	Assessor    domain.Assessor
	Evaluator   Evaluator
	Assessments domain.AssessmentRepository
	Feedback    feedback.Store
	// Cards remembers issued CDS cards for the feedback endpoint.
	Cards  *cache.MemoryCache
	Checks map[string]HealthCheck
}

// Server represents the HTTP server
type Server struct {
	config domain.ServerConfig
	deps   Dependencies
	logger *logrus.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(config domain.ServerConfig, deps Dependencies, logger *logrus.Logger) (*Server, error) {
	if deps.Assessor == nil || deps.Evaluator == nil {
		return nil, fmt.Errorf("assessor and evaluator are required")
	}
	if deps.Cards == nil {
		cards, err := cache.NewMemoryCache(10000, 24*time.Hour)
		if err != nil {
			return nil, fmt.Errorf("creating card cache: %w", err)
		}
		deps.Cards = cards
	}

	if logger.GetLevel() >= logrus.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(config.AllowedOrigins))
	router.Use(middleware.RateLimit(config.RateLimit, config.RateBurst))
	router.Use(middleware.BodyLimit(config.MaxBodyBytes))

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger,
		router: router,
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/assessments", s.handleAssess)
		v1.GET("/assessments/:id", s.handleGetAssessment)
		v1.GET("/evaluators", s.handleListEvaluators)
		v1.POST("/evaluators/:domain", s.handleEvaluateDomain)
		v1.POST("/feedback", s.handleSubmitFeedback)
		v1.GET("/feedback", s.handleListFeedback)
	}

	cds := s.router.Group("/cds-services")
	{
		cds.GET("", s.handleCDSDiscovery)
		cds.POST("/:id", s.handleCDSService)
		cds.POST("/:id/feedback", s.handleCDSFeedback)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	checks := make(map[string]string, len(s.deps.Checks))
	for name, check := range s.deps.Checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"version":   Version,
		"checks":    checks,
	})
}
