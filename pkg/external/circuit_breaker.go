package external

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/karthickraja0810/clinical-decision-support/internal/cache"
	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	MaxRequests  uint32        `json:"max_requests"`
	Interval     time.Duration `json:"interval"`
	Timeout      time.Duration `json:"timeout"`
	MinRequests  uint32        `json:"min_requests"`
	FailureRatio float64       `json:"failure_ratio"`
}

// DefaultCircuitBreakerConfig trips after 3 requests with 60% failures and
// probes again after a minute.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxRequests:  3,
		Interval:     30 * time.Second,
		Timeout:      60 * time.Second,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

func newCircuitBreaker(name string, config CircuitBreakerConfig, logger *logrus.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= config.MinRequests && failureRatio >= config.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// ResilientRetriever wraps a guideline retriever with a circuit breaker, an
// in-memory cache and an optional shared Redis cache.
type ResilientRetriever struct {
	inner   domain.GuidelineRetriever
	breaker *gobreaker.CircuitBreaker
	memory  *cache.MemoryCache
	shared  *CacheClient
	logger  *logrus.Logger
}

// NewResilientRetriever creates a resilient retriever. memory and shared may be nil.
func NewResilientRetriever(inner domain.GuidelineRetriever, config CircuitBreakerConfig, memory *cache.MemoryCache, shared *CacheClient, logger *logrus.Logger) *ResilientRetriever {
	return &ResilientRetriever{
		inner:   inner,
		breaker: newCircuitBreaker("guideline-retrieval", config, logger),
		memory:  memory,
		shared:  shared,
		logger:  logger,
	}
}

// Retrieve implements domain.GuidelineRetriever
func (r *ResilientRetriever) Retrieve(ctx context.Context, query, evidenceDomain string, limit int) ([]string, error) {
	cacheQuery := fmt.Sprintf("%d|%s", limit, query)
	memKey := "retrieve:" + evidenceDomain + ":" + cacheQuery
	if r.memory != nil {
		if docs, ok := r.memory.GetStrings(memKey); ok {
			return docs, nil
		}
	}
	if r.shared != nil {
		docs, found, err := r.shared.GetDocuments(ctx, evidenceDomain, cacheQuery)
		if err != nil {
			r.logger.WithError(err).Debug("Shared cache lookup failed")
		} else if found {
			r.remember(memKey, docs)
			return docs, nil
		}
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Retrieve(ctx, query, evidenceDomain, limit)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("guideline retrieval unavailable (circuit breaker open): %w", err)
		}
		return nil, fmt.Errorf("guideline retrieval failed: %w", err)
	}

	docs := result.([]string)
	// An absent index also yields no documents; don't pin that until ingest.
	if len(docs) == 0 {
		return docs, nil
	}
	r.remember(memKey, docs)
	if r.shared != nil {
		if err := r.shared.SetDocuments(ctx, evidenceDomain, cacheQuery, docs); err != nil {
			r.logger.WithError(err).Debug("Failed to cache guideline documents")
		}
	}
	return docs, nil
}

func (r *ResilientRetriever) remember(key string, docs []string) {
	if r.memory != nil {
		r.memory.Set(key, docs)
	}
}

// State returns the breaker state
func (r *ResilientRetriever) State() gobreaker.State {
	return r.breaker.State()
}

// ResilientExplainer wraps an explanation generator with a circuit breaker
// and an optional narrative cache keyed on the exact prompt inputs.
type ResilientExplainer struct {
	inner   domain.ExplanationGenerator
	breaker *gobreaker.CircuitBreaker
	memory  *cache.MemoryCache
	logger  *logrus.Logger
}

// NewResilientExplainer creates a resilient explainer. memory may be nil.
func NewResilientExplainer(inner domain.ExplanationGenerator, config CircuitBreakerConfig, memory *cache.MemoryCache, logger *logrus.Logger) *ResilientExplainer {
	return &ResilientExplainer{
		inner:   inner,
		breaker: newCircuitBreaker("explanation", config, logger),
		memory:  memory,
		logger:  logger,
	}
}

// Explain implements domain.ExplanationGenerator
func (r *ResilientExplainer) Explain(ctx context.Context, findings []string, guidelineContext string) (string, error) {
	key := narrativeKey(findings, guidelineContext)
	if r.memory != nil {
		if text, ok := r.memory.GetString(key); ok {
			return text, nil
		}
	}

	result, err := r.breaker.Execute(func() (interface{}, error) {
		return r.inner.Explain(ctx, findings, guidelineContext)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("explanation service unavailable (circuit breaker open): %w", err)
		}
		return "", fmt.Errorf("explanation failed: %w", err)
	}

	text := result.(string)
	if r.memory != nil && strings.TrimSpace(text) != "" {
		r.memory.Set(key, text)
	}
	return text, nil
}

// State returns the breaker state
func (r *ResilientExplainer) State() gobreaker.State {
	return r.breaker.State()
}

func narrativeKey(findings []string, guidelineContext string) string {
	h := sha256.New()
	for _, f := range findings {
		h.Write([]byte(f))
		h.Write([]byte{0})
	}
	h.Write([]byte(guidelineContext))
	return "narrative:" + hex.EncodeToString(h.Sum(nil))
}
