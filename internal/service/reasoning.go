package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// Defaults for collaborator calls.
const (
	DefaultRetrievalLimit     = 3
	DefaultRetrievalTimeout   = 5 * time.Second
	DefaultExplanationTimeout = 30 * time.Second
)

// errEmptyNarrative marks a generator that returned no text.
var errEmptyNarrative = errors.New("explanation generator returned an empty narrative")

// ReasoningService runs the endocrine reasoning pipeline. It is safe for
// concurrent use; each call works on its own copy of the record.
type ReasoningService struct {
	logger             *logrus.Logger
	ruleEngine         *EndocrineRuleEngine
	retriever          domain.GuidelineRetriever
	explainer          domain.ExplanationGenerator
	retrievalLimit     int
	excerptLength      int
	retrievalTimeout   time.Duration
	explanationTimeout time.Duration
}

// ReasoningOption is a functional option for ReasoningService.
type ReasoningOption func(*ReasoningService)

// WithGuidelineRetriever sets the guideline retrieval collaborator.
func WithGuidelineRetriever(r domain.GuidelineRetriever) ReasoningOption {
	return func(s *ReasoningService) { s.retriever = r }
}

// WithExplanationGenerator sets the narrative generation collaborator.
func WithExplanationGenerator(g domain.ExplanationGenerator) ReasoningOption {
	return func(s *ReasoningService) { s.explainer = g }
}

// WithRetrievalLimit sets how many guideline documents are requested.
func WithRetrievalLimit(n int) ReasoningOption {
	return func(s *ReasoningService) {
		if n > 0 {
			s.retrievalLimit = n
		}
	}
}

// WithExcerptLength sets the maximum supporting evidence length.
func WithExcerptLength(n int) ReasoningOption {
	return func(s *ReasoningService) {
		if n > 0 {
			s.excerptLength = n
		}
	}
}

// WithCollaboratorTimeouts bounds the retrieval and explanation calls.
func WithCollaboratorTimeouts(retrieval, explanation time.Duration) ReasoningOption {
	return func(s *ReasoningService) {
		if retrieval > 0 {
			s.retrievalTimeout = retrieval
		}
		if explanation > 0 {
			s.explanationTimeout = explanation
		}
	}
}

// NewReasoningService creates a reasoning service. Without collaborators the
// supporting evidence is empty and non-diabetes narratives use the fallback.
func NewReasoningService(logger *logrus.Logger, opts ...ReasoningOption) *ReasoningService {
	s := &ReasoningService{
		logger:             logger,
		ruleEngine:         NewEndocrineRuleEngine(logger),
		retrievalLimit:     DefaultRetrievalLimit,
		excerptLength:      DefaultExcerptLength,
		retrievalTimeout:   DefaultRetrievalTimeout,
		explanationTimeout: DefaultExplanationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RuleEngine exposes the underlying rule engine for single-domain evaluation.
func (s *ReasoningService) RuleEngine() *EndocrineRuleEngine {
	return s.ruleEngine
}

// Assess converts a patient record into an assessment. It never fails: every
// path ends in a well-formed result.
func (s *ReasoningService) Assess(ctx context.Context, record *domain.PatientRecord) *domain.AssessmentResult {
	startTime := time.Now()
	if record == nil {
		record = &domain.PatientRecord{}
	}

	// Step 1: Safety override on the raw values
	if alerts := CriticalAlerts(record); len(alerts) > 0 {
		s.logger.WithField("alerts", len(alerts)).Warn("Critical values detected, reasoning halted")
		return criticalOverrideResult(alerts)
	}

	// Step 2: Female-specific symptoms are cleared for everyone else. This runs
	// before the gate, so a male record whose only input is a female-specific
	// symptom is reported as insufficient data.
	filtered := record.WithSexFilteredSymptoms()

	// Step 3: Sufficiency gate
	if !HasMinimumClinicalData(filtered) {
		s.logger.Info("Insufficient clinical data for assessment")
		return insufficientDataResult()
	}

	// Step 4: Domain evaluators and arbitration
	verdicts := s.ruleEngine.EvaluateAll(filtered)
	arb := Arbitrate(verdicts)
	if arb == nil {
		s.logger.WithField("verdicts", len(verdicts)).Info("No actionable endocrine findings")
		return noFindingsResult()
	}

	// Step 5: Guideline excerpt for the primary only
	excerpt := s.retrieveExcerpt(ctx, arb.Primary)

	// Step 6: Narrative
	narrative := s.narrate(ctx, filtered, arb.Primary, excerpt)

	result := assembleResult(arb, narrative, excerpt)

	s.logger.WithFields(logrus.Fields{
		"evidence_domain":  result.Primary.EvidenceDomain,
		"condition":        result.Primary.Condition,
		"risk_level":       result.Primary.RiskLevel,
		"secondary":        len(result.Secondary),
		"borderline":       len(result.BorderlineFindings),
		"narrative_source": narrative.Source,
		"has_evidence":     excerpt != "",
		"processing_time":  time.Since(startTime),
	}).Info("Clinical assessment completed")

	return result
}

type retrieval struct {
	docs []string
	err  error
}

// retrieveExcerpt degrades every failure to an empty excerpt. The call runs
// in its own goroutine so a retriever that ignores ctx cannot hold up the
// assessment past the retrieval timeout.
func (s *ReasoningService) retrieveExcerpt(ctx context.Context, primary domain.DomainVerdict) string {
	if s.retriever == nil {
		return ""
	}

	callCtx, cancel := context.WithTimeout(ctx, s.retrievalTimeout)
	defer cancel()

	done := make(chan retrieval, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- retrieval{err: fmt.Errorf("guideline retrieval panicked: %v", r)}
			}
		}()
		docs, err := s.retriever.Retrieve(callCtx, primary.Condition, primary.Domain, s.retrievalLimit)
		done <- retrieval{docs: docs, err: err}
	}()

	var res retrieval
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = retrieval{err: fmt.Errorf("guideline retrieval: %w", callCtx.Err())}
	}
	if res.err != nil {
		s.logger.WithError(res.err).WithField("domain", primary.Domain).Warn("Guideline retrieval failed, continuing without evidence")
		return ""
	}
	return ExtractExcerpt(res.docs, s.excerptLength)
}

// narrate uses the glycemic templates for diabetes and the generator for
// every other domain, falling back to a fixed sentence on failure.
func (s *ReasoningService) narrate(ctx context.Context, record *domain.PatientRecord, primary domain.DomainVerdict, excerpt string) Narrative {
	if primary.Domain == domain.DomainDiabetes {
		return Narrative{Text: DiabetesNarrative(record.Labs), Source: NarrativeTemplate}
	}

	narrative := s.generate(ctx, primary.ClinicalFindings, excerpt)
	if narrative.Source == NarrativeFallback {
		s.logger.WithError(narrative.Err).WithField("domain", primary.Domain).Warn("Explanation generation failed, using fallback narrative")
	}
	return narrative
}

type explanation struct {
	text string
	err  error
}

func (s *ReasoningService) generate(ctx context.Context, findings []string, excerpt string) Narrative {
	if s.explainer == nil {
		return Narrative{Text: FallbackNarrative, Source: NarrativeFallback, Err: errors.New("no explanation generator configured")}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.explanationTimeout)
	defer cancel()

	if findings == nil {
		findings = []string{}
	}
	done := make(chan explanation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- explanation{err: fmt.Errorf("explanation generator panicked: %v", r)}
			}
		}()
		text, err := s.explainer.Explain(callCtx, findings, excerpt)
		done <- explanation{text: text, err: err}
	}()

	var res explanation
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = explanation{err: fmt.Errorf("explanation generator: %w", callCtx.Err())}
	}
	if res.err == nil && strings.TrimSpace(res.text) == "" {
		res.err = errEmptyNarrative
	}
	if res.err != nil {
		return Narrative{Text: FallbackNarrative, Source: NarrativeFallback, Err: res.err}
	}
	return Narrative{Text: strings.TrimSpace(res.text), Source: NarrativeGenerated}
}
