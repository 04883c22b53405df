package service

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// EndocrineRuleEngine holds the domain rule evaluators in their declared
// order. The order of pipeline rules is the arbitration tie-break order.
type EndocrineRuleEngine struct {
	logger *logrus.Logger
	rules  []*EndocrineRule
	index  map[string]*EndocrineRule
}

// EndocrineRule represents an individual domain evaluator
type EndocrineRule struct {
	Code        string
	Name        string
	Description string
	Requires    []string
	// InPipeline rules run during a full assessment. Others are callable only
	// through EvaluateDomain.
	InPipeline bool
	Evaluator  func(record *domain.PatientRecord) *domain.DomainVerdict
}

// Domain implements domain.DomainEvaluator.
func (r *EndocrineRule) Domain() string { return r.Code }

// Evaluate implements domain.DomainEvaluator.
func (r *EndocrineRule) Evaluate(record *domain.PatientRecord) *domain.DomainVerdict {
	return r.Evaluator(record)
}

// NewEndocrineRuleEngine creates a rule engine with the endocrine rules registered
func NewEndocrineRuleEngine(logger *logrus.Logger) *EndocrineRuleEngine {
	engine := &EndocrineRuleEngine{
		logger: logger,
		index:  make(map[string]*EndocrineRule),
	}

	engine.initializeRules()

	return engine
}

// EvaluateAll runs every pipeline rule in declared order and returns the
// verdicts that were produced.
func (e *EndocrineRuleEngine) EvaluateAll(record *domain.PatientRecord) []domain.DomainVerdict {
	verdicts := make([]domain.DomainVerdict, 0, len(e.rules))

	for _, rule := range e.rules {
		if !rule.InPipeline {
			continue
		}
		verdict := rule.Evaluate(record)
		if verdict == nil {
			e.logger.WithField("domain", rule.Code).Debug("No verdict: minimum data requirement not met")
			continue
		}
		verdicts = append(verdicts, *verdict)
	}

	e.logger.WithFields(logrus.Fields{
		"evaluated": len(e.PipelineRules()),
		"verdicts":  len(verdicts),
	}).Debug("Completed domain rule evaluation")

	return verdicts
}

// EvaluateDomain runs a single rule, including rules outside the pipeline.
// A nil verdict with a nil error means the rule's data requirement was not met.
func (e *EndocrineRuleEngine) EvaluateDomain(code string, record *domain.PatientRecord) (*domain.DomainVerdict, error) {
	rule, exists := e.index[code]
	if !exists {
		return nil, fmt.Errorf("unknown evaluation domain: %s", code)
	}

	e.logger.WithField("domain", code).Debug("Evaluating single domain")

	if record == nil {
		record = &domain.PatientRecord{}
	}
	return rule.Evaluate(record.WithSexFilteredSymptoms()), nil
}

// Rules returns all registered rules in declared order
func (e *EndocrineRuleEngine) Rules() []*EndocrineRule {
	out := make([]*EndocrineRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// PipelineRules returns the rules a full assessment runs
func (e *EndocrineRuleEngine) PipelineRules() []*EndocrineRule {
	var out []*EndocrineRule
	for _, rule := range e.rules {
		if rule.InPipeline {
			out = append(out, rule)
		}
	}
	return out
}

// Domains returns the registered domain codes, sorted
func (e *EndocrineRuleEngine) Domains() []string {
	codes := make([]string, 0, len(e.index))
	for code := range e.index {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// initializeRules registers the domain rules. Registration order is the
// evaluation order: PCOS, thyroid, diabetes, adrenal.
func (e *EndocrineRuleEngine) initializeRules() {
	e.addRule(domain.DomainPCOS, "Polycystic ovary syndrome screen",
		"Menstrual irregularity and clinical hyperandrogenism in females aged 12 or older",
		[]string{"demographics.sex", "demographics.age", "symptoms.menstrual_irregularity", "symptoms.hirsutism"},
		true, EvaluatePCOS)

	e.addRule(domain.DomainThyroid, "Thyroid function screen",
		"Additive TSH / free T4 score with symptom support and a discordance check",
		[]string{"labs.tsh", "labs.ft4"},
		true, EvaluateThyroid)

	e.addRule(domain.DomainDiabetes, "Glycemic status screen",
		"Fasting glucose and HbA1c diagnostic and prediabetic thresholds",
		[]string{"labs.fbs|labs.hba1c"},
		true, EvaluateDiabetes)

	e.addRule(domain.DomainAdrenal, "Adrenal axis screen",
		"Morning cortisol below 5 or above 20 mcg/dL",
		[]string{"labs.cortisol_am"},
		true, EvaluateAdrenal)

	e.addRule(domain.DomainMetabolicSyndrome, "Metabolic syndrome screen",
		"Three or more of waist > 90 cm, SBP >= 130, triglycerides >= 150, HDL < 40",
		[]string{"vitals.waist_circumference", "vitals.blood_pressure.systolic", "labs.triglycerides", "labs.hdl"},
		false, EvaluateMetabolicSyndrome)

	e.logger.WithField("rule_count", len(e.rules)).Debug("Initialized endocrine rules")
}

// addRule is a helper to add a rule to the engine
func (e *EndocrineRuleEngine) addRule(code, name, description string, requires []string, inPipeline bool, evaluator func(record *domain.PatientRecord) *domain.DomainVerdict) {
	rule := &EndocrineRule{
		Code:        code,
		Name:        name,
		Description: description,
		Requires:    requires,
		InPipeline:  inPipeline,
		Evaluator:   evaluator,
	}
	e.rules = append(e.rules, rule)
	e.index[code] = rule
}
