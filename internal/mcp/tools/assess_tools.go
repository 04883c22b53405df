package tools

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/cache"
	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
	"github.com/karthickraja0810/clinical-decision-support/internal/service"
)

// assessmentKey is the cache key under which an assessment summary is kept
// so later feedback can be attributed to it.
func assessmentKey(id string) string {
	return "assessment:" + id
}

// assessmentSummary is what submit_feedback needs to know about an
// earlier assessment.
type assessmentSummary struct {
	Condition      string
	EvidenceDomain string
	RiskLevel      domain.RiskLevel
}

// decodeRecord turns loose tool arguments into a validated patient record.
func decodeRecord(patient map[string]interface{}) (*domain.PatientRecord, error) {
	var record domain.PatientRecord
	if patient != nil {
		if err := ParseParams(patient, &record); err != nil {
			return nil, err
		}
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}
	record.DeriveBMI()
	return &record, nil
}

// AssessPatientTool implements the assess_patient MCP tool
type AssessPatientTool struct {
	logger   *logrus.Logger
	assessor domain.Assessor
	cache    *cache.MemoryCache
}

// AssessPatientParams defines parameters for the assess_patient tool
type AssessPatientParams struct {
	Patient map[string]interface{} `json:"patient" jsonschema:"patient record with demographics, vitals (blood_pressure nested), labs and symptoms"`
}

// AssessPatientResult defines the result of assess_patient
type AssessPatientResult struct {
	AssessmentID     string                   `json:"assessment_id"`
	Result           *domain.AssessmentResult `json:"result"`
	ProcessingTimeMs int                      `json:"processing_time_ms"`
}

// NewAssessPatientTool creates a new assess_patient tool
func NewAssessPatientTool(logger *logrus.Logger, assessor domain.Assessor, memCache *cache.MemoryCache) *AssessPatientTool {
	return &AssessPatientTool{
		logger:   logger,
		assessor: assessor,
		cache:    memCache,
	}
}

// Definition returns the MCP tool definition
func (t *AssessPatientTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name: "assess_patient",
		Description: "Run the endocrine reasoning pipeline on a patient record. Returns the primary assessment, " +
			"secondary considerations, borderline findings and the rule that produced the result.",
	}
}

// Handle handles the assess_patient tool invocation
func (t *AssessPatientTool) Handle(ctx context.Context, req *mcp.CallToolRequest, params AssessPatientParams) (*mcp.CallToolResult, any, error) {
	t.logger.WithField("tool", "assess_patient").Info("Tool invoked")

	record, err := decodeRecord(params.Patient)
	if err != nil {
		return errorResult("Invalid patient record", err), nil, nil
	}

	start := time.Now()
	result := t.assessor.Assess(ctx, record)
	out := AssessPatientResult{
		AssessmentID:     uuid.NewString(),
		Result:           result,
		ProcessingTimeMs: int(time.Since(start).Milliseconds()),
	}

	if t.cache != nil {
		t.cache.Set(assessmentKey(out.AssessmentID), assessmentSummary{
			Condition:      result.Primary.Condition,
			EvidenceDomain: result.Primary.EvidenceDomain,
			RiskLevel:      result.Primary.RiskLevel,
		})
	}

	t.logger.WithFields(logrus.Fields{
		"assessment_id": out.AssessmentID,
		"outcome":       result.Outcome,
		"condition":     result.Primary.Condition,
	}).Info("Assessment completed")

	return textResult("Assessment %s: %s (%s risk)", out.AssessmentID, result.Primary.Condition, result.Primary.RiskLevel), out, nil
}

// EvaluateDomainTool implements the evaluate_domain MCP tool
type EvaluateDomainTool struct {
	logger *logrus.Logger
	engine *service.EndocrineRuleEngine
}

// EvaluateDomainParams defines parameters for the evaluate_domain tool
type EvaluateDomainParams struct {
	Domain  string                 `json:"domain" jsonschema:"evaluation domain code, see list_evaluators"`
	Patient map[string]interface{} `json:"patient" jsonschema:"patient record with demographics, vitals, labs and symptoms"`
}

// EvaluateDomainResult defines the result of evaluate_domain. A nil verdict
// means the domain's minimum data requirement was not met.
type EvaluateDomainResult struct {
	Domain  string                 `json:"domain"`
	Verdict *domain.VerdictSummary `json:"verdict"`
}

// NewEvaluateDomainTool creates a new evaluate_domain tool
func NewEvaluateDomainTool(logger *logrus.Logger, engine *service.EndocrineRuleEngine) *EvaluateDomainTool {
	return &EvaluateDomainTool{
		logger: logger,
		engine: engine,
	}
}

// Definition returns the MCP tool definition
func (t *EvaluateDomainTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "evaluate_domain",
		Description: "Run a single domain evaluator without safety checks or arbitration.",
	}
}

// Handle handles the evaluate_domain tool invocation
func (t *EvaluateDomainTool) Handle(ctx context.Context, req *mcp.CallToolRequest, params EvaluateDomainParams) (*mcp.CallToolResult, any, error) {
	t.logger.WithFields(logrus.Fields{"tool": "evaluate_domain", "domain": params.Domain}).Info("Tool invoked")

	record, err := decodeRecord(params.Patient)
	if err != nil {
		return errorResult("Invalid patient record", err), nil, nil
	}

	verdict, err := t.engine.EvaluateDomain(params.Domain, record)
	if err != nil {
		return errorResult("Unknown evaluation domain", err), nil, nil
	}

	out := EvaluateDomainResult{Domain: params.Domain}
	if verdict == nil {
		return textResult("%s: minimum data requirement not met", params.Domain), out, nil
	}
	summary := verdict.Summary()
	out.Verdict = &summary
	return textResult("%s: %s (%s risk)", params.Domain, summary.Condition, summary.RiskLevel), out, nil
}

// ListEvaluatorsTool implements the list_evaluators MCP tool
type ListEvaluatorsTool struct {
	engine *service.EndocrineRuleEngine
}

// ListEvaluatorsParams is empty; the tool takes no arguments.
type ListEvaluatorsParams struct{}

// EvaluatorInfo describes one registered domain evaluator
type EvaluatorInfo struct {
	Domain      string   `json:"domain"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Requires    []string `json:"requires"`
	InPipeline  bool     `json:"in_pipeline"`
}

// ListEvaluatorsResult defines the result of list_evaluators
type ListEvaluatorsResult struct {
	Evaluators []EvaluatorInfo `json:"evaluators"`
}

// NewListEvaluatorsTool creates a new list_evaluators tool
func NewListEvaluatorsTool(engine *service.EndocrineRuleEngine) *ListEvaluatorsTool {
	return &ListEvaluatorsTool{engine: engine}
}

// Definition returns the MCP tool definition
func (t *ListEvaluatorsTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_evaluators",
		Description: "List the registered domain evaluators, their data requirements and whether a full assessment runs them.",
	}
}

// Handle handles the list_evaluators tool invocation
func (t *ListEvaluatorsTool) Handle(ctx context.Context, req *mcp.CallToolRequest, params ListEvaluatorsParams) (*mcp.CallToolResult, any, error) {
	rules := t.engine.Rules()
	out := ListEvaluatorsResult{Evaluators: make([]EvaluatorInfo, 0, len(rules))}
	for _, rule := range rules {
		requires := rule.Requires
		if requires == nil {
			requires = []string{}
		}
		out.Evaluators = append(out.Evaluators, EvaluatorInfo{
			Domain:      rule.Code,
			Name:        rule.Name,
			Description: rule.Description,
			Requires:    requires,
			InPipeline:  rule.InPipeline,
		})
	}
	return textResult("%d evaluators registered", len(out.Evaluators)), out, nil
}
