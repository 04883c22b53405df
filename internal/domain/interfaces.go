package domain

import (
	"context"
)

// GuidelineRetriever returns guideline documents for a condition, most
// relevant first. An absent index yields an empty slice, not an error.
type GuidelineRetriever interface {
	Retrieve(ctx context.Context, query, domain string, limit int) ([]string, error)
}

// ExplanationGenerator produces a hedged narrative for a set of findings.
// Implementations must not introduce values absent from the findings or the
// guideline context.
type ExplanationGenerator interface {
	Explain(ctx context.Context, findings []string, guidelineContext string) (string, error)
}

// Assessor runs the full reasoning pipeline for one patient record.
type Assessor interface {
	Assess(ctx context.Context, record *PatientRecord) *AssessmentResult
}

// AssessmentRepository persists assessment audit records.
type AssessmentRepository interface {
	SaveAssessment(ctx context.Context, record *AssessmentRecord) error
	GetAssessment(ctx context.Context, id string) (*AssessmentRecord, error)
	ListAssessments(ctx context.Context, limit, offset int) ([]*AssessmentRecord, error)
}
