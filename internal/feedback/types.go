// Package feedback stores clinician feedback on assessment outcomes.
// Each entry records whether the clinician agreed with the suggested
// primary condition and what they concluded instead.
package feedback

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Feedback represents a clinician's response to one assessed domain.
type Feedback struct {
	ID                 int64     `json:"id,omitempty"`
	AssessmentID       string    `json:"assessment_id"`
	EvidenceDomain     string    `json:"evidence_domain"`
	SuggestedCondition string    `json:"suggested_condition"`
	ClinicianCondition string    `json:"clinician_condition"`
	ClinicianAgreed    bool      `json:"clinician_agreed"`
	RiskLevel          string    `json:"risk_level,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Prepare validates required fields and derives ClinicianAgreed. An empty
// clinician condition means the clinician accepted the suggestion.
func (f *Feedback) Prepare() error {
	f.AssessmentID = strings.TrimSpace(f.AssessmentID)
	f.EvidenceDomain = strings.TrimSpace(f.EvidenceDomain)
	f.SuggestedCondition = strings.TrimSpace(f.SuggestedCondition)
	f.ClinicianCondition = strings.TrimSpace(f.ClinicianCondition)

	if f.AssessmentID == "" {
		return fmt.Errorf("assessment_id is required")
	}
	if f.SuggestedCondition == "" {
		return fmt.Errorf("suggested_condition is required")
	}
	if f.ClinicianCondition == "" {
		f.ClinicianCondition = f.SuggestedCondition
	}
	f.ClinicianAgreed = strings.EqualFold(f.ClinicianCondition, f.SuggestedCondition)
	return nil
}

// Store defines the interface for feedback storage operations.
type Store interface {
	// Save stores or updates feedback. Entries are unique per
	// assessment and evidence domain.
	Save(ctx context.Context, feedback *Feedback) error

	// Get returns the feedback for an assessment and domain, or nil.
	Get(ctx context.Context, assessmentID, evidenceDomain string) (*Feedback, error)

	// List returns feedback entries newest first.
	List(ctx context.Context, limit, offset int) ([]*Feedback, error)

	Count(ctx context.Context) (int64, error)

	Delete(ctx context.Context, id int64) error

	// ExportJSON writes all feedback as a FeedbackExport document.
	ExportJSON(ctx context.Context, writer io.Writer) error

	// ImportJSON reads a FeedbackExport document. Entries that already
	// exist are skipped.
	ImportJSON(ctx context.Context, reader io.Reader) (imported int, skipped int, err error)

	Close() error
}

// FeedbackExport represents the JSON export format.
type FeedbackExport struct {
	Version    string      `json:"version"`
	ExportedAt time.Time   `json:"exported_at"`
	Count      int         `json:"count"`
	Feedback   []*Feedback `json:"feedback"`
}

const exportVersion = "1.0"

// maxExportLimit is the maximum number of entries to export at once.
const maxExportLimit = 1000000
