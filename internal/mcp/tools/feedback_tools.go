package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/cache"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// =============================================================================
// Submit Feedback Tool
// =============================================================================

// SubmitFeedbackTool implements the submit_feedback MCP tool
type SubmitFeedbackTool struct {
	logger *logrus.Logger
	store  feedback.Store
	cache  *cache.MemoryCache
}

// SubmitFeedbackParams defines parameters for the submit_feedback tool
type SubmitFeedbackParams struct {
	AssessmentID       string `json:"assessment_id" jsonschema:"id returned by assess_patient"`
	EvidenceDomain     string `json:"evidence_domain,omitempty" jsonschema:"domain of the assessed condition; defaults to the assessment's primary domain"`
	SuggestedCondition string `json:"suggested_condition,omitempty" jsonschema:"condition the system suggested; defaults to the assessment's primary condition"`
	ClinicianCondition string `json:"clinician_condition,omitempty" jsonschema:"the clinician's conclusion; empty means agreement"`
	RiskLevel          string `json:"risk_level,omitempty"`
	Notes              string `json:"notes,omitempty"`
}

// SubmitFeedbackResult defines the result of submit_feedback
type SubmitFeedbackResult struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message"`
	Feedback *feedback.Feedback `json:"feedback,omitempty"`
}

// NewSubmitFeedbackTool creates a new submit_feedback tool. Assessments
// remembered in memCache fill in omitted suggestion fields.
func NewSubmitFeedbackTool(logger *logrus.Logger, store feedback.Store, memCache *cache.MemoryCache) *SubmitFeedbackTool {
	return &SubmitFeedbackTool{
		logger: logger,
		store:  store,
		cache:  memCache,
	}
}

// Definition returns the MCP tool definition
func (t *SubmitFeedbackTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "submit_feedback",
		Description: "Record a clinician's agreement with or correction of an assessment's primary condition.",
	}
}

// Handle handles the submit_feedback tool invocation
func (t *SubmitFeedbackTool) Handle(ctx context.Context, req *mcp.CallToolRequest, params SubmitFeedbackParams) (*mcp.CallToolResult, any, error) {
	fb := &feedback.Feedback{
		AssessmentID:       params.AssessmentID,
		EvidenceDomain:     params.EvidenceDomain,
		SuggestedCondition: params.SuggestedCondition,
		ClinicianCondition: params.ClinicianCondition,
		RiskLevel:          params.RiskLevel,
		Notes:              params.Notes,
	}
	t.fillFromAssessment(fb)

	if err := fb.Prepare(); err != nil {
		return errorResult("Invalid feedback", err), nil, nil
	}
	if err := t.store.Save(ctx, fb); err != nil {
		t.logger.WithError(err).Error("Failed to save feedback")
		return errorResult("Failed to save feedback", err), nil, nil
	}

	message := "Feedback recorded: clinician agreed with the suggested condition"
	if !fb.ClinicianAgreed {
		message = fmt.Sprintf("Feedback recorded: clinician corrected %q to %q", fb.SuggestedCondition, fb.ClinicianCondition)
	}

	t.logger.WithFields(logrus.Fields{
		"assessment_id": fb.AssessmentID,
		"domain":        fb.EvidenceDomain,
		"agreed":        fb.ClinicianAgreed,
	}).Info("Feedback saved")

	return textResult("%s", message), SubmitFeedbackResult{Success: true, Message: message, Feedback: fb}, nil
}

func (t *SubmitFeedbackTool) fillFromAssessment(fb *feedback.Feedback) {
	if t.cache == nil || fb.AssessmentID == "" {
		return
	}
	v, ok := t.cache.Get(assessmentKey(fb.AssessmentID))
	if !ok {
		return
	}
	summary, ok := v.(assessmentSummary)
	if !ok {
		return
	}
	if fb.SuggestedCondition == "" {
		fb.SuggestedCondition = summary.Condition
	}
	if fb.EvidenceDomain == "" {
		fb.EvidenceDomain = summary.EvidenceDomain
	}
	if fb.RiskLevel == "" {
		fb.RiskLevel = string(summary.RiskLevel)
	}
}

// =============================================================================
// Query Feedback Tool
// =============================================================================

// QueryFeedbackTool implements the query_feedback MCP tool
type QueryFeedbackTool struct {
	logger *logrus.Logger
	store  feedback.Store
}

// QueryFeedbackParams defines parameters for the query_feedback tool
type QueryFeedbackParams struct {
	AssessmentID   string `json:"assessment_id"`
	EvidenceDomain string `json:"evidence_domain,omitempty"`
}

// QueryFeedbackResult defines the result of query_feedback
type QueryFeedbackResult struct {
	Found    bool               `json:"found"`
	Feedback *feedback.Feedback `json:"feedback,omitempty"`
}

// NewQueryFeedbackTool creates a new query_feedback tool
func NewQueryFeedbackTool(logger *logrus.Logger, store feedback.Store) *QueryFeedbackTool {
	return &QueryFeedbackTool{
		logger: logger,
		store:  store,
	}
}

// Definition returns the MCP tool definition
func (t *QueryFeedbackTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "query_feedback",
		Description: "Look up stored clinician feedback for an assessment and evidence domain.",
	}
}

// Handle handles the query_feedback tool invocation
func (t *QueryFeedbackTool) Handle(ctx context.Context, req *mcp.CallToolRequest, params QueryFeedbackParams) (*mcp.CallToolResult, any, error) {
	if params.AssessmentID == "" {
		return errorResult("Invalid parameters", fmt.Errorf("assessment_id is required")), nil, nil
	}

	fb, err := t.store.Get(ctx, params.AssessmentID, params.EvidenceDomain)
	if err != nil {
		t.logger.WithError(err).Error("Failed to query feedback")
		return errorResult("Failed to query feedback", err), nil, nil
	}
	if fb == nil {
		return textResult("No feedback found for assessment %s", params.AssessmentID), QueryFeedbackResult{Found: false}, nil
	}
	return textResult("Feedback found for assessment %s", params.AssessmentID), QueryFeedbackResult{Found: true, Feedback: fb}, nil
}

// =============================================================================
// List Feedback Tool
// =============================================================================

// ListFeedbackTool implements the list_feedback MCP tool
type ListFeedbackTool struct {
	logger *logrus.Logger
	store  feedback.Store
}

// ListFeedbackParams defines parameters for the list_feedback tool
type ListFeedbackParams struct {
	Limit  int `json:"limit,omitempty" jsonschema:"maximum entries to return (default 20, max 100)"`
	Offset int `json:"offset,omitempty"`
}

// ListFeedbackResult defines the result of list_feedback
type ListFeedbackResult struct {
	Feedback []*feedback.Feedback `json:"feedback"`
	Total    int64                `json:"total"`
	Limit    int                  `json:"limit"`
	Offset   int                  `json:"offset"`
}

// NewListFeedbackTool creates a new list_feedback tool
func NewListFeedbackTool(logger *logrus.Logger, store feedback.Store) *ListFeedbackTool {
	return &ListFeedbackTool{
		logger: logger,
		store:  store,
	}
}

// Definition returns the MCP tool definition
func (t *ListFeedbackTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "list_feedback",
		Description: "List stored clinician feedback, newest first.",
	}
}

// Handle handles the list_feedback tool invocation
func (t *ListFeedbackTool) Handle(ctx context.Context, req *mcp.CallToolRequest, params ListFeedbackParams) (*mcp.CallToolResult, any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := params.Offset
	if offset < 0 {
		offset = 0
	}

	entries, err := t.store.List(ctx, limit, offset)
	if err != nil {
		t.logger.WithError(err).Error("Failed to list feedback")
		return errorResult("Failed to list feedback", err), nil, nil
	}
	total, err := t.store.Count(ctx)
	if err != nil {
		return errorResult("Failed to count feedback", err), nil, nil
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}

	out := ListFeedbackResult{Feedback: entries, Total: total, Limit: limit, Offset: offset}
	return textResult("Returned %d of %d feedback entries", len(entries), total), out, nil
}

// =============================================================================
// Export Feedback Tool
// =============================================================================

// ExportFeedbackTool implements the export_feedback MCP tool
type ExportFeedbackTool struct {
	logger    *logrus.Logger
	store     feedback.Store
	exportDir string
}

// ExportFeedbackParams is empty; the file name is generated.
type ExportFeedbackParams struct{}

// ExportFeedbackResult defines the result of export_feedback
type ExportFeedbackResult struct {
	FilePath string `json:"file_path"`
	Count    int64  `json:"count"`
}

// NewExportFeedbackTool creates a new export_feedback tool
func NewExportFeedbackTool(logger *logrus.Logger, store feedback.Store, exportDir string) *ExportFeedbackTool {
	return &ExportFeedbackTool{
		logger:    logger,
		store:     store,
		exportDir: exportDir,
	}
}

// Definition returns the MCP tool definition
func (t *ExportFeedbackTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "export_feedback",
		Description: "Export all stored feedback to a JSON file for backup.",
	}
}

// Handle handles the export_feedback tool invocation
func (t *ExportFeedbackTool) Handle(ctx context.Context, req *mcp.CallToolRequest, params ExportFeedbackParams) (*mcp.CallToolResult, any, error) {
	if err := os.MkdirAll(t.exportDir, 0755); err != nil {
		return errorResult("Failed to create export directory", err), nil, nil
	}

	filename := fmt.Sprintf("feedback_export_%s.json", time.Now().Format("20060102_150405"))
	filePath := filepath.Join(t.exportDir, filename)

	file, err := os.Create(filePath)
	if err != nil {
		return errorResult("Failed to create export file", err), nil, nil
	}
	defer file.Close()

	if err := t.store.ExportJSON(ctx, file); err != nil {
		t.logger.WithError(err).Error("Failed to export feedback")
		return errorResult("Failed to export feedback", err), nil, nil
	}

	count, _ := t.store.Count(ctx)
	return textResult("Exported %d feedback entries to %s", count, filePath), ExportFeedbackResult{FilePath: filePath, Count: count}, nil
}

// =============================================================================
// Import Feedback Tool
// =============================================================================

// ImportFeedbackTool implements the import_feedback MCP tool
type ImportFeedbackTool struct {
	logger *logrus.Logger
	store  feedback.Store
}

// ImportFeedbackParams defines parameters for the import_feedback tool
type ImportFeedbackParams struct {
	FilePath string `json:"file_path" jsonschema:"path to a JSON file produced by export_feedback"`
}

// ImportFeedbackResult defines the result of import_feedback
type ImportFeedbackResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// NewImportFeedbackTool creates a new import_feedback tool
func NewImportFeedbackTool(logger *logrus.Logger, store feedback.Store) *ImportFeedbackTool {
	return &ImportFeedbackTool{
		logger: logger,
		store:  store,
	}
}

// Definition returns the MCP tool definition
func (t *ImportFeedbackTool) Definition() *mcp.Tool {
	return &mcp.Tool{
		Name:        "import_feedback",
		Description: "Import feedback from a JSON backup file. Entries that already exist are skipped.",
	}
}

// Handle handles the import_feedback tool invocation
func (t *ImportFeedbackTool) Handle(ctx context.Context, req *mcp.CallToolRequest, params ImportFeedbackParams) (*mcp.CallToolResult, any, error) {
	if params.FilePath == "" {
		return errorResult("Invalid parameters", fmt.Errorf("file_path is required")), nil, nil
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		return errorResult("Failed to open file", err), nil, nil
	}
	defer file.Close()

	imported, skipped, err := t.store.ImportJSON(ctx, file)
	if err != nil {
		t.logger.WithError(err).Error("Failed to import feedback")
		return errorResult("Failed to import feedback", err), nil, nil
	}

	return textResult("Imported %d entries, skipped %d duplicates", imported, skipped), ImportFeedbackResult{Imported: imported, Skipped: skipped}, nil
}
