package tools

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/cache"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
	"github.com/karthickraja0810/clinical-decision-support/internal/service"
)

// ToolRegistry owns the tool instances and registers them with an MCP server
type ToolRegistry struct {
	logger *logrus.Logger

	assess         *AssessPatientTool
	evaluateDomain *EvaluateDomainTool
	listEvaluators *ListEvaluatorsTool

	submitFeedback *SubmitFeedbackTool
	queryFeedback  *QueryFeedbackTool
	listFeedback   *ListFeedbackTool
	exportFeedback *ExportFeedbackTool
	importFeedback *ImportFeedbackTool
}

// NewToolRegistry creates a new tool registry. A nil feedback store
// registers only the assessment tools.
func NewToolRegistry(logger *logrus.Logger, reasoning *service.ReasoningService, store feedback.Store, memCache *cache.MemoryCache, exportDir string) *ToolRegistry {
	tr := &ToolRegistry{
		logger:         logger,
		assess:         NewAssessPatientTool(logger, reasoning, memCache),
		evaluateDomain: NewEvaluateDomainTool(logger, reasoning.RuleEngine()),
		listEvaluators: NewListEvaluatorsTool(reasoning.RuleEngine()),
	}
	if store != nil {
		tr.submitFeedback = NewSubmitFeedbackTool(logger, store, memCache)
		tr.queryFeedback = NewQueryFeedbackTool(logger, store)
		tr.listFeedback = NewListFeedbackTool(logger, store)
		tr.exportFeedback = NewExportFeedbackTool(logger, store, exportDir)
		tr.importFeedback = NewImportFeedbackTool(logger, store)
	}
	return tr
}

// RegisterAllTools registers every tool with the MCP server and returns the
// registered tool names in order.
func (tr *ToolRegistry) RegisterAllTools(server *mcp.Server) []string {
	tr.logger.Info("Registering clinical decision support tools")

	var names []string
	register := func(tool *mcp.Tool) *mcp.Tool {
		names = append(names, tool.Name)
		tr.logger.WithField("tool_name", tool.Name).Debug("Registered MCP tool")
		return tool
	}

	mcp.AddTool(server, register(tr.assess.Definition()), tr.assess.Handle)
	mcp.AddTool(server, register(tr.evaluateDomain.Definition()), tr.evaluateDomain.Handle)
	mcp.AddTool(server, register(tr.listEvaluators.Definition()), tr.listEvaluators.Handle)

	if tr.submitFeedback != nil {
		mcp.AddTool(server, register(tr.submitFeedback.Definition()), tr.submitFeedback.Handle)
		mcp.AddTool(server, register(tr.queryFeedback.Definition()), tr.queryFeedback.Handle)
		mcp.AddTool(server, register(tr.listFeedback.Definition()), tr.listFeedback.Handle)
		mcp.AddTool(server, register(tr.exportFeedback.Definition()), tr.exportFeedback.Handle)
		mcp.AddTool(server, register(tr.importFeedback.Definition()), tr.importFeedback.Handle)
	}

	tr.logger.WithField("tool_count", len(names)).Info("Successfully registered all tools")
	return names
}
