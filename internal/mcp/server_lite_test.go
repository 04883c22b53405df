package mcp

import (
	"context"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthickraja0810/clinical-decision-support/internal/config"
	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
	"github.com/karthickraja0810/clinical-decision-support/pkg/external"
)

const diabetesGuideline = "A fasting plasma glucose of 126 mg/dL or higher is consistent with diabetes " +
	"and should be confirmed by repeat testing on a separate day."

func newTestLiteServer(t *testing.T, seed bool) (*LiteServer, *config.LiteConfig) {
	t.Helper()
	cfg := config.DefaultLiteConfig()
	cfg.DataDir = t.TempDir()
	cfg.ExplanationEnabled = false

	if seed {
		store := external.NewSQLiteGuidelineStore(cfg.GuidelineDBPath())
		chunks := external.BuildChunks(domain.DomainDiabetes, "ada-standards.txt", diabetesGuideline, 400, 80)
		_, err := store.AddChunks(context.Background(), chunks)
		require.NoError(t, err)
		require.NoError(t, store.Close())
	}

	logger, _ := test.NewNullLogger()
	server, err := NewLiteServer(cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	return server, cfg
}

func connectClient(t *testing.T, server *LiteServer) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	_, err := server.Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestNewLiteServer(t *testing.T) {
	server, cfg := newTestLiteServer(t, false)

	assert.DirExists(t, cfg.ExportDir())
	assert.NotNil(t, server.GetCache())
	assert.NotNil(t, server.GetFeedbackStore())
	assert.Equal(t, []string{
		"assess_patient", "evaluate_domain", "list_evaluators",
		"submit_feedback", "query_feedback", "list_feedback", "export_feedback", "import_feedback",
	}, server.ToolNames())
}

func TestLiteServer_ListTools(t *testing.T) {
	server, _ := newTestLiteServer(t, false)
	session := connectClient(t, server)

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
		assert.NotNil(t, tool.InputSchema, tool.Name)
	}
	assert.ElementsMatch(t, server.ToolNames(), names)
}

func TestLiteServer_AssessAndFeedback(t *testing.T) {
	server, _ := newTestLiteServer(t, true)
	session := connectClient(t, server)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name: "assess_patient",
		Arguments: map[string]any{
			"patient": map[string]any{
				"demographics": map[string]any{"age": 58, "sex": "male"},
				"labs":         map[string]any{"fbs": 140},
			},
		},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	out, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assessmentID, _ := out["assessment_id"].(string)
	require.NotEmpty(t, assessmentID)

	primary := out["result"].(map[string]any)["primary"].(map[string]any)
	assert.Equal(t, "Diabetes mellitus pattern (confirmation required)", primary["condition"])
	assert.Equal(t, "High", primary["risk_level"])
	assert.Contains(t, primary["supporting_evidence"], "126 mg/dL")

	res, err = session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "submit_feedback",
		Arguments: map[string]any{"assessment_id": assessmentID, "clinician_condition": "Type 2 diabetes mellitus"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	stored, err := server.GetFeedbackStore().Get(ctx, assessmentID, domain.DomainDiabetes)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Diabetes mellitus pattern (confirmation required)", stored.SuggestedCondition)
	assert.False(t, stored.ClinicianAgreed)
	assert.Equal(t, "High", stored.RiskLevel)
}

func TestLiteServer_EvaluateUnknownDomain(t *testing.T) {
	server, _ := newTestLiteServer(t, false)
	session := connectClient(t, server)

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      "evaluate_domain",
		Arguments: map[string]any{"domain": "pituitary", "patient": map[string]any{}},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	require.NotEmpty(t, res.Content)
	assert.Contains(t, res.Content[0].(*mcp.TextContent).Text, "Unknown evaluation domain")
}
