package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
	"github.com/karthickraja0810/clinical-decision-support/internal/service"
)

// MockAssessmentRepository is a testify mock of domain.AssessmentRepository.
type MockAssessmentRepository struct {
	mock.Mock
}

func (m *MockAssessmentRepository) SaveAssessment(ctx context.Context, record *domain.AssessmentRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockAssessmentRepository) GetAssessment(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	args := m.Called(ctx, id)
	if rec := args.Get(0); rec != nil {
		return rec.(*domain.AssessmentRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAssessmentRepository) ListAssessments(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*domain.AssessmentRecord), args.Error(1)
}

type testEnv struct {
	server   *Server
	repo     *MockAssessmentRepository
	feedback *feedback.SQLiteStore
}

func newTestEnv(t *testing.T, withRepo bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()

	reasoning := service.NewReasoningService(logger)
	store, err := feedback.NewSQLiteStore(filepath.Join(t.TempDir(), "feedback.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &testEnv{feedback: store}
	deps := Dependencies{
		Assessor:  reasoning,
		Evaluator: reasoning.RuleEngine(),
		Feedback:  store,
		Checks: map[string]HealthCheck{
			"feedback": func(ctx context.Context) error { return nil },
		},
	}
	if withRepo {
		env.repo = &MockAssessmentRepository{}
		deps.Assessments = env.repo
	}

	server, err := NewServer(domain.ServerConfig{MaxBodyBytes: 1 << 20, AllowedOrigins: []string{"*"}}, deps, logger)
	require.NoError(t, err)
	env.server = server
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

const diabeticRecord = `{"labs": {"FBS": 130}}`

func TestNewServer_RequiresCollaborators(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := NewServer(domain.ServerConfig{}, Dependencies{}, logger)
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	decode(t, w, &body)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]interface{}{"feedback": "ok"}, body["checks"])
}

func TestHealth_Degraded(t *testing.T) {
	env := newTestEnv(t, false)
	env.server.deps.Checks["database"] = func(ctx context.Context) error { return errors.New("connection refused") }

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAssess(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		condition string
		risk      domain.RiskLevel
	}{
		{"diabetic fasting glucose", diabeticRecord, "Diabetes mellitus pattern (confirmation required)", domain.RiskHigh},
		{"critical override", `{"labs": {"fbs": 350}}`, "Medical Emergency", domain.RiskCritical},
		{"no data", `{}`, "Insufficient clinical data", domain.RiskNotApplicable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, false)

			w := env.do(t, http.MethodPost, "/api/v1/assessments", tt.body)

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var resp struct {
				ID     string                 `json:"id"`
				Result map[string]interface{} `json:"result"`
			}
			decode(t, w, &resp)
			assert.NotEmpty(t, resp.ID)
			primary := resp.Result["primary"].(map[string]interface{})
			assert.Equal(t, tt.condition, primary["condition"])
			assert.Equal(t, string(tt.risk), primary["risk_level"])
		})
	}
}

func TestAssess_StoresAuditRecord(t *testing.T) {
	env := newTestEnv(t, true)
	env.repo.On("SaveAssessment", mock.Anything, mock.MatchedBy(func(r *domain.AssessmentRecord) bool {
		return r.Outcome == domain.OutcomeAssessed && r.EvidenceDomain == domain.DomainDiabetes
	})).Return(nil).Once()

	w := env.do(t, http.MethodPost, "/api/v1/assessments", diabeticRecord)

	assert.Equal(t, http.StatusOK, w.Code)
	env.repo.AssertExpectations(t)
}

func TestAssess_AuditFailureDoesNotFailRequest(t *testing.T) {
	env := newTestEnv(t, true)
	env.repo.On("SaveAssessment", mock.Anything, mock.Anything).Return(errors.New("db down"))

	w := env.do(t, http.MethodPost, "/api/v1/assessments", diabeticRecord)
	assert.Equal(t, http.StatusOK, w.Code)
}

// captureAssessor records the record it was given.
type captureAssessor struct {
	got *domain.PatientRecord
}

func (a *captureAssessor) Assess(ctx context.Context, record *domain.PatientRecord) *domain.AssessmentResult {
	a.got = record
	return &domain.AssessmentResult{Outcome: domain.OutcomeNoFindings}
}

func TestAssess_DerivesBMI(t *testing.T) {
	env := newTestEnv(t, false)
	capture := &captureAssessor{}
	env.server.deps.Assessor = capture

	w := env.do(t, http.MethodPost, "/api/v1/assessments", `{"vitals": {"weight": 95, "height": 174.5}}`)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, capture.got)
	require.NotNil(t, capture.got.Vitals.BMI)
	assert.InDelta(t, 31.2, *capture.got.Vitals.BMI, 1e-9)
}

func TestAssess_InvalidInput(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/v1/assessments", `{"labs": `)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var apiErr domain.APIError
	decode(t, w, &apiErr)
	assert.Equal(t, domain.ErrInvalidInput, apiErr.Code)
	assert.NotEmpty(t, apiErr.RequestID)

	w = env.do(t, http.MethodPost, "/api/v1/assessments", `{"demographics": {"age": -3}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &apiErr)
	assert.Equal(t, domain.ErrValidation, apiErr.Code)
	assert.Equal(t, "demographics.age", apiErr.Details)
}

func TestGetAssessment(t *testing.T) {
	t.Run("storage not configured", func(t *testing.T) {
		env := newTestEnv(t, false)
		w := env.do(t, http.MethodGet, "/api/v1/assessments/abc", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("found", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.repo.On("GetAssessment", mock.Anything, "abc").Return(&domain.AssessmentRecord{
			ID:               "abc",
			Outcome:          domain.OutcomeNoFindings,
			PrimaryCondition: "No significant endocrine or metabolic disorder detected",
			Result:           &domain.AssessmentResult{Outcome: domain.OutcomeNoFindings},
		}, nil)

		w := env.do(t, http.MethodGet, "/api/v1/assessments/abc", nil)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"borderline_findings":[]`)
	})

	t.Run("missing", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.repo.On("GetAssessment", mock.Anything, "zzz").Return(nil, domain.ErrAssessmentNotFound)

		w := env.do(t, http.MethodGet, "/api/v1/assessments/zzz", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("database error", func(t *testing.T) {
		env := newTestEnv(t, true)
		env.repo.On("GetAssessment", mock.Anything, "err").Return(nil, errors.New("timeout"))

		w := env.do(t, http.MethodGet, "/api/v1/assessments/err", nil)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestEvaluators(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/api/v1/evaluators", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), domain.DomainMetabolicSyndrome)

	w = env.do(t, http.MethodPost, "/api/v1/evaluators/adrenal", `{"labs": {"cortisol_am": 2}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Verdict *domain.VerdictSummary `json:"verdict"`
	}
	decode(t, w, &resp)
	require.NotNil(t, resp.Verdict)
	assert.Equal(t, domain.RiskHigh, resp.Verdict.RiskLevel, "numeric code 3 is normalized")

	w = env.do(t, http.MethodPost, "/api/v1/evaluators/thyroid", `{"labs": {"tsh": 6}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"domain": "thyroid", "verdict": null}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/v1/evaluators/kidney", `{}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFeedbackEndpoints(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodPost, "/api/v1/feedback", map[string]string{
		"assessment_id":       "a-1",
		"evidence_domain":     "thyroid",
		"suggested_condition": "Possible thyroid dysfunction",
		"clinician_condition": "Subclinical hypothyroidism",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var saved feedback.Feedback
	decode(t, w, &saved)
	assert.False(t, saved.ClinicianAgreed)
	assert.NotZero(t, saved.ID)

	w = env.do(t, http.MethodPost, "/api/v1/feedback", map[string]string{"evidence_domain": "thyroid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/feedback?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Feedback []feedback.Feedback `json:"feedback"`
		Total    int64               `json:"total"`
	}
	decode(t, w, &list)
	assert.Equal(t, int64(1), list.Total)
	require.Len(t, list.Feedback, 1)

	w = env.do(t, http.MethodGet, "/api/v1/feedback?assessment_id=a-1&evidence_domain=thyroid", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/v1/feedback?assessment_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
