package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

func TestCardIndicator(t *testing.T) {
	assert.Equal(t, "critical", CardIndicator(domain.RiskCritical))
	assert.Equal(t, "warning", CardIndicator(domain.RiskHigh))
	assert.Equal(t, "info", CardIndicator(domain.RiskModerate))
	assert.Equal(t, "info", CardIndicator(domain.RiskLow))
	assert.Equal(t, "info", CardIndicator(domain.RiskNotApplicable))
}

func TestBuildCards(t *testing.T) {
	result := &domain.AssessmentResult{
		Outcome: domain.OutcomeAssessed,
		Primary: domain.PrimaryAssessment{
			Condition:         "Possible Polycystic Ovary Syndrome (PCOS)",
			RiskLevel:         domain.RiskModerate,
			ClinicalReasoning: "Findings may be consistent with PCOS.",
		},
		Secondary: []domain.SecondaryAssessment{
			{Condition: "Prediabetes pattern", RiskLevel: domain.RiskModerate},
		},
		Disclaimer: domain.Disclaimer,
	}

	cards := BuildCards(result)

	require.Len(t, cards, 2)
	assert.Equal(t, "Possible Polycystic Ovary Syndrome (PCOS) (Moderate risk)", cards[0].Summary)
	assert.Equal(t, "info", cards[0].Indicator)
	assert.True(t, strings.HasSuffix(cards[0].Detail, domain.Disclaimer))
	assert.Equal(t, "Also considered: Prediabetes pattern (Moderate risk)", cards[1].Summary)
	assert.NotEqual(t, cards[0].UUID, cards[1].UUID)

	long := &domain.AssessmentResult{Primary: domain.PrimaryAssessment{Condition: strings.Repeat("x", 200)}}
	assert.Len(t, []rune(BuildCards(long)[0].Summary), maxSummaryLen)
}

func TestCDSDiscovery(t *testing.T) {
	env := newTestEnv(t, false)

	w := env.do(t, http.MethodGet, "/cds-services", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Services []CDSService `json:"services"`
	}
	decode(t, w, &body)
	require.Len(t, body.Services, 1)
	assert.Equal(t, CDSServiceID, body.Services[0].ID)
	assert.Equal(t, CDSHook, body.Services[0].Hook)
}

func TestCDSService(t *testing.T) {
	t.Run("record in context", func(t *testing.T) {
		env := newTestEnv(t, false)
		w := env.do(t, http.MethodPost, "/cds-services/endocrine-screening",
			`{"hook": "patient-view", "hookInstance": "h-1", "context": {"patientId": "p1", "patientRecord": {"labs": {"fbs": 130}}}}`)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp CDSResponse
		decode(t, w, &resp)
		require.NotEmpty(t, resp.Cards)
		assert.Equal(t, "warning", resp.Cards[0].Indicator)
		assert.Contains(t, resp.Cards[0].Summary, "Diabetes mellitus pattern")
	})

	t.Run("record in prefetch", func(t *testing.T) {
		env := newTestEnv(t, false)
		w := env.do(t, http.MethodPost, "/cds-services/endocrine-screening",
			`{"hook": "patient-view", "context": {}, "prefetch": {"patientRecord": {"vitals": {"blood_pressure": {"systolic": 190}}}}}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp CDSResponse
		decode(t, w, &resp)
		require.Len(t, resp.Cards, 1)
		assert.Equal(t, "critical", resp.Cards[0].Indicator)
		assert.NotContains(t, resp.Cards[0].Detail, domain.Disclaimer)
	})

	t.Run("missing record", func(t *testing.T) {
		env := newTestEnv(t, false)
		w := env.do(t, http.MethodPost, "/cds-services/endocrine-screening", `{"hook": "patient-view", "context": {}}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown service", func(t *testing.T) {
		env := newTestEnv(t, false)
		w := env.do(t, http.MethodPost, "/cds-services/cardiology", `{}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestCDSFeedback(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	w := env.do(t, http.MethodPost, "/cds-services/endocrine-screening",
		`{"hook": "patient-view", "context": {"patientRecord": {"labs": {"fbs": 130}}}}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp CDSResponse
	decode(t, w, &resp)
	cardID := resp.Cards[0].UUID

	w = env.do(t, http.MethodPost, "/cds-services/endocrine-screening/feedback", `{"feedback": [
		{"card": "`+cardID+`", "outcome": "overridden",
		 "overrideReason": {"reason": {"code": "repeat", "display": "Repeat fasting glucose first"}, "userComment": "Non-fasting sample"}},
		{"card": "not-issued", "outcome": "accepted"}
	]}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"stored": 1, "unknown": 1}`, w.Body.String())

	entries, err := env.feedback.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.DomainDiabetes, entries[0].EvidenceDomain)
	assert.Equal(t, "Repeat fasting glucose first", entries[0].ClinicianCondition)
	assert.False(t, entries[0].ClinicianAgreed)
	assert.Equal(t, "Non-fasting sample", entries[0].Notes)
	assert.Equal(t, "High", entries[0].RiskLevel)
}
