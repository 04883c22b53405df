package domain

import "encoding/json"

// Outcome identifies which terminal path produced an assessment.
type Outcome string

const (
	OutcomeCritical     Outcome = "critical_override"
	OutcomeInsufficient Outcome = "insufficient_data"
	OutcomeNoFindings   Outcome = "no_findings"
	OutcomeAssessed     Outcome = "assessed"
)

// Disclaimer is appended to every assessment except the critical override.
const Disclaimer = "This system provides clinical decision support and does not replace professional medical judgment."

// PrimaryAssessment is the selected verdict with its narrative.
type PrimaryAssessment struct {
	Condition          string     `json:"condition"`
	RiskLevel          RiskLevel  `json:"risk_level"`
	Confidence         Confidence `json:"confidence"`
	ClinicalFindings   []string   `json:"clinical_findings"`
	ClinicalReasoning  string     `json:"clinical_reasoning"`
	SupportingEvidence *string    `json:"supporting_evidence,omitempty"`
	EvidenceDomain     string     `json:"evidence_domain,omitempty"`
}

// SecondaryAssessment is a non-selected verdict stripped of its findings.
type SecondaryAssessment struct {
	Condition  string     `json:"condition"`
	RiskLevel  RiskLevel  `json:"risk_level"`
	Confidence Confidence `json:"confidence"`
}

// Explainability describes which rule produced the result.
type Explainability struct {
	TriggeredRule   string   `json:"triggered_rule"`
	CriteriaMet     []string `json:"criteria_met"`
	CriteriaMissing []string `json:"criteria_missing"`
	ConfidenceBasis string   `json:"confidence_basis"`
}

// AssessmentResult is the final output of one reasoning call.
type AssessmentResult struct {
	Outcome            Outcome               `json:"-"`
	Primary            PrimaryAssessment     `json:"primary"`
	BorderlineFindings []string              `json:"borderline_findings"`
	Explainability     *Explainability       `json:"explainability,omitempty"`
	Secondary          []SecondaryAssessment `json:"secondary"`
	Disclaimer         string                `json:"disclaimer,omitempty"`
}

// MarshalJSON omits borderline findings on the terminal critical and
// insufficient-data paths and renders them as an array everywhere else.
func (r AssessmentResult) MarshalJSON() ([]byte, error) {
	type plain AssessmentResult
	out := struct {
		plain
		BorderlineFindings *[]string `json:"borderline_findings,omitempty"`
	}{plain: plain(r)}
	if r.Outcome != OutcomeCritical && r.Outcome != OutcomeInsufficient {
		findings := r.BorderlineFindings
		if findings == nil {
			findings = []string{}
		}
		out.BorderlineFindings = &findings
	}
	return json.Marshal(out)
}
