package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// RiskLevel is the rendered risk vocabulary.
type RiskLevel string

const (
	RiskLow           RiskLevel = "Low"
	RiskModerate      RiskLevel = "Moderate"
	RiskHigh          RiskLevel = "High"
	RiskCritical      RiskLevel = "Critical"
	RiskNotApplicable RiskLevel = "Not Applicable"
)

// Confidence expresses how strongly the evidence supports a verdict.
type Confidence string

const (
	ConfidenceLow      Confidence = "Low"
	ConfidenceMedium   Confidence = "Medium"
	ConfidenceModerate Confidence = "Moderate"
	ConfidenceHigh     Confidence = "High"
)

// Evidence domains, in the order the default pipeline evaluates them.
const (
	DomainPCOS              = "pcos"
	DomainThyroid           = "thyroid"
	DomainDiabetes          = "diabetes"
	DomainAdrenal           = "adrenal"
	DomainMetabolicSyndrome = "metabolic_syndrome"
)

// Risk carries either a risk label or a legacy numeric risk code (1=Low,
// 2=Moderate, 3=High). Numeric codes are only translated by Normalize.
type Risk struct {
	label   RiskLevel
	code    int
	numeric bool
}

// RiskOf returns a label risk.
func RiskOf(level RiskLevel) Risk {
	return Risk{label: level}
}

// RiskCode returns a legacy numeric risk.
func RiskCode(code int) Risk {
	return Risk{code: code, numeric: true}
}

// IsNumeric reports whether the risk is a legacy numeric code.
func (r Risk) IsNumeric() bool { return r.numeric }

// Code returns the numeric code, or 0 for label risks.
func (r Risk) Code() int { return r.code }

// Label returns the raw label, or "" for numeric risks.
func (r Risk) Label() RiskLevel { return r.label }

// Is reports whether r is exactly the given label. Numeric codes never match.
func (r Risk) Is(level RiskLevel) bool {
	return !r.numeric && r.label == level
}

// Normalize maps numeric codes 1/2/3 to Low/Moderate/High and any other
// integer to Low. Labels pass through unchanged.
func (r Risk) Normalize() RiskLevel {
	if !r.numeric {
		return r.label
	}
	switch r.code {
	case 2:
		return RiskModerate
	case 3:
		return RiskHigh
	default:
		return RiskLow
	}
}

// Priority ranks a risk for arbitration: High=3, Moderate=2, Low=1. Anything
// else, including numeric codes, ranks 0.
func (r Risk) Priority() int {
	if r.numeric {
		return 0
	}
	switch r.label {
	case RiskHigh:
		return 3
	case RiskModerate:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

func (r Risk) String() string {
	if r.numeric {
		return strconv.Itoa(r.code)
	}
	return string(r.label)
}

// MarshalJSON writes numeric risks as numbers and labels as strings.
func (r Risk) MarshalJSON() ([]byte, error) {
	if r.numeric {
		return json.Marshal(r.code)
	}
	return json.Marshal(string(r.label))
}

// UnmarshalJSON accepts either a number or a string.
func (r *Risk) UnmarshalJSON(data []byte) error {
	var code int
	if err := json.Unmarshal(data, &code); err == nil {
		*r = RiskCode(code)
		return nil
	}
	var label string
	if err := json.Unmarshal(data, &label); err != nil {
		return fmt.Errorf("risk must be a number or string: %w", err)
	}
	*r = RiskOf(RiskLevel(label))
	return nil
}

// DomainVerdict is the output of one rule evaluator.
type DomainVerdict struct {
	Domain           string     `json:"domain"`
	Condition        string     `json:"condition"`
	Risk             Risk       `json:"risk_level"`
	Confidence       Confidence `json:"confidence"`
	ClinicalFindings []string   `json:"clinical_findings"`
}

// DomainEvaluator maps a patient record to a verdict, or nil when the
// domain's minimum data requirement is not met.
type DomainEvaluator interface {
	Domain() string
	Evaluate(record *PatientRecord) *DomainVerdict
}

// VerdictSummary is a verdict with its risk rendered as a label.
type VerdictSummary struct {
	Domain           string     `json:"domain"`
	Condition        string     `json:"condition"`
	RiskLevel        RiskLevel  `json:"risk_level"`
	Confidence       Confidence `json:"confidence"`
	ClinicalFindings []string   `json:"clinical_findings"`
}

// Summary normalizes the verdict's risk for display.
func (v DomainVerdict) Summary() VerdictSummary {
	findings := v.ClinicalFindings
	if findings == nil {
		findings = []string{}
	}
	return VerdictSummary{
		Domain:           v.Domain,
		Condition:        v.Condition,
		RiskLevel:        v.Risk.Normalize(),
		Confidence:       v.Confidence,
		ClinicalFindings: findings,
	}
}
