package service

import (
	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// Emergency thresholds.
const (
	criticalFBS       = 300.0
	criticalSystolic  = 180
	criticalDiastolic = 120
)

const criticalReasoning = "Critical values detected that require immediate medical attention. " +
	"Automated clinical reasoning has been halted."

const insufficientReasoning = "No sufficient clinical parameters were provided to generate a " +
	"meaningful assessment. Please enter relevant laboratory values, vital signs, or clinical symptoms."

// CriticalAlerts returns one alert per emergency threshold crossed, or nil.
func CriticalAlerts(record *domain.PatientRecord) []string {
	var alerts []string

	if fbs := record.Labs.Get(domain.LabFBS); fbs != nil && *fbs >= criticalFBS {
		alerts = append(alerts, "Severe hyperglycemia detected (FBS ≥ 300 mg/dL)")
	}
	bp := record.Vitals.BloodPressure
	if bp.Systolic != nil && *bp.Systolic >= criticalSystolic {
		alerts = append(alerts, "Hypertensive crisis (SBP ≥ 180 mmHg)")
	}
	if bp.Diastolic != nil && *bp.Diastolic >= criticalDiastolic {
		alerts = append(alerts, "Hypertensive crisis (DBP ≥ 120 mmHg)")
	}

	return alerts
}

// HasMinimumClinicalData reports whether any lab, vital or symptom carries
// a value.
func HasMinimumClinicalData(record *domain.PatientRecord) bool {
	return record.Labs.AnyPresent() || record.Vitals.AnyPresent() || record.Symptoms.AnyPresent()
}

// criticalOverrideResult carries no disclaimer.
func criticalOverrideResult(alerts []string) *domain.AssessmentResult {
	return &domain.AssessmentResult{
		Outcome: domain.OutcomeCritical,
		Primary: domain.PrimaryAssessment{
			Condition:         "Medical Emergency",
			RiskLevel:         domain.RiskCritical,
			Confidence:        domain.ConfidenceHigh,
			ClinicalFindings:  alerts,
			ClinicalReasoning: criticalReasoning,
		},
		Secondary: []domain.SecondaryAssessment{},
	}
}

func insufficientDataResult() *domain.AssessmentResult {
	return &domain.AssessmentResult{
		Outcome: domain.OutcomeInsufficient,
		Primary: domain.PrimaryAssessment{
			Condition:         "Insufficient clinical data",
			RiskLevel:         domain.RiskNotApplicable,
			Confidence:        domain.ConfidenceLow,
			ClinicalFindings:  []string{},
			ClinicalReasoning: insufficientReasoning,
		},
		Secondary:  []domain.SecondaryAssessment{},
		Disclaimer: domain.Disclaimer,
	}
}
