package service

import (
	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// Thyroid reference limits.
const (
	tshUpperLimit = 4.5
	tshLowerLimit = 0.4
	ft4UpperLimit = 1.8
	ft4LowerLimit = 0.8
)

// Glycemic thresholds (FBS in mg/dL, HbA1c in %).
const (
	fbsDiabetic      = 126.0
	fbsPrediabetic   = 100.0
	hba1cDiabetic    = 6.5
	hba1cPrediabetic = 5.7
)

// Morning cortisol limits in mcg/dL.
const (
	cortisolLowLimit  = 5.0
	cortisolHighLimit = 20.0
)

const pcosMinimumAge = 12

// EvaluateThyroid scores TSH and free T4 with symptom support. Both labs
// must be present.
func EvaluateThyroid(record *domain.PatientRecord) *domain.DomainVerdict {
	tsh := record.Labs.Get(domain.LabTSH)
	ft4 := record.Labs.Get(domain.LabFreeT4)
	if tsh == nil || ft4 == nil {
		return nil
	}

	// Non-elevated TSH with elevated free T4 is reported as its own pattern
	// and bypasses scoring.
	if *tsh <= tshUpperLimit && *ft4 > ft4UpperLimit {
		return &domain.DomainVerdict{
			Domain:     domain.DomainThyroid,
			Condition:  "Discordant thyroid function tests",
			Risk:       domain.RiskOf(domain.RiskLow),
			Confidence: domain.ConfidenceLow,
			ClinicalFindings: []string{
				"Discordant thyroid function tests (normal TSH with elevated free T4)",
			},
		}
	}

	score := 0
	findings := []string{}

	if *tsh > tshUpperLimit {
		score += 2
		findings = append(findings, "Elevated TSH level")
	} else if *tsh < tshLowerLimit {
		score += 2
		findings = append(findings, "Suppressed TSH level")
	}

	if *ft4 < ft4LowerLimit {
		score += 2
		findings = append(findings, "Low free T4 level")
	} else if *ft4 > ft4UpperLimit {
		score += 2
		findings = append(findings, "Elevated free T4 level")
	}

	if record.Symptoms.Has(domain.SymptomFatigue) {
		score++
		findings = append(findings, "Fatigue reported")
	}
	if record.Symptoms.Has(domain.SymptomWeightGain) {
		score++
		findings = append(findings, "Weight gain reported")
	}

	verdict := &domain.DomainVerdict{
		Domain:           domain.DomainThyroid,
		ClinicalFindings: findings,
	}
	switch {
	case score >= 5:
		verdict.Condition = "Likely thyroid dysfunction"
		verdict.Risk = domain.RiskOf(domain.RiskHigh)
		verdict.Confidence = domain.ConfidenceHigh
	case score >= 3:
		verdict.Condition = "Possible thyroid dysfunction"
		verdict.Risk = domain.RiskOf(domain.RiskModerate)
		verdict.Confidence = domain.ConfidenceMedium
	default:
		verdict.Condition = "No significant thyroid abnormality"
		verdict.Risk = domain.RiskOf(domain.RiskLow)
		verdict.Confidence = domain.ConfidenceLow
	}
	return verdict
}

// glycemicFlags classifies FBS and HbA1c against the diagnostic and
// prediabetic thresholds.
type glycemicFlags struct {
	fbsDiabetic      bool
	fbsPrediabetic   bool
	hba1cDiabetic    bool
	hba1cPrediabetic bool
}

func classifyGlycemia(labs domain.Labs) glycemicFlags {
	var f glycemicFlags
	if fbs := labs.Get(domain.LabFBS); fbs != nil {
		f.fbsDiabetic = *fbs >= fbsDiabetic
		f.fbsPrediabetic = *fbs >= fbsPrediabetic && *fbs < fbsDiabetic
	}
	if hba1c := labs.Get(domain.LabHbA1c); hba1c != nil {
		f.hba1cDiabetic = *hba1c >= hba1cDiabetic
		f.hba1cPrediabetic = *hba1c >= hba1cPrediabetic && *hba1c < hba1cDiabetic
	}
	return f
}

func (f glycemicFlags) diabetic() bool    { return f.fbsDiabetic || f.hba1cDiabetic }
func (f glycemicFlags) prediabetic() bool { return f.fbsPrediabetic || f.hba1cPrediabetic }

// EvaluateDiabetes classifies glycemic status from FBS and/or HbA1c. Unlike
// the other evaluators it reports a Low-risk verdict for normal values.
func EvaluateDiabetes(record *domain.PatientRecord) *domain.DomainVerdict {
	if record.Labs.Get(domain.LabFBS) == nil && record.Labs.Get(domain.LabHbA1c) == nil {
		return nil
	}

	flags := classifyGlycemia(record.Labs)
	findings := []string{}

	if flags.fbsDiabetic {
		findings = append(findings, "Fasting glucose above diagnostic threshold (≥126 mg/dL)")
	} else if flags.fbsPrediabetic {
		findings = append(findings, "Fasting glucose in impaired range (100–125 mg/dL)")
	}
	if flags.hba1cDiabetic {
		findings = append(findings, "HbA1c above diagnostic threshold (≥6.5%)")
	} else if flags.hba1cPrediabetic {
		findings = append(findings, "HbA1c in prediabetic range (5.7–6.4%)")
	}

	verdict := &domain.DomainVerdict{
		Domain:           domain.DomainDiabetes,
		ClinicalFindings: findings,
	}
	switch {
	case flags.diabetic():
		verdict.Condition = "Diabetes mellitus pattern (confirmation required)"
		verdict.Risk = domain.RiskOf(domain.RiskHigh)
		verdict.Confidence = domain.ConfidenceHigh
		if flags.prediabetic() {
			verdict.Confidence = domain.ConfidenceMedium
		}
	case flags.prediabetic():
		verdict.Condition = "Prediabetes pattern"
		verdict.Risk = domain.RiskOf(domain.RiskModerate)
		verdict.Confidence = domain.ConfidenceMedium
	default:
		verdict.Condition = "Normal glycemic status"
		verdict.Risk = domain.RiskOf(domain.RiskLow)
		verdict.Confidence = domain.ConfidenceHigh
	}
	return verdict
}

// EvaluatePCOS checks the two clinical criteria for females aged 12 or
// older. No criteria met means no verdict.
func EvaluatePCOS(record *domain.PatientRecord) *domain.DomainVerdict {
	if !record.Demographics.IsFemale() {
		return nil
	}
	age := record.Demographics.Age
	if age == nil || *age < pcosMinimumAge {
		return nil
	}

	findings := []string{}
	if record.Symptoms.Has(domain.SymptomMenstrualIrregularity) {
		findings = append(findings, "Menstrual irregularity")
	}
	if record.Symptoms.Has(domain.SymptomHirsutism) {
		findings = append(findings, "Clinical hyperandrogenism (hirsutism)")
	}

	switch {
	case len(findings) >= 2:
		return &domain.DomainVerdict{
			Domain:           domain.DomainPCOS,
			Condition:        "Possible Polycystic Ovary Syndrome (PCOS)",
			Risk:             domain.RiskOf(domain.RiskModerate),
			Confidence:       domain.ConfidenceModerate,
			ClinicalFindings: findings,
		}
	case len(findings) == 1:
		return &domain.DomainVerdict{
			Domain:           domain.DomainPCOS,
			Condition:        "PCOS (clinical suspicion)",
			Risk:             domain.RiskOf(domain.RiskLow),
			Confidence:       domain.ConfidenceLow,
			ClinicalFindings: findings,
		}
	}
	return nil
}

// EvaluateAdrenal checks morning cortisol. The insufficiency case keeps the
// legacy numeric risk 3; every other case is reported as Moderate, including
// cortisol within the reference range.
func EvaluateAdrenal(record *domain.PatientRecord) *domain.DomainVerdict {
	cortisol := record.Labs.Get(domain.LabCortisolAM)
	if cortisol == nil {
		return nil
	}

	code := 1
	condition := "No significant adrenal abnormality"
	findings := []string{}

	if *cortisol < cortisolLowLimit {
		findings = append(findings, "Low morning cortisol level")
		condition = "Possible adrenal insufficiency pattern"
		code = 3
	} else if *cortisol > cortisolHighLimit {
		findings = append(findings, "Elevated morning cortisol level")
		condition = "Possible hypercortisol pattern"
		code = 2
	}

	risk := domain.RiskOf(domain.RiskModerate)
	if code == 3 {
		risk = domain.RiskCode(code)
	}

	return &domain.DomainVerdict{
		Domain:           domain.DomainAdrenal,
		Condition:        condition,
		Risk:             risk,
		Confidence:       domain.ConfidenceHigh,
		ClinicalFindings: findings,
	}
}

// EvaluateMetabolicSyndrome counts the metabolic criteria met. All four
// measurements are required. Risk uses the legacy numeric codes.
func EvaluateMetabolicSyndrome(record *domain.PatientRecord) *domain.DomainVerdict {
	waist := record.Vitals.WaistCircumference
	systolic := record.Vitals.BloodPressure.Systolic
	triglycerides := record.Labs.Get(domain.LabTriglycerides)
	hdl := record.Labs.Get(domain.LabHDL)
	if waist == nil || systolic == nil || triglycerides == nil || hdl == nil {
		return nil
	}

	findings := []string{}
	if *waist > 90 {
		findings = append(findings, "Increased waist circumference")
	}
	if *systolic >= 130 {
		findings = append(findings, "Elevated blood pressure")
	}
	if *triglycerides >= 150 {
		findings = append(findings, "Elevated triglycerides")
	}
	if *hdl < 40 {
		findings = append(findings, "Reduced HDL cholesterol")
	}

	verdict := &domain.DomainVerdict{
		Domain:           domain.DomainMetabolicSyndrome,
		Condition:        "No metabolic syndrome pattern detected",
		Risk:             domain.RiskCode(1),
		Confidence:       domain.ConfidenceHigh,
		ClinicalFindings: findings,
	}
	if len(findings) >= 3 {
		verdict.Condition = "Possible metabolic syndrome pattern"
		verdict.Risk = domain.RiskCode(3)
	}
	return verdict
}
