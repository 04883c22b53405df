package service

import (
	"sort"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

const noFindingsReasoning = "No dominant endocrine or metabolic syndrome is identified based " +
	"on the available clinical data. Clinical correlation is advised."

// Arbitration is the ranked outcome of one set of domain verdicts.
type Arbitration struct {
	Primary            domain.DomainVerdict
	Secondary          []domain.DomainVerdict
	BorderlineFindings []string
}

// borderlineDomains are the only domains whose Moderate findings are
// surfaced as borderline.
var borderlineDomains = map[string]bool{
	domain.DomainThyroid:  true,
	domain.DomainDiabetes: true,
}

// Arbitrate filters and ranks verdicts given in evaluation order. It returns
// nil when nothing actionable remains. Input verdicts are not modified.
func Arbitrate(verdicts []domain.DomainVerdict) *Arbitration {
	retained := make([]domain.DomainVerdict, 0, len(verdicts))
	for _, v := range verdicts {
		// a Low diabetes verdict is a normal result
		if v.Domain == domain.DomainDiabetes && v.Risk.Is(domain.RiskLow) {
			continue
		}
		retained = append(retained, v)
	}
	if len(retained) == 0 {
		return nil
	}

	borderline := []string{}
	seen := make(map[string]bool)
	for _, v := range retained {
		if !borderlineDomains[v.Domain] || !v.Risk.Is(domain.RiskModerate) {
			continue
		}
		for _, finding := range v.ClinicalFindings {
			if !seen[finding] {
				seen[finding] = true
				borderline = append(borderline, finding)
			}
		}
	}

	sort.SliceStable(retained, func(i, j int) bool {
		return retained[i].Risk.Priority() > retained[j].Risk.Priority()
	})

	return &Arbitration{
		Primary:            retained[0],
		Secondary:          retained[1:],
		BorderlineFindings: borderline,
	}
}

// assembleResult builds the final result for an arbitrated assessment.
// Risk codes are normalized here and nowhere else.
func assembleResult(arb *Arbitration, narrative Narrative, excerpt string) *domain.AssessmentResult {
	primary := arb.Primary

	condition := primary.Condition
	if condition == "" {
		condition = "Unspecified condition"
	}
	confidence := primary.Confidence
	if confidence == "" {
		confidence = domain.ConfidenceMedium
	}
	findings := primary.ClinicalFindings
	if findings == nil {
		findings = []string{}
	}

	secondary := make([]domain.SecondaryAssessment, 0, len(arb.Secondary))
	for _, v := range arb.Secondary {
		secondary = append(secondary, secondaryAssessment(v))
	}

	return &domain.AssessmentResult{
		Outcome: domain.OutcomeAssessed,
		Primary: domain.PrimaryAssessment{
			Condition:          condition,
			RiskLevel:          renderRisk(primary.Risk),
			Confidence:         confidence,
			ClinicalFindings:   findings,
			ClinicalReasoning:  narrative.Text,
			SupportingEvidence: &excerpt,
			EvidenceDomain:     primary.Domain,
		},
		BorderlineFindings: arb.BorderlineFindings,
		Secondary:          secondary,
		Disclaimer:         domain.Disclaimer,
	}
}

func secondaryAssessment(v domain.DomainVerdict) domain.SecondaryAssessment {
	out := domain.SecondaryAssessment{
		Condition:  v.Condition,
		RiskLevel:  renderRisk(v.Risk),
		Confidence: v.Confidence,
	}
	if out.Condition == "" {
		out.Condition = "Unspecified condition"
	}
	if out.Confidence == "" {
		out.Confidence = domain.ConfidenceMedium
	}
	return out
}

// renderRisk normalizes a risk, treating a missing label as Low.
func renderRisk(r domain.Risk) domain.RiskLevel {
	if level := r.Normalize(); level != "" {
		return level
	}
	return domain.RiskLow
}

func noFindingsResult() *domain.AssessmentResult {
	return &domain.AssessmentResult{
		Outcome: domain.OutcomeNoFindings,
		Primary: domain.PrimaryAssessment{
			Condition:         "No significant endocrine or metabolic disorder detected",
			RiskLevel:         domain.RiskLow,
			Confidence:        domain.ConfidenceHigh,
			ClinicalFindings:  []string{},
			ClinicalReasoning: noFindingsReasoning,
		},
		BorderlineFindings: []string{},
		Explainability: &domain.Explainability{
			TriggeredRule:   "None",
			CriteriaMet:     []string{},
			CriteriaMissing: []string{},
			ConfidenceBasis: "All screening criteria were negative",
		},
		Secondary:  []domain.SecondaryAssessment{},
		Disclaimer: domain.Disclaimer,
	}
}
