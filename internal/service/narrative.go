package service

import (
	"strings"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// FallbackNarrative replaces a failed or empty generated explanation.
const FallbackNarrative = "Clinical findings suggest a possible endocrine pattern. " +
	"Further clinical correlation is advised."

// DefaultExcerptLength is the maximum length of supporting evidence, in characters.
const DefaultExcerptLength = 800

// NarrativeSource records how a narrative was produced.
type NarrativeSource string

const (
	NarrativeTemplate  NarrativeSource = "template"
	NarrativeGenerated NarrativeSource = "generated"
	NarrativeFallback  NarrativeSource = "fallback"
)

// Narrative is the clinical reasoning text for a primary verdict. Err holds
// the generator failure when Source is NarrativeFallback.
type Narrative struct {
	Text   string
	Source NarrativeSource
	Err    error
}

const (
	diabetesDiscordantNarrative = "A fasting plasma glucose value above the diagnostic threshold suggests " +
		"a diabetes mellitus pattern. However, the HbA1c value remains below the " +
		"diagnostic range, indicating discordant glycemic markers. Repeat " +
		"confirmatory testing is recommended before establishing a definitive " +
		"diagnosis."
	diabetesConcordantNarrative = "Both fasting plasma glucose and HbA1c values are within the diagnostic " +
		"range for diabetes mellitus, providing strong biochemical evidence " +
		"supporting the diagnosis."
	prediabetesNarrative = "Glycemic values are within the prediabetic range, indicating impaired " +
		"glucose regulation. Lifestyle modification and periodic monitoring are " +
		"recommended to reduce progression risk."
	normalGlycemiaNarrative = "Glycemic parameters are within normal limits, with no biochemical evidence " +
		"of impaired glucose regulation at this time."
)

// DiabetesNarrative selects the deterministic glycemic explanation. The
// branches are checked in order; an HbA1c-only diabetic value with no
// glucose abnormality falls through to the normal template.
func DiabetesNarrative(labs domain.Labs) string {
	f := classifyGlycemia(labs)

	switch {
	case f.fbsDiabetic && !f.hba1cDiabetic:
		return diabetesDiscordantNarrative
	case f.fbsDiabetic && f.hba1cDiabetic:
		return diabetesConcordantNarrative
	case f.prediabetic():
		return prediabetesNarrative
	default:
		return normalGlycemiaNarrative
	}
}

// ExtractExcerpt takes the first document, trims it, keeps the text before
// the first blank line and truncates it to maxLen characters.
func ExtractExcerpt(documents []string, maxLen int) string {
	if len(documents) == 0 {
		return ""
	}
	text := strings.TrimSpace(documents[0])
	if i := strings.Index(text, "\n\n"); i >= 0 {
		text = text[:i]
	}
	if maxLen > 0 {
		runes := []rune(text)
		if len(runes) > maxLen {
			text = string(runes[:maxLen])
		}
	}
	return text
}
