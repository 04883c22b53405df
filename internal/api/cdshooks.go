package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
	"github.com/karthickraja0810/clinical-decision-support/internal/middleware"
)

// CDS Hooks service identity.
const (
	CDSServiceID   = "endocrine-screening"
	CDSHook        = "patient-view"
	cdsSourceLabel = "Endocrine Clinical Decision Support"
	maxSummaryLen  = 140
)

// CDSService is one entry of the discovery response.
type CDSService struct {
	Hook        string `json:"hook"`
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CDSRequest is the hook invocation body. The patient record is read from
// context.patientRecord, falling back to prefetch.patientRecord.
type CDSRequest struct {
	HookInstance string     `json:"hookInstance"`
	Hook         string     `json:"hook"`
	Context      CDSContext `json:"context"`
	Prefetch     struct {
		PatientRecord *domain.PatientRecord `json:"patientRecord"`
	} `json:"prefetch"`
}

// CDSContext carries the hook context fields this service reads.
type CDSContext struct {
	UserID        string                `json:"userId,omitempty"`
	PatientID     string                `json:"patientId,omitempty"`
	PatientRecord *domain.PatientRecord `json:"patientRecord,omitempty"`
}

// CDSCard is a CDS Hooks 2.0 card.
type CDSCard struct {
	UUID      string    `json:"uuid"`
	Summary   string    `json:"summary"`
	Detail    string    `json:"detail,omitempty"`
	Indicator string    `json:"indicator"`
	Source    CDSSource `json:"source"`
}

// CDSSource names the card's origin.
type CDSSource struct {
	Label string `json:"label"`
}

// CDSResponse is the hook response.
type CDSResponse struct {
	Cards []CDSCard `json:"cards"`
}

// CDSFeedbackRequest is the body of the feedback endpoint.
type CDSFeedbackRequest struct {
	Feedback []CDSFeedback `json:"feedback"`
}

// CDSFeedback reports what the clinician did with one card.
type CDSFeedback struct {
	Card             string       `json:"card"`
	Outcome          string       `json:"outcome"` // accepted | overridden
	OverrideReason   *CDSOverride `json:"overrideReason,omitempty"`
	OutcomeTimestamp string       `json:"outcomeTimestamp,omitempty"`
}

// CDSOverride explains an overridden card.
type CDSOverride struct {
	Reason *struct {
		Code    string `json:"code"`
		Display string `json:"display"`
	} `json:"reason,omitempty"`
	UserComment string `json:"userComment,omitempty"`
}

// issuedCard is remembered per primary card UUID so feedback can be
// attributed. Feedback on secondary cards is reported as unknown.
type issuedCard struct {
	AssessmentID   string
	EvidenceDomain string
	Condition      string
	RiskLevel      domain.RiskLevel
}

// CardIndicator maps a risk level onto a card indicator.
func CardIndicator(level domain.RiskLevel) string {
	switch level {
	case domain.RiskCritical:
		return "critical"
	case domain.RiskHigh:
		return "warning"
	default:
		return "info"
	}
}

// BuildCards renders one card for the primary assessment and one info
// card per secondary assessment.
func BuildCards(result *domain.AssessmentResult) []CDSCard {
	detail := result.Primary.ClinicalReasoning
	if result.Disclaimer != "" {
		detail = strings.TrimSpace(detail + "\n\n" + result.Disclaimer)
	}

	cards := []CDSCard{{
		UUID:      uuid.NewString(),
		Summary:   truncate(cardSummary(result.Primary.Condition, result.Primary.RiskLevel), maxSummaryLen),
		Detail:    detail,
		Indicator: CardIndicator(result.Primary.RiskLevel),
		Source:    CDSSource{Label: cdsSourceLabel},
	}}

	for _, sec := range result.Secondary {
		cards = append(cards, CDSCard{
			UUID:      uuid.NewString(),
			Summary:   truncate("Also considered: "+cardSummary(sec.Condition, sec.RiskLevel), maxSummaryLen),
			Indicator: "info",
			Source:    CDSSource{Label: cdsSourceLabel},
		})
	}
	return cards
}

func cardSummary(condition string, risk domain.RiskLevel) string {
	if risk == "" || risk == domain.RiskNotApplicable {
		return condition
	}
	return condition + " (" + string(risk) + " risk)"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (s *Server) handleCDSDiscovery(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"services": []CDSService{{
			Hook:        CDSHook,
			ID:          CDSServiceID,
			Title:       "Endocrine screening",
			Description: "Screens structured vitals, labs and symptoms for PCOS, thyroid, diabetes and adrenal patterns.",
		}},
	})
}

func (s *Server) handleCDSService(c *gin.Context) {
	if c.Param("id") != CDSServiceID {
		middleware.AbortWithError(c, http.StatusNotFound, domain.ErrNotFound, "unknown CDS service", c.Param("id"))
		return
	}

	var req CDSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid CDS Hooks request", err.Error())
		return
	}

	record := req.Context.PatientRecord
	if record == nil {
		record = req.Prefetch.PatientRecord
	}
	if record == nil {
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			"patientRecord is required in context or prefetch", "")
		return
	}
	if !validateRecord(c, record) {
		return
	}

	audit := s.assess(c, record)
	cards := BuildCards(audit.Result)

	s.rememberCard(cards[0].UUID, issuedCard{
		AssessmentID:   audit.ID,
		EvidenceDomain: audit.Result.Primary.EvidenceDomain,
		Condition:      audit.Result.Primary.Condition,
		RiskLevel:      audit.Result.Primary.RiskLevel,
	})

	s.logger.WithFields(logrus.Fields{
		"hook_instance": req.HookInstance,
		"assessment_id": audit.ID,
		"cards":         len(cards),
	}).Info("CDS hook served")

	c.JSON(http.StatusOK, CDSResponse{Cards: cards})
}

func (s *Server) rememberCard(id string, card issuedCard) {
	s.deps.Cards.Set("card:"+id, card)
}

func (s *Server) handleCDSFeedback(c *gin.Context) {
	if c.Param("id") != CDSServiceID {
		middleware.AbortWithError(c, http.StatusNotFound, domain.ErrNotFound, "unknown CDS service", c.Param("id"))
		return
	}
	if s.deps.Feedback == nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, domain.ErrInternalServer, "feedback storage is not configured", "")
		return
	}

	var req CDSFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid feedback request", err.Error())
		return
	}

	stored, unknown := 0, 0
	for _, item := range req.Feedback {
		fb, ok := s.cardFeedback(item)
		if !ok {
			unknown++
			continue
		}
		if err := s.saveCardFeedback(c.Request.Context(), fb); err != nil {
			s.logger.WithError(err).Error("Failed to store CDS feedback")
			middleware.AbortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to store feedback", "")
			return
		}
		stored++
	}

	c.JSON(http.StatusOK, gin.H{"stored": stored, "unknown": unknown})
}

// cardFeedback converts a CDS feedback item for a known card.
func (s *Server) cardFeedback(item CDSFeedback) (*feedback.Feedback, bool) {
	v, ok := s.deps.Cards.Get("card:" + item.Card)
	if !ok {
		return nil, false
	}
	card, ok := v.(issuedCard)
	if !ok {
		return nil, false
	}

	fb := &feedback.Feedback{
		AssessmentID:       card.AssessmentID,
		EvidenceDomain:     card.EvidenceDomain,
		SuggestedCondition: card.Condition,
		RiskLevel:          string(card.RiskLevel),
	}
	if item.Outcome == "overridden" {
		fb.ClinicianCondition = "Overridden"
		if r := item.OverrideReason; r != nil {
			if r.Reason != nil && r.Reason.Display != "" {
				fb.ClinicianCondition = r.Reason.Display
			}
			fb.Notes = r.UserComment
		}
	}
	return fb, true
}

func (s *Server) saveCardFeedback(ctx context.Context, fb *feedback.Feedback) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.deps.Feedback.Save(ctx, fb)
}
