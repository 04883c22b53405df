package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
	"github.com/karthickraja0810/clinical-decision-support/internal/middleware"
	"github.com/karthickraja0810/clinical-decision-support/internal/repository"
)

// AssessmentResponse is returned by POST /api/v1/assessments.
type AssessmentResponse struct {
	ID               string                   `json:"id"`
	Result           *domain.AssessmentResult `json:"result"`
	ProcessingTimeMs int                      `json:"processing_time_ms"`
}

// bindRecord decodes and validates a patient record, writing the error
// response itself when it fails.
func bindRecord(c *gin.Context) (*domain.PatientRecord, bool) {
	var record domain.PatientRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid patient record", err.Error())
		return nil, false
	}
	if !validateRecord(c, &record) {
		return nil, false
	}
	return &record, true
}

func validateRecord(c *gin.Context, record *domain.PatientRecord) bool {
	if err := record.Validate(); err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrValidation, vErr.Message, vErr.Field)
		} else {
			middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrValidation, err.Error(), "")
		}
		return false
	}
	record.DeriveBMI()
	return true
}

// assess runs the pipeline and stores an audit record when a repository
// is configured. Storage failures do not fail the request.
func (s *Server) assess(c *gin.Context, record *domain.PatientRecord) *domain.AssessmentRecord {
	start := time.Now()
	result := s.deps.Assessor.Assess(c.Request.Context(), record)
	audit := repository.NewRecord(middleware.GetCorrelationID(c), result, time.Since(start))

	if s.deps.Assessments != nil {
		if err := s.deps.Assessments.SaveAssessment(c.Request.Context(), audit); err != nil {
			s.logger.WithError(err).WithField("assessment_id", audit.ID).Warn("Failed to store assessment audit record")
		}
	}
	return audit
}

func (s *Server) handleAssess(c *gin.Context) {
	record, ok := bindRecord(c)
	if !ok {
		return
	}

	audit := s.assess(c, record)
	c.JSON(http.StatusOK, AssessmentResponse{
		ID:               audit.ID,
		Result:           audit.Result,
		ProcessingTimeMs: audit.ProcessingTimeMs,
	})
}

func (s *Server) handleGetAssessment(c *gin.Context) {
	id := c.Param("id")
	if s.deps.Assessments == nil {
		middleware.AbortWithError(c, http.StatusNotFound, domain.ErrNotFound, "assessment storage is not configured", id)
		return
	}

	record, err := s.deps.Assessments.GetAssessment(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrAssessmentNotFound) {
			middleware.AbortWithError(c, http.StatusNotFound, domain.ErrNotFound, "assessment not found", id)
			return
		}
		s.logger.WithError(err).Error("Failed to load assessment")
		middleware.AbortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to load assessment", "")
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleListEvaluators(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"domains": s.deps.Evaluator.Domains()})
}

func (s *Server) handleEvaluateDomain(c *gin.Context) {
	code := c.Param("domain")
	known := false
	for _, d := range s.deps.Evaluator.Domains() {
		if d == code {
			known = true
			break
		}
	}
	if !known {
		middleware.AbortWithError(c, http.StatusNotFound, domain.ErrNotFound, "unknown evaluation domain", code)
		return
	}

	record, ok := bindRecord(c)
	if !ok {
		return
	}

	verdict, err := s.deps.Evaluator.EvaluateDomain(code, record)
	if err != nil {
		middleware.AbortWithError(c, http.StatusNotFound, domain.ErrNotFound, err.Error(), code)
		return
	}
	if verdict == nil {
		c.JSON(http.StatusOK, gin.H{"domain": code, "verdict": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"domain": code, "verdict": verdict.Summary()})
}

func (s *Server) handleSubmitFeedback(c *gin.Context) {
	if s.deps.Feedback == nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, domain.ErrInternalServer, "feedback storage is not configured", "")
		return
	}

	var fb feedback.Feedback
	if err := c.ShouldBindJSON(&fb); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput, "invalid feedback", err.Error())
		return
	}
	if err := fb.Prepare(); err != nil {
		middleware.AbortWithError(c, http.StatusBadRequest, domain.ErrValidation, err.Error(), "")
		return
	}

	if err := s.deps.Feedback.Save(c.Request.Context(), &fb); err != nil {
		s.logger.WithError(err).Error("Failed to store feedback")
		middleware.AbortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to store feedback", "")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"assessment_id":    fb.AssessmentID,
		"evidence_domain":  fb.EvidenceDomain,
		"clinician_agreed": fb.ClinicianAgreed,
	}).Info("Clinician feedback recorded")

	c.JSON(http.StatusCreated, fb)
}

func (s *Server) handleListFeedback(c *gin.Context) {
	if s.deps.Feedback == nil {
		middleware.AbortWithError(c, http.StatusServiceUnavailable, domain.ErrInternalServer, "feedback storage is not configured", "")
		return
	}
	ctx := c.Request.Context()

	if assessmentID := c.Query("assessment_id"); assessmentID != "" {
		fb, err := s.deps.Feedback.Get(ctx, assessmentID, c.Query("evidence_domain"))
		if err != nil {
			middleware.AbortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to load feedback", "")
			return
		}
		if fb == nil {
			middleware.AbortWithError(c, http.StatusNotFound, domain.ErrNotFound, "feedback not found", assessmentID)
			return
		}
		c.JSON(http.StatusOK, fb)
		return
	}

	limit := queryInt(c, "limit", 50, 1, 500)
	offset := queryInt(c, "offset", 0, 0, 1<<30)

	entries, err := s.deps.Feedback.List(ctx, limit, offset)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to list feedback", "")
		return
	}
	total, err := s.deps.Feedback.Count(ctx)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "failed to count feedback", "")
		return
	}
	if entries == nil {
		entries = []*feedback.Feedback{}
	}

	c.JSON(http.StatusOK, gin.H{
		"feedback": entries,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// queryInt parses an integer query parameter, clamped to [lo, hi].
func queryInt(c *gin.Context, name string, def, lo, hi int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
