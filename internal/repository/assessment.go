package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/karthickraja0810/clinical-decision-support/internal/domain"
)

// AssessmentRepository persists assessment audit records
type AssessmentRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewAssessmentRepository creates a new assessment repository
func NewAssessmentRepository(db *pgxpool.Pool, logger *logrus.Logger) *AssessmentRepository {
	return &AssessmentRepository{
		db:  db,
		log: logger,
	}
}

// NewRecord builds an audit record for a completed assessment.
func NewRecord(requestID string, result *domain.AssessmentResult, elapsed time.Duration) *domain.AssessmentRecord {
	return &domain.AssessmentRecord{
		ID:               uuid.NewString(),
		RequestID:        requestID,
		Outcome:          result.Outcome,
		PrimaryCondition: result.Primary.Condition,
		RiskLevel:        result.Primary.RiskLevel,
		EvidenceDomain:   result.Primary.EvidenceDomain,
		Result:           result,
		ProcessingTimeMs: int(elapsed.Milliseconds()),
		CreatedAt:        time.Now().UTC(),
	}
}

// SaveAssessment inserts an audit record. A missing ID is generated.
func (r *AssessmentRepository) SaveAssessment(ctx context.Context, record *domain.AssessmentRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return fmt.Errorf("invalid assessment id: %w", err)
	}

	payload, err := json.Marshal(record.Result)
	if err != nil {
		return fmt.Errorf("encoding assessment result: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, request_id, outcome, primary_condition, risk_level,
			evidence_domain, result, processing_time_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.Exec(ctx, query,
		id,
		record.RequestID,
		string(record.Outcome),
		record.PrimaryCondition,
		string(record.RiskLevel),
		record.EvidenceDomain,
		payload,
		record.ProcessingTimeMs,
		record.CreatedAt,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"assessment_id": record.ID,
			"error":         err,
		}).Error("Failed to store assessment")
		return fmt.Errorf("creating assessment: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"assessment_id": record.ID,
		"outcome":       record.Outcome,
		"risk_level":    record.RiskLevel,
	}).Debug("Assessment stored")

	return nil
}

const selectAssessment = `
	SELECT id, request_id, outcome, primary_condition, risk_level,
		   evidence_domain, result, processing_time_ms, created_at
	FROM assessments`

func scanAssessment(row pgx.Row) (*domain.AssessmentRecord, error) {
	var (
		record  domain.AssessmentRecord
		id      uuid.UUID
		outcome string
		risk    string
		payload []byte
	)
	err := row.Scan(
		&id,
		&record.RequestID,
		&outcome,
		&record.PrimaryCondition,
		&risk,
		&record.EvidenceDomain,
		&payload,
		&record.ProcessingTimeMs,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ID = id.String()
	record.Outcome = domain.Outcome(outcome)
	record.RiskLevel = domain.RiskLevel(risk)

	var result domain.AssessmentResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("decoding assessment result: %w", err)
	}
	result.Outcome = record.Outcome
	record.Result = &result
	return &record, nil
}

// GetAssessment retrieves an audit record by ID
func (r *AssessmentRepository) GetAssessment(ctx context.Context, id string) (*domain.AssessmentRecord, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("assessment %q: %w", id, domain.ErrAssessmentNotFound)
	}

	record, err := scanAssessment(r.db.QueryRow(ctx, selectAssessment+" WHERE id = $1", parsed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("assessment %q: %w", id, domain.ErrAssessmentNotFound)
		}
		return nil, fmt.Errorf("getting assessment by ID: %w", err)
	}
	return record, nil
}

// ListAssessments returns audit records newest first
func (r *AssessmentRepository) ListAssessments(ctx context.Context, limit, offset int) ([]*domain.AssessmentRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, selectAssessment+" ORDER BY created_at DESC LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()

	var records []*domain.AssessmentRecord
	for rows.Next() {
		record, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
