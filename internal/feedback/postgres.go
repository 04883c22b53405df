package feedback

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL feedback store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL feedback store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Save upserts clinician feedback.
func (s *PostgresStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Prepare(); err != nil {
		return err
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO feedback (
			assessment_id, evidence_domain, suggested_condition,
			clinician_condition, clinician_agreed, risk_level, notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (assessment_id, evidence_domain) DO UPDATE SET
			suggested_condition = EXCLUDED.suggested_condition,
			clinician_condition = EXCLUDED.clinician_condition,
			clinician_agreed = EXCLUDED.clinician_agreed,
			risk_level = EXCLUDED.risk_level,
			notes = EXCLUDED.notes,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		feedback.AssessmentID,
		feedback.EvidenceDomain,
		feedback.SuggestedCondition,
		feedback.ClinicianCondition,
		feedback.ClinicianAgreed,
		feedback.RiskLevel,
		feedback.Notes,
		now,
		now,
	).Scan(&feedback.ID, &feedback.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}

	feedback.UpdatedAt = now
	return nil
}

// Get retrieves the feedback for an assessment and domain.
func (s *PostgresStore) Get(ctx context.Context, assessmentID, evidenceDomain string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM feedback WHERE assessment_id = $1 AND evidence_domain = $2 LIMIT 1",
		assessmentID, evidenceDomain)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return fb, nil
}

// List returns feedback entries with pagination, newest first.
func (s *PostgresStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM feedback ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var result []*Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, fb)
	}
	return result, rows.Err()
}

// Count returns the total number of feedback entries.
func (s *PostgresStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return count, nil
}

// Delete removes a feedback entry by ID.
func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete feedback: %w", err)
	}
	return nil
}

// ExportJSON exports all feedback to a JSON writer.
func (s *PostgresStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *PostgresStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
