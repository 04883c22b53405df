package feedback

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite feedback store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

const selectColumns = `id, assessment_id, evidence_domain, suggested_condition,
	clinician_condition, clinician_agreed, risk_level, notes, created_at, updated_at`

func scanFeedback(s scanner) (*Feedback, error) {
	fb := &Feedback{}
	err := s.Scan(
		&fb.ID, &fb.AssessmentID, &fb.EvidenceDomain, &fb.SuggestedCondition,
		&fb.ClinicianCondition, &fb.ClinicianAgreed, &fb.RiskLevel, &fb.Notes,
		&fb.CreatedAt, &fb.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return fb, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		assessment_id TEXT NOT NULL,
		evidence_domain TEXT NOT NULL DEFAULT '',
		suggested_condition TEXT NOT NULL,
		clinician_condition TEXT NOT NULL,
		clinician_agreed INTEGER NOT NULL DEFAULT 0,
		risk_level TEXT DEFAULT '',
		notes TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(assessment_id, evidence_domain)
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_domain ON feedback(evidence_domain);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores or updates clinician feedback.
func (s *SQLiteStore) Save(ctx context.Context, feedback *Feedback) error {
	if err := feedback.Prepare(); err != nil {
		return err
	}
	now := time.Now().UTC()

	var existingID int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT id, created_at FROM feedback WHERE assessment_id = ? AND evidence_domain = ?",
		feedback.AssessmentID, feedback.EvidenceDomain,
	).Scan(&existingID, &createdAt)

	if err == nil {
		feedback.ID = existingID
		feedback.CreatedAt = createdAt
		feedback.UpdatedAt = now

		_, err = s.db.ExecContext(ctx, `
			UPDATE feedback SET
				suggested_condition = ?,
				clinician_condition = ?,
				clinician_agreed = ?,
				risk_level = ?,
				notes = ?,
				updated_at = ?
			WHERE id = ?
		`,
			feedback.SuggestedCondition,
			feedback.ClinicianCondition,
			feedback.ClinicianAgreed,
			feedback.RiskLevel,
			feedback.Notes,
			now,
			existingID,
		)
		if err != nil {
			return fmt.Errorf("failed to update: %w", err)
		}
		return nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to check existing: %w", err)
	}

	feedback.CreatedAt = now
	feedback.UpdatedAt = now

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (
			assessment_id, evidence_domain, suggested_condition,
			clinician_condition, clinician_agreed, risk_level, notes,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		feedback.AssessmentID,
		feedback.EvidenceDomain,
		feedback.SuggestedCondition,
		feedback.ClinicianCondition,
		feedback.ClinicianAgreed,
		feedback.RiskLevel,
		feedback.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	feedback.ID = id
	return nil
}

// Get retrieves the feedback for an assessment and domain.
func (s *SQLiteStore) Get(ctx context.Context, assessmentID, evidenceDomain string) (*Feedback, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM feedback WHERE assessment_id = ? AND evidence_domain = ? LIMIT 1",
		assessmentID, evidenceDomain)

	fb, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan: %w", err)
	}
	return fb, nil
}

// List returns feedback entries with pagination, newest first.
func (s *SQLiteStore) List(ctx context.Context, limit, offset int) ([]*Feedback, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM feedback ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
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
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM feedback").Scan(&count)
	return count, err
}

// Delete removes a feedback entry by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM feedback WHERE id = ?", id)
	return err
}

// ExportJSON exports all feedback to a JSON writer.
func (s *SQLiteStore) ExportJSON(ctx context.Context, writer io.Writer) error {
	return exportJSON(ctx, s, writer)
}

// ImportJSON imports feedback from a JSON reader.
func (s *SQLiteStore) ImportJSON(ctx context.Context, reader io.Reader) (int, int, error) {
	return importJSON(ctx, s, reader)
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func exportJSON(ctx context.Context, store Store, writer io.Writer) error {
	all, err := store.List(ctx, maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list feedback: %w", err)
	}
	if all == nil {
		all = []*Feedback{}
	}

	export := &FeedbackExport{
		Version:    exportVersion,
		ExportedAt: time.Now().UTC(),
		Count:      len(all),
		Feedback:   all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, store Store, reader io.Reader) (imported int, skipped int, err error) {
	var export FeedbackExport
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, fb := range export.Feedback {
		if fb == nil {
			continue
		}
		existing, err := store.Get(ctx, fb.AssessmentID, fb.EvidenceDomain)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		if err := store.Save(ctx, fb); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
