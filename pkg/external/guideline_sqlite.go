package external

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteGuidelineStore is a file-backed guideline index. Reads against a
// missing database file behave as an empty index.
type SQLiteGuidelineStore struct {
	dbPath string
	mu     sync.Mutex
	db     *sql.DB
}

// NewSQLiteGuidelineStore returns a store for dbPath. The file is opened
// lazily on first use.
func NewSQLiteGuidelineStore(dbPath string) *SQLiteGuidelineStore {
	return &SQLiteGuidelineStore{dbPath: dbPath}
}

// errIndexAbsent is returned by open when the file does not exist and create is false.
var errIndexAbsent = errors.New("guideline index not found")

func (s *SQLiteGuidelineStore) open(create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return s.db, nil
	}

	if !create {
		if _, err := os.Stat(s.dbPath); errors.Is(err, fs.ErrNotExist) {
			return nil, errIndexAbsent
		}
	} else if err := os.MkdirAll(filepath.Dir(s.dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open guideline index: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if err := createGuidelineSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s.db = db
	return db, nil
}

func createGuidelineSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS guideline_chunks (
		id TEXT PRIMARY KEY,
		domain TEXT NOT NULL,
		source_file TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(domain, source_file, chunk_index)
	);

	CREATE INDEX IF NOT EXISTS idx_guideline_domain ON guideline_chunks(domain);
	`
	_, err := db.Exec(schema)
	return err
}

// AddChunks stores chunks, replacing any earlier chunks of the same
// (domain, source file) documents.
func (s *SQLiteGuidelineStore) AddChunks(ctx context.Context, chunks []GuidelineChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	db, err := s.open(true)
	if err != nil {
		return 0, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cleared := make(map[[2]string]bool)
	for _, c := range chunks {
		key := [2]string{c.Domain, c.SourceFile}
		if cleared[key] {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM guideline_chunks WHERE domain = ? AND source_file = ?",
			c.Domain, c.SourceFile,
		); err != nil {
			return 0, fmt.Errorf("failed to clear %s/%s: %w", c.Domain, c.SourceFile, err)
		}
		cleared[key] = true
	}

	for _, c := range chunks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO guideline_chunks (id, domain, source_file, chunk_index, text) VALUES (?, ?, ?, ?, ?)",
			c.ID, c.Domain, c.SourceFile, c.ChunkIndex, c.Text,
		); err != nil {
			return 0, fmt.Errorf("failed to insert chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit chunks: %w", err)
	}
	return len(chunks), nil
}

// Retrieve returns up to limit chunk texts of the domain, ranked by the
// number of query terms they contain. Ties keep document order.
func (s *SQLiteGuidelineStore) Retrieve(ctx context.Context, query, evidenceDomain string, limit int) ([]string, error) {
	db, err := s.open(false)
	if errors.Is(err, errIndexAbsent) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 3
	}

	rows, err := db.QueryContext(ctx,
		"SELECT text FROM guideline_chunks WHERE domain = ? ORDER BY source_file, chunk_index",
		evidenceDomain,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query guideline index: %w", err)
	}
	defer rows.Close()

	type scored struct {
		text  string
		score int
	}
	terms := queryTerms(query)
	var candidates []scored
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		candidates = append(candidates, scored{text: text, score: termScore(text, terms)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	docs := make([]string, 0, limit)
	for _, c := range candidates {
		if len(docs) == limit {
			break
		}
		docs = append(docs, c.text)
	}
	return docs, nil
}

// Count returns the number of stored chunks, or 0 when the index is absent.
func (s *SQLiteGuidelineStore) Count(ctx context.Context) (int64, error) {
	db, err := s.open(false)
	if errors.Is(err, errIndexAbsent) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM guideline_chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}

// Close closes the database if it was opened.
func (s *SQLiteGuidelineStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
