package external

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresGuidelineStore is a guideline index backed by PostgreSQL full-text
// search. The guideline_chunks table is created by the migrations.
type PostgresGuidelineStore struct {
	pool *pgxpool.Pool
}

// NewPostgresGuidelineStore creates a store on an existing pool
func NewPostgresGuidelineStore(pool *pgxpool.Pool) *PostgresGuidelineStore {
	return &PostgresGuidelineStore{pool: pool}
}

// AddChunks stores chunks, replacing earlier chunks of the same documents.
func (s *PostgresGuidelineStore) AddChunks(ctx context.Context, chunks []GuidelineChunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	cleared := make(map[[2]string]bool)
	for _, c := range chunks {
		key := [2]string{c.Domain, c.SourceFile}
		if !cleared[key] {
			batch.Queue("DELETE FROM guideline_chunks WHERE domain = $1 AND source_file = $2", c.Domain, c.SourceFile)
			cleared[key] = true
		}
	}
	for _, c := range chunks {
		batch.Queue(
			"INSERT INTO guideline_chunks (id, domain, source_file, chunk_index, text) VALUES ($1, $2, $3, $4, $5)",
			c.ID, c.Domain, c.SourceFile, c.ChunkIndex, c.Text,
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit chunks: %w", err)
	}
	return len(chunks), nil
}

// Retrieve ranks the domain's chunks with ts_rank against an OR query of
// the query terms.
func (s *PostgresGuidelineStore) Retrieve(ctx context.Context, query, evidenceDomain string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 3
	}

	tsQuery := strings.Join(queryTerms(query), " | ")
	rows, err := s.pool.Query(ctx, `
		SELECT text
		FROM guideline_chunks
		WHERE domain = $1
		ORDER BY
			CASE WHEN $2 = '' THEN 0 ELSE ts_rank(tsv, to_tsquery('english', $2)) END DESC,
			source_file, chunk_index
		LIMIT $3
	`, evidenceDomain, tsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query guideline index: %w", err)
	}

	docs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}
	if docs == nil {
		docs = []string{}
	}
	return docs, nil
}

// Count returns the number of stored chunks
func (s *PostgresGuidelineStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM guideline_chunks").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return count, nil
}
