package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/karthickraja0810/clinical-decision-support/internal/config"
	"github.com/karthickraja0810/clinical-decision-support/internal/database"
	"github.com/karthickraja0810/clinical-decision-support/pkg/external"
)

const ingestWorkers = 4

type chunkWriter interface {
	AddChunks(ctx context.Context, chunks []external.GuidelineChunk) (int, error)
	Count(ctx context.Context) (int64, error)
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <dir>",
		Short: "Index guideline text files into the retrieval backend",
		Long: "Index guideline text files. Each subdirectory of <dir> names an evidence domain " +
			"(pcos, thyroid, diabetes, adrenal, metabolic_syndrome) and holds *.txt documents.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0])
		},
	}
}

func runIngest(cmd *cobra.Command, dir string) error {
	manager, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg := manager.GetConfig()
	logger := config.NewLogger(cfg.Logging.Level, cfg.Logging.Format, nil)
	ctx := cmd.Context()

	chunks, err := collectChunks(ctx, dir, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)
	if err != nil {
		return err
	}

	var writer chunkWriter
	switch cfg.Retrieval.Backend {
	case "sqlite":
		store := external.NewSQLiteGuidelineStore(cfg.Retrieval.SQLitePath)
		defer store.Close()
		writer = store
	case "postgres":
		db, err := database.NewConnection(ctx, database.ConfigFromDomain(cfg.Database), logger)
		if err != nil {
			return err
		}
		defer db.Close()
		writer = external.NewPostgresGuidelineStore(db.Pool)
	default:
		return fmt.Errorf("retrieval backend %q does not support ingestion", cfg.Retrieval.Backend)
	}

	added, err := writer.AddChunks(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	total, err := writer.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d chunks (%d total)\n", added, total)
	return nil
}

// collectChunks reads every <domain>/*.txt file under dir and chunks it.
// Empty documents are skipped. The result is ordered by domain, file and
// chunk index.
func collectChunks(ctx context.Context, dir string, size, overlap int) ([]external.GuidelineChunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read guideline directory: %w", err)
	}

	var (
		mu     sync.Mutex
		chunks []external.GuidelineChunk
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestWorkers)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		evidenceDomain := entry.Name()
		files, err := filepath.Glob(filepath.Join(dir, evidenceDomain, "*.txt"))
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				text := strings.TrimSpace(string(data))
				if text == "" {
					return nil
				}
				built := external.BuildChunks(evidenceDomain, filepath.Base(path), text, size, overlap)
				mu.Lock()
				chunks = append(chunks, built...)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Domain != b.Domain {
			return a.Domain < b.Domain
		}
		if a.SourceFile != b.SourceFile {
			return a.SourceFile < b.SourceFile
		}
		return a.ChunkIndex < b.ChunkIndex
	})
	return chunks, nil
}
