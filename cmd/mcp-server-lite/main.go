// Package main provides the lightweight MCP entry point for the clinical
// decision support engine. It needs no external databases: state lives in
// an in-memory cache and SQLite files under the data directory.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/karthickraja0810/clinical-decision-support/internal/config"
	"github.com/karthickraja0810/clinical-decision-support/internal/feedback"
	"github.com/karthickraja0810/clinical-decision-support/internal/mcp"
	"github.com/karthickraja0810/clinical-decision-support/pkg/external"
)

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "cdss-mcp-lite",
		Short:        "Clinical decision support MCP server (lite)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file to load before reading CDSS_* variables (default: .env)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Serve MCP over stdio (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report data directory, index and narrative service state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadLiteConfig(envFile)
			if err != nil {
				return err
			}
			return printStatus(cmd.Context(), cmd.OutOrStdout(), cfg)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.LoadLiteConfig(envFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	server, err := mcp.NewLiteServer(cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return server.Start(ctx)
}

// printStatus never creates files: missing databases are reported as such.
func printStatus(ctx context.Context, w io.Writer, cfg *config.LiteConfig) error {
	fmt.Fprintf(w, "data directory:  %s\n", cfg.DataDir)

	if _, err := os.Stat(cfg.GuidelineDBPath()); err != nil {
		fmt.Fprintf(w, "guideline index: not found (%s)\n", cfg.GuidelineDBPath())
	} else {
		store := external.NewSQLiteGuidelineStore(cfg.GuidelineDBPath())
		n, err := store.Count(ctx)
		store.Close()
		if err != nil {
			fmt.Fprintf(w, "guideline index: error: %v\n", err)
		} else {
			fmt.Fprintf(w, "guideline index: %d chunks\n", n)
		}
	}

	if _, err := os.Stat(cfg.FeedbackDBPath()); err != nil {
		fmt.Fprintf(w, "feedback store:  not found (%s)\n", cfg.FeedbackDBPath())
	} else {
		store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
		if err != nil {
			return err
		}
		n, err := store.Count(ctx)
		store.Close()
		if err != nil {
			fmt.Fprintf(w, "feedback store:  error: %v\n", err)
		} else {
			fmt.Fprintf(w, "feedback store:  %d entries\n", n)
		}
	}

	if !cfg.ExplanationEnabled {
		fmt.Fprintln(w, "narratives:      disabled (fallback template)")
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	ollama := external.NewOllamaClient(external.OllamaConfig{
		BaseURL: cfg.OllamaURL,
		Model:   cfg.OllamaModel,
		Timeout: cfg.ExplanationTimeout,
	}, config.NewLogger("error", cfg.LogFormat, io.Discard))
	if err := ollama.Ping(pingCtx); err != nil {
		fmt.Fprintf(w, "narratives:      %s unreachable (fallback template): %v\n", cfg.OllamaURL, err)
	} else {
		fmt.Fprintf(w, "narratives:      %s (%s)\n", cfg.OllamaURL, cfg.OllamaModel)
	}
	return nil
}
