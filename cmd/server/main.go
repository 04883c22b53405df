package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/karthickraja0810/clinical-decision-support/internal/api"
	"github.com/karthickraja0810/clinical-decision-support/internal/database"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "cdss-server",
		Short:        "Endocrine clinical decision support server",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: search ., ./config, /etc/clinical-decision-support)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(ingestCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var migrateFirst bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(migrateFirst)
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServer(migrateFirst bool) error {
	manager, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg := manager.GetConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrateFirst {
		if !cfg.Database.Enabled() {
			return fmt.Errorf("--migrate requires database.host to be set")
		}
		if err := withMigrationRunner(func(runner *database.MigrationRunner) error {
			return runner.Up()
		}); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	deps, err := a.apiDependencies()
	if err != nil {
		return err
	}

	server, err := api.NewServer(cfg.Server, deps, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	a.logger.WithField("port", cfg.Server.Port).Info("Starting clinical decision support server")
	if err := server.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("Server stopped")
	return nil
}
