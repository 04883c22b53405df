package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karthickraja0810/clinical-decision-support/internal/config"
	"github.com/karthickraja0810/clinical-decision-support/internal/database"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationRunner(func(runner *database.MigrationRunner) error {
				return runner.Up()
			})
		},
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationRunner(func(runner *database.MigrationRunner) error {
				return runner.Down()
			})
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show the current migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrationRunner(func(runner *database.MigrationRunner) error {
				version, dirty, err := runner.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version: %d dirty: %t\n", version, dirty)
				return nil
			})
		},
	}

	cmd.AddCommand(upCmd, downCmd, versionCmd)
	return cmd
}

func withMigrationRunner(fn func(*database.MigrationRunner) error) error {
	manager, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	cfg := manager.GetConfig()
	if !cfg.Database.Enabled() {
		return fmt.Errorf("database.host is not configured")
	}

	logger := config.NewLogger(cfg.Logging.Level, cfg.Logging.Format, nil)
	runner, err := database.NewMigrationRunner(database.ConfigFromDomain(cfg.Database).URL(), cfg.Database.MigrationsPath, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	return fn(runner)
}
