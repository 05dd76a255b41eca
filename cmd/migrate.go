package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/rma-service/internal/application"
	"github.com/psds-microservice/rma-service/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE:  runMigrateUp,
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print migration status",
	RunE:  runMigrateStatus,
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	db, err := application.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	log.Info("migrate up: ok")
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	db, err := database.Open(cfg.DB.Driver, cfg.DSN())
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return database.MigrateStatus(db, cfg.DB.Driver)
}
