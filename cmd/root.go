package cmd

import (
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/psds-microservice/rma-service/internal/config"
	"github.com/psds-microservice/rma-service/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:          "rma-service",
	Short:        "RMA enrichment API: helpdesk ticket, device IDs, return reason, Teams mentions",
	RunE:         runAPI,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(apiCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(reindexSearchCmd)
}

// setup читает .env и окружение и настраивает логгер.
func setup() (*config.Config, *slog.Logger, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")
	_ = godotenv.Load("../../.env") // корень репозитория при запуске из bin/
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	return cfg, log, nil
}
