package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/rma-service/internal/application"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run HTTP API server",
	RunE:  runAPI,
}

func runAPI(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := application.NewAPI(ctx, cfg, log)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
