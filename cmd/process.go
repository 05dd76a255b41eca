package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/rma-service/internal/application"
	"github.com/psds-microservice/rma-service/internal/model"
)

var processUserToken string

var processCmd = &cobra.Command{
	Use:   "process <rma-number>",
	Short: "Process one RMA ticket and print the stored record as JSON",
	Args:  cobra.MatchAll(cobra.ExactArgs(1), rmaNumberArg),
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processUserToken, "user-token", "", "delegated Microsoft Graph token for Teams search")
}

func rmaNumberArg(cmd *cobra.Command, args []string) error {
	if !model.IsValidRMANumber(args[0]) {
		return fmt.Errorf("invalid rma number %q: digits only", args[0])
	}
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServices(); err != nil {
		return err
	}
	ctx := cmd.Context()
	db, err := application.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	comps, err := application.Build(ctx, cfg, db, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	t, err := comps.Processor.Process(ctx, args[0], processUserToken)
	if err != nil {
		return fmt.Errorf("process rma %s: %w", args[0], err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}
