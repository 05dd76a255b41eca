package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/psds-microservice/rma-service/internal/application"
	"github.com/psds-microservice/rma-service/internal/kafka"
	"github.com/psds-microservice/rma-service/internal/model"
	"github.com/psds-microservice/rma-service/internal/service"
)

const reindexBatch = 100

var reindexSearchCmd = &cobra.Command{
	Use:   "reindex-search",
	Short: "Reindex completed RMA records into search. Prefers Kafka; falls back to HTTP if SEARCH_SERVICE_URL set.",
	RunE:  runReindexSearch,
}

func runReindexSearch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	db, err := application.OpenDatabase(cfg, log)
	if err != nil {
		return err
	}
	comps, err := application.Build(cmd.Context(), cfg, db, log)
	if err != nil {
		return err
	}
	defer comps.Close()

	var send func(ctx context.Context, t *model.RMATicket) error
	switch {
	case comps.Events.Enabled():
		log.Info("reindex-search: using Kafka")
		send = func(ctx context.Context, t *model.RMATicket) error {
			comps.Events.ProduceTicketEvent(ctx, kafka.EventReindex, t.RMANumber, service.EventPayload(t))
			return nil
		}
	case comps.Search.Enabled():
		log.Info("reindex-search: using HTTP")
		send = func(ctx context.Context, t *model.RMATicket) error {
			return comps.Search.Index(ctx, t.RMANumber, service.EventPayload(t))
		}
	default:
		log.Warn("reindex-search: neither KAFKA_BROKERS nor SEARCH_SERVICE_URL set, nothing to do")
		return nil
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()

	filter := map[string]any{"processing_status = ?": model.ProcessingStatusCompleted}
	var sent, failed int
	for offset := 0; ; offset += reindexBatch {
		tickets, total, err := comps.Store.List(ctx, filter, reindexBatch, offset)
		if err != nil {
			return err
		}
		for i := range tickets {
			if err := send(ctx, &tickets[i]); err != nil {
				failed++
				log.Warn("reindex-search: index failed", "rma_number", tickets[i].RMANumber, "error", err)
				continue
			}
			sent++
		}
		log.Info("reindex-search: progress", "sent", sent, "failed", failed, "total", total)
		if len(tickets) < reindexBatch {
			break
		}
	}
	log.Info("reindex-search: done", "sent", sent, "failed", failed)
	return nil
}
