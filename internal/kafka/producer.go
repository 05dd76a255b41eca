// Package kafka публикует события обработки RMA (best-effort).
package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/psds-microservice/rma-service/internal/logger"
)

// События обработки RMA.
const (
	EventProcessed = "rma.processed"
	EventFailed    = "rma.failed"
	EventReindex   = "rma.reindex"
)

// TicketEventProducer: интерфейс для отправки событий RMA в Kafka (для подмены в тестах).
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event, key string, payload map[string]any)
}

// Producer пишет события RMA в топик; ключ сообщения равен номеру RMA.
type Producer struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewProducer создаёт продюсер. Если brokers или topic пустые, методы ничего не делают.
func NewProducer(brokers []string, topic string, log *slog.Logger) *Producer {
	p := &Producer{log: logger.Or(log).With("component", "kafka")}
	if len(brokers) == 0 || topic == "" {
		return p
	}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return p
}

// Enabled: настроен ли брокер.
func (p *Producer) Enabled() bool {
	return p != nil && p.writer != nil
}

func (p *Producer) ProduceTicketEvent(ctx context.Context, event, key string, payload map[string]any) {
	if !p.Enabled() {
		return
	}
	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["event"] = event
	body, err := json.Marshal(msg)
	if err != nil {
		p.log.Error("marshal rma event", "event", event, "error", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: body}); err != nil {
		p.log.Warn("write rma event", "event", event, "rma_number", key, "error", err)
	}
}

func (p *Producer) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
