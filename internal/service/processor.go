package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/psds-microservice/rma-service/internal/classifier"
	"github.com/psds-microservice/rma-service/internal/errs"
	"github.com/psds-microservice/rma-service/internal/extractor"
	"github.com/psds-microservice/rma-service/internal/freshdesk"
	"github.com/psds-microservice/rma-service/internal/kafka"
	"github.com/psds-microservice/rma-service/internal/lock"
	"github.com/psds-microservice/rma-service/internal/logger"
	"github.com/psds-microservice/rma-service/internal/model"
	"github.com/psds-microservice/rma-service/internal/teams"
)

const (
	defaultMaxSearchTerms = 10
	eventTimeout          = 5 * time.Second

	summaryNoDeviceIDs = "No device IDs found to search in Teams"
	errNotInFreshdesk  = "Ticket not found in Freshdesk"
)

type TicketSource interface {
	GetTicket(ctx context.Context, id string) (*freshdesk.Ticket, error)
}

type Classifier interface {
	Classify(ctx context.Context, transcript string) classifier.Result
}

type ConversationSearcher interface {
	Search(ctx context.Context, ids []string, cred teams.Credential) teams.Outcome
}

// Deps: зависимости Processor; Locker, Events и Log необязательны.
type Deps struct {
	Store      TicketStore
	Source     TicketSource
	Classifier Classifier
	Search     ConversationSearcher
	Locker     lock.Locker
	Events     kafka.TicketEventProducer
	Log        *slog.Logger

	VIDsFieldKey   string
	MaxSearchTerms int
}

// Processor обогащает RMA: тикет Freshdesk, ID устройств, причина возврата, поиск в Teams.
type Processor struct {
	store      TicketStore
	source     TicketSource
	classifier Classifier
	search     ConversationSearcher
	locker     lock.Locker
	events     kafka.TicketEventProducer
	log        *slog.Logger

	vidsFieldKey   string
	maxSearchTerms int
	now            func() time.Time
}

func NewProcessor(d Deps) *Processor {
	p := &Processor{
		store:          d.Store,
		source:         d.Source,
		classifier:     d.Classifier,
		search:         d.Search,
		locker:         d.Locker,
		events:         d.Events,
		log:            logger.Or(d.Log).With("component", "processor"),
		vidsFieldKey:   d.VIDsFieldKey,
		maxSearchTerms: d.MaxSearchTerms,
		now:            time.Now,
	}
	if p.locker == nil {
		p.locker = lock.NewLocal()
	}
	if p.vidsFieldKey == "" {
		p.vidsFieldKey = "cf_vids_associated"
	}
	if p.maxSearchTerms <= 0 {
		p.maxSearchTerms = defaultMaxSearchTerms
	}
	return p
}

// Process обрабатывает RMA. Уже завершённая запись возвращается без повторной обработки.
// При ошибке запись переводится в failed, ошибка возвращается вызывающему.
func (p *Processor) Process(ctx context.Context, rmaNumber, userToken string) (*model.RMATicket, error) {
	log := p.log.With("rma_number", rmaNumber)
	start := time.Now()

	if done, err := p.completed(ctx, rmaNumber); err != nil || done != nil {
		if done != nil {
			log.Info("rma already processed")
		}
		return done, err
	}

	unlock, err := p.locker.Lock(ctx, rmaNumber)
	if err != nil {
		return nil, fmt.Errorf("lock rma %s: %w", rmaNumber, err)
	}
	defer unlock()

	// пока ждали блокировку, запись мог завершить другой запрос
	if done, err := p.completed(ctx, rmaNumber); err != nil || done != nil {
		return done, err
	}

	log.Info("rma processing started", "user_token", userToken != "")
	t, err := p.run(ctx, rmaNumber, userToken, log)
	if err != nil {
		log.Error("rma processing failed", "error", err)
		if failed := p.markFailed(ctx, rmaNumber, err); failed != nil {
			p.publish(kafka.EventFailed, failed)
		}
		return nil, err
	}

	log.Info("rma processed", "status", deref(t.Status), "duration", time.Since(start))
	p.publish(kafka.EventProcessed, t)
	return t, nil
}

func (p *Processor) completed(ctx context.Context, rmaNumber string) (*model.RMATicket, error) {
	t, err := p.store.GetByNumber(ctx, rmaNumber)
	if err != nil {
		if errors.Is(err, errs.ErrTicketNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if t.IsCompleted() {
		return t, nil
	}
	return nil, nil
}

func (p *Processor) run(ctx context.Context, rmaNumber, userToken string, log *slog.Logger) (*model.RMATicket, error) {
	placeholder, err := p.store.UpsertProcessing(ctx, rmaNumber)
	if err != nil {
		return nil, fmt.Errorf("create processing record: %w", err)
	}

	src, err := p.source.GetTicket(ctx, rmaNumber)
	if err != nil {
		return nil, err
	}
	if src == nil {
		log.Info("rma not found in freshdesk")
		now := p.now().UTC()
		return p.store.Update(ctx, placeholder.ID, map[string]any{
			"processing_status": model.ProcessingStatusCompleted,
			"status":            model.StatusNotFound,
			"error_message":     errNotInFreshdesk,
			"ticket_date":       now,
		})
	}

	ids := extractor.Extract(src.ExtractionInput(p.vidsFieldKey))
	log.Info("device ids extracted", "count", len(ids))

	reason := p.classifier.Classify(ctx, freshdesk.BuildTranscript(src))
	log.Info("classification done", "primary_reason", reason.PrimaryReason)

	results, summary, err := p.searchConversations(ctx, ids, userToken)
	if err != nil {
		return nil, err
	}

	var ticketDate any
	if !src.CreatedAt.IsZero() {
		ticketDate = src.CreatedAt.UTC()
	}
	var deviceIDs any
	if len(ids) > 0 {
		deviceIDs = strings.Join(ids, ", ")
	}
	name, email := src.RequesterName(), src.RequesterEmail()
	statusCode := src.Status

	return p.store.Update(ctx, placeholder.ID, map[string]any{
		"processing_status":           model.ProcessingStatusCompleted,
		"ticket_date":                 ticketDate,
		"customer_name":               nullable(name),
		"customer_email":              nullable(email),
		"customer_information":        model.CustomerInformation(name, email),
		"status":                      freshdesk.StatusLabel(src.Status),
		"source_status_code":          &statusCode,
		"device_ids":                  deviceIDs,
		"primary_reason":              nullable(reason.PrimaryReason),
		"specific_issue":              nullable(reason.SpecificIssue),
		"customer_impact":             nullable(reason.CustomerImpact),
		"timeline":                    nullable(reason.Timeline),
		"additional_notes":            nullable(reason.AdditionalNotes),
		"raw_ticket_data":             datatypes.JSON(src.Raw),
		"conversation_search_results": results,
		"conversation_search_summary": summary,
		"error_message":               nil,
	})
}

// searchConversations ищет не больше maxSearchTerms ID. Без токена пользователя
// используются учётные данные приложения.
func (p *Processor) searchConversations(ctx context.Context, ids []string, userToken string) (datatypes.JSON, *string, error) {
	if len(ids) == 0 {
		s := summaryNoDeviceIDs
		return nil, &s, nil
	}
	terms := ids[:min(len(ids), p.maxSearchTerms)]

	var cred teams.Credential = teams.ServiceCredential{}
	if userToken != "" {
		cred = teams.UserCredential{Token: userToken}
	}
	out := p.search.Search(ctx, terms, cred)
	if out.Results == nil {
		return nil, out.Summary, nil
	}
	raw, err := json.Marshal(out.Results)
	if err != nil {
		return nil, nil, fmt.Errorf("encode search results: %w", err)
	}
	return datatypes.JSON(raw), out.Summary, nil
}

// markFailed пишет ошибку в запись, даже если контекст запроса уже отменён.
func (p *Processor) markFailed(ctx context.Context, rmaNumber string, cause error) *model.RMATicket {
	ctx = context.WithoutCancel(ctx)
	t, err := p.store.GetByNumber(ctx, rmaNumber)
	if err != nil {
		if !errors.Is(err, errs.ErrTicketNotFound) {
			p.log.Error("load rma for failure", "rma_number", rmaNumber, "error", err)
		}
		return nil
	}
	failed, err := p.store.Update(ctx, t.ID, map[string]any{
		"processing_status": model.ProcessingStatusFailed,
		"error_message":     cause.Error(),
	})
	if err != nil {
		p.log.Error("mark rma failed", "rma_number", rmaNumber, "error", err)
		return nil
	}
	return failed
}

// publish отправляет событие в фоне: событие должно уйти даже после ответа клиенту.
func (p *Processor) publish(event string, t *model.RMATicket) {
	if p.events == nil || t == nil {
		return
	}
	payload := EventPayload(t)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		p.events.ProduceTicketEvent(ctx, event, t.RMANumber, payload)
	}()
}

func (p *Processor) List(ctx context.Context, limit, offset int) ([]model.RMATicket, int64, error) {
	return p.store.List(ctx, nil, limit, offset)
}

// GetByNumber возвращает errs.ErrTicketNotFound, если записи нет.
func (p *Processor) GetByNumber(ctx context.Context, rmaNumber string) (*model.RMATicket, error) {
	return p.store.GetByNumber(ctx, rmaNumber)
}

// DeleteByNumber идемпотентен: отсутствие записи не ошибка, возвращается false.
func (p *Processor) DeleteByNumber(ctx context.Context, rmaNumber string) (bool, error) {
	return p.store.DeleteByNumber(ctx, rmaNumber)
}

// EventPayload: общее тело события Kafka и документа поискового индекса.
func EventPayload(t *model.RMATicket) map[string]any {
	return map[string]any{
		"id":                t.ID.String(),
		"rma_number":        t.RMANumber,
		"processing_status": string(t.ProcessingStatus),
		"status":            deref(t.Status),
		"customer":          deref(t.CustomerInformation),
		"device_ids":        deref(t.DeviceIDs),
		"primary_reason":    deref(t.PrimaryReason),
		"specific_issue":    deref(t.SpecificIssue),
		"search_summary":    deref(t.ConversationSearchSummary),
		"error_message":     deref(t.ErrorMessage),
		"updated_at":        t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
