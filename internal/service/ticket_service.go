package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/psds-microservice/rma-service/internal/errs"
	"github.com/psds-microservice/rma-service/internal/model"
)

// TicketStore: хранилище записей RMA (Dependency Inversion для Processor).
type TicketStore interface {
	GetByNumber(ctx context.Context, rmaNumber string) (*model.RMATicket, error)
	UpsertProcessing(ctx context.Context, rmaNumber string) (*model.RMATicket, error)
	Update(ctx context.Context, id uuid.UUID, changes map[string]any) (*model.RMATicket, error)
	List(ctx context.Context, filter map[string]any, limit, offset int) ([]model.RMATicket, int64, error)
	DeleteByNumber(ctx context.Context, rmaNumber string) (bool, error)
}

type TicketService struct {
	db *gorm.DB
}

func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

func (s *TicketService) GetByNumber(ctx context.Context, rmaNumber string) (*model.RMATicket, error) {
	var t model.RMATicket
	if err := s.db.WithContext(ctx).Where("rma_number = ?", rmaNumber).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// UpsertProcessing создаёт запись в статусе processing или переводит в него существующую.
func (s *TicketService) UpsertProcessing(ctx context.Context, rmaNumber string) (*model.RMATicket, error) {
	t := &model.RMATicket{
		RMANumber:        rmaNumber,
		ProcessingStatus: model.ProcessingStatusProcessing,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "rma_number"}},
		DoUpdates: clause.Assignments(map[string]any{
			"processing_status": model.ProcessingStatusProcessing,
			"updated_at":        time.Now().UTC(),
		}),
	}).Create(t).Error
	if err != nil {
		return nil, err
	}
	// при конфликте в t остался сгенерированный, а не сохранённый id
	return s.GetByNumber(ctx, rmaNumber)
}

func (s *TicketService) Update(ctx context.Context, id uuid.UUID, changes map[string]any) (*model.RMATicket, error) {
	var t model.RMATicket
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&t).Updates(changes).Error; err != nil {
		return nil, err
	}
	// Updates по map не обновляет поля структуры, поэтому перечитываем
	var full model.RMATicket
	if err := s.db.WithContext(ctx).First(&full, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &full, nil
}

// List возвращает страницу записей от новых к старым и общее число записей по фильтру.
func (s *TicketService) List(ctx context.Context, filter map[string]any, limit, offset int) ([]model.RMATicket, int64, error) {
	query := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Model(&model.RMATicket{})
		for k, v := range filter {
			tx = tx.Where(k, v)
		}
		return tx
	}

	var total int64
	if err := query().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	items := []model.RMATicket{}
	tx := query().Order("created_at DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	if offset > 0 {
		tx = tx.Offset(offset)
	}
	if err := tx.Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// DeleteByNumber удаляет запись; false, если её не было.
func (s *TicketService) DeleteByNumber(ctx context.Context, rmaNumber string) (bool, error) {
	res := s.db.WithContext(ctx).Where("rma_number = ?", rmaNumber).Delete(&model.RMATicket{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Ping проверяет соединение с БД (для /ready).
func (s *TicketService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
