package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/psds-microservice/rma-service/internal/classifier"
	"github.com/psds-microservice/rma-service/internal/config"
	"github.com/psds-microservice/rma-service/internal/database"
	"github.com/psds-microservice/rma-service/internal/freshdesk"
	"github.com/psds-microservice/rma-service/internal/kafka"
	"github.com/psds-microservice/rma-service/internal/lock"
	"github.com/psds-microservice/rma-service/internal/logger"
	"github.com/psds-microservice/rma-service/internal/searchindex"
	"github.com/psds-microservice/rma-service/internal/service"
	"github.com/psds-microservice/rma-service/internal/teams"
)

// Components: собранный конвейер обработки RMA; общий для режима api и CLI-команд.
type Components struct {
	DB        *gorm.DB
	Store     *service.TicketService
	Processor *service.Processor
	Teams     *teams.Service
	Search    *searchindex.Client
	Events    *kafka.Producer

	redis *goredis.Client
}

// OpenDatabase создаёт базу (postgres), применяет миграции и открывает соединение.
func OpenDatabase(cfg *config.Config, log *slog.Logger) (*gorm.DB, error) {
	log = logger.Or(log)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DB.Driver == config.DriverPostgres {
		if err := database.EnsureDatabase(cfg.DatabaseURL()); err != nil {
			// без прав на CREATE DATABASE база могла быть создана заранее
			log.Warn("ensure database failed", "error", err)
		}
	}
	db, err := database.Open(cfg.DB.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.MigrateUp(db, cfg.DB.Driver); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Build собирает все компоненты. Redis, Kafka и search-service подключаются, только если настроены.
func Build(ctx context.Context, cfg *config.Config, db *gorm.DB, log *slog.Logger) (*Components, error) {
	log = logger.Or(log)
	c := &Components{
		DB:     db,
		Store:  service.NewTicketService(db),
		Search: searchindex.NewClient(cfg.SearchServiceURL, log),
		Events: kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopicRMA, log),
		Teams: teams.NewService(teams.Config{
			GraphBaseURL:   cfg.Teams.GraphBaseURL,
			ClientID:       cfg.Teams.ClientID,
			ClientSecret:   cfg.Teams.ClientSecret,
			TenantID:       cfg.Teams.TenantID,
			TokenURL:       cfg.Teams.TokenURL,
			SearchUserID:   cfg.Teams.SearchUserID,
			Timeout:        cfg.Teams.Timeout,
			MonthsBack:     cfg.Teams.MonthsBack,
			SearchDeadline: cfg.Teams.SearchDeadline,
		}, log),
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Addr != "" {
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.redis = rdb
		locker = lock.NewRedis(rdb, cfg.LockTTL(), log)
		log.Info("processing lock: redis", "addr", cfg.Redis.Addr, "ttl", cfg.LockTTL())
	}
	if !cfg.TeamsConfigured() {
		log.Info("teams app credentials not configured, only user-token searches will run")
	}

	c.Processor = service.NewProcessor(service.Deps{
		Store: c.Store,
		Source: freshdesk.NewClient(freshdesk.Config{
			Domain:  cfg.Freshdesk.Domain,
			BaseURL: cfg.Freshdesk.BaseURL,
			APIKey:  cfg.Freshdesk.APIKey,
			Timeout: cfg.Freshdesk.Timeout,
		}),
		Classifier: classifier.NewClient(classifier.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: cfg.OpenAI.Timeout,
			RPS:     cfg.OpenAI.RPS,
		}, log),
		Search:         c.Teams,
		Locker:         locker,
		Events:         c.Events,
		Log:            log,
		VIDsFieldKey:   cfg.Freshdesk.VIDsFieldKey,
		MaxSearchTerms: cfg.Teams.MaxSearchTerms,
	})
	return c, nil
}

// Close закрывает продюсер, Redis и соединение с БД.
func (c *Components) Close() error {
	var errList []error
	if err := c.Events.Close(); err != nil {
		errList = append(errList, fmt.Errorf("kafka: %w", err))
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errList = append(errList, fmt.Errorf("redis: %w", err))
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errList = append(errList, fmt.Errorf("db: %w", err))
			}
		}
	}
	return errors.Join(errList...)
}
