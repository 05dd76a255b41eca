package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/psds-microservice/helpy/paths"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/psds-microservice/rma-service/internal/config"
	"github.com/psds-microservice/rma-service/internal/handler"
	"github.com/psds-microservice/rma-service/internal/logger"
	"github.com/psds-microservice/rma-service/internal/router"
	"github.com/psds-microservice/rma-service/internal/telemetry"
)

const serviceName = "rma-service"

// API: приложение режима api: HTTP-сервер поверх конвейера обработки RMA.
type API struct {
	cfg        *config.Config
	log        *slog.Logger
	httpSrv    *http.Server
	components *Components
	shutdownTr telemetry.ShutdownFunc
}

// NewAPI проверяет конфигурацию, готовит БД и собирает сервер.
func NewAPI(ctx context.Context, cfg *config.Config, log *slog.Logger) (*API, error) {
	log = logger.Or(log)
	if err := cfg.ValidateServices(); err != nil {
		return nil, err
	}
	if err := handler.RegisterValidators(); err != nil {
		return nil, err
	}

	db, err := OpenDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	comps, err := Build(ctx, cfg, db, log)
	if err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}

	shutdownTr := telemetry.Setup(ctx, serviceName, log)
	h := router.New(router.Deps{
		RMA:   handler.NewRMAHandler(comps.Processor, comps.Search, cfg.IsDevelopment()),
		Teams: handler.NewTeamsHandler(comps.Teams),
		DB:    comps.Store,
		Log:   log,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           otelhttp.NewHandler(h, serviceName),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// покрывает бюджет обработки RMA: Freshdesk, OpenAI и поиск в Teams
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	return &API{
		cfg:        cfg,
		log:        log,
		httpSrv:    httpSrv,
		components: comps,
		shutdownTr: shutdownTr,
	}, nil
}

// Run запускает HTTP-сервер и блокируется до отмены ctx.
func (a *API) Run(ctx context.Context) error {
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	a.log.Info("http server listening",
		"addr", a.httpSrv.Addr,
		"swagger", base+paths.PathSwagger,
		"health", base+paths.PathHealth,
		"ready", base+paths.PathReady,
		"api", base+"/api/v1/",
	)

	errCh := make(chan error, 1)
	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			runErr = fmt.Errorf("http: %w", err)
		}
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.components.Close(); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := a.shutdownTr(shutdownCtx); err != nil {
		a.log.Warn("telemetry shutdown failed", "error", err)
	}
	return runErr
}
