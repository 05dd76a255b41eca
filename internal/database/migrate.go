package database

import (
	"database/sql"
	"embed"
	"fmt"
	"log"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"gorm.io/gorm"

	"github.com/psds-microservice/rma-service/internal/config"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// EnsureDatabase создаёт базу postgres, если её ещё нет.
func EnsureDatabase(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("parse database url: %w", err)
	}
	dbName := strings.TrimPrefix(u.Path, "/")
	if dbName == "" {
		return fmt.Errorf("database name is empty in url")
	}
	u.Path = "/postgres"
	db, err := sql.Open("postgres", u.String())
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping admin connection: %w", err)
	}
	var exists bool
	if err := db.QueryRow("SELECT true FROM pg_database WHERE datname = $1", dbName).Scan(&exists); err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("check database existence: %w", err)
	}
	if exists {
		return nil
	}
	if _, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName)); err != nil {
		return fmt.Errorf("create database %q: %w", dbName, err)
	}
	slog.Info("database: created", "name", dbName)
	return nil
}

// MigrateUp применяет встроенные goose-миграции для указанного драйвера.
func MigrateUp(db *gorm.DB, driver string) error {
	sqlDB, dir, err := prepareGoose(db, driver, goose.NopLogger())
	if err != nil {
		return err
	}
	before, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return fmt.Errorf("migrate: current version: %w", err)
	}
	if err := goose.Up(sqlDB, dir); err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}
	after, err := goose.GetDBVersion(sqlDB)
	if err != nil {
		return fmt.Errorf("migrate: final version: %w", err)
	}
	if before == after {
		slog.Info("migrate: no pending migrations", "version", after)
	} else {
		slog.Info("migrate: up ok", "from_version", before, "to_version", after)
	}
	return nil
}

// MigrateStatus печатает состояние миграций.
func MigrateStatus(db *gorm.DB, driver string) error {
	sqlDB, dir, err := prepareGoose(db, driver, log.New(os.Stdout, "", 0))
	if err != nil {
		return err
	}
	return goose.Status(sqlDB, dir)
}

func prepareGoose(db *gorm.DB, driver string, l goose.Logger) (*sql.DB, string, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, "", fmt.Errorf("migrate: sql db: %w", err)
	}
	dialect, dir := "postgres", "migrations/postgres"
	if driver == config.DriverSQLite {
		dialect, dir = "sqlite3", "migrations/sqlite"
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(l)
	if err := goose.SetDialect(dialect); err != nil {
		return nil, "", fmt.Errorf("migrate: dialect: %w", err)
	}
	return sqlDB, dir, nil
}
