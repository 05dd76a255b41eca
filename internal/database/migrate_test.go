package database

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/rma-service/internal/config"
	"github.com/psds-microservice/rma-service/internal/model"
)

func TestMigrateUp_SQLite(t *testing.T) {
	db, err := Open(config.DriverSQLite, ":memory:")
	require.NoError(t, err)

	require.NoError(t, MigrateUp(db, config.DriverSQLite))
	assert.True(t, db.Migrator().HasTable(&model.RMATicket{}))
	assert.True(t, db.Migrator().HasIndex(&model.RMATicket{}, "idx_rma_tickets_rma_number"))

	// повторный запуск ничего не меняет
	require.NoError(t, MigrateUp(db, config.DriverSQLite))

	tk := &model.RMATicket{RMANumber: "5001", ProcessingStatus: model.ProcessingStatusProcessing}
	require.NoError(t, db.Create(tk).Error)

	dup := &model.RMATicket{RMANumber: "5001", ProcessingStatus: model.ProcessingStatusProcessing}
	assert.Error(t, db.Create(dup).Error, "rma_number is unique")
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("oracle", "dsn")
	assert.Error(t, err)
}

// Итоговый тип текстовых колонок postgres после всех миграций: длинные ответы
// классификатора и "Имя <email>" не должны упираться в varchar.
func TestPostgresMigrations_FreeTextColumns(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations/postgres")
	require.NoError(t, err)

	final := map[string]string{}
	create := regexp.MustCompile(`(?m)^\s+(\w+)\s+([A-Z]+(?:\(\d+\))?)`)
	alter := regexp.MustCompile(`ALTER COLUMN (\w+) TYPE ([A-Z]+(?:\(\d+\))?)`)
	for _, e := range entries {
		data, err := migrationsFS.ReadFile("migrations/postgres/" + e.Name())
		require.NoError(t, err)
		up, _, _ := strings.Cut(string(data), "-- +goose Down")
		for _, m := range create.FindAllStringSubmatch(up, -1) {
			final[m[1]] = m[2]
		}
		for _, m := range alter.FindAllStringSubmatch(up, -1) {
			final[m[1]] = m[2]
		}
	}

	for _, col := range []string{
		"customer_name", "customer_email", "customer_information",
		"primary_reason", "specific_issue", "customer_impact", "timeline", "additional_notes",
	} {
		assert.Equal(t, "TEXT", final[col], col)
	}
}
