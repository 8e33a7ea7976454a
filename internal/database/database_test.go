package database_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recycletek/config"
	"recycletek/internal/database"
	"recycletek/internal/repository"
)

func TestMissingRowIsNotLogged(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	db, err := database.NewDB(context.Background(), &config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:recycletek_dblog?mode=memory&cache=shared",
	}, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, database.AutoMigrate(db))

	_, err = repository.NewUserRepository(db).GetByExternalID(context.Background(), "nobody")
	require.True(t, repository.IsNotFound(err))
	assert.NotContains(t, buf.String(), "record not found")

	// real errors still reach the log
	err = db.Exec("SELECT * FROM no_such_table").Error
	require.Error(t, err)
	assert.Contains(t, buf.String(), "no_such_table")
}

func TestUnknownDriver(t *testing.T) {
	var buf bytes.Buffer
	_, err := database.NewDB(context.Background(), &config.DatabaseConfig{Driver: "oracle", DSN: "x"}, slog.New(slog.NewTextHandler(&buf, nil)))
	require.Error(t, err)
}
