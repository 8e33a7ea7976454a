// Package testutil holds helpers shared by DB-backed tests.
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recycletek/config"
	"recycletek/internal/database"
	"recycletek/internal/models"
)

var dbSeq atomic.Int64

// NewDB returns a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := &config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:recycletek_%d?mode=memory&cache=shared", dbSeq.Add(1)),
	}
	db, err := database.NewDB(context.Background(), cfg, slogt.New(t))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with the given email and optional kiosk id.
func CreateUser(t testing.TB, db *gorm.DB, email, kioskID string) *models.User {
	t.Helper()
	u := &models.User{ExternalID: "uid-" + email, Email: email}
	if kioskID != "" {
		u.KioskID = &kioskID
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SetBalance creates or overwrites the user's wallet balance.
func SetBalance(t testing.TB, db *gorm.DB, userID uint, cents int64) *models.Wallet {
	t.Helper()
	var w models.Wallet
	err := db.Where(models.Wallet{UserID: userID}).
		Attrs(models.Wallet{Currency: "usd"}).
		FirstOrCreate(&w).Error
	require.NoError(t, err)
	require.NoError(t, db.Model(&w).Update("balance_cents", cents).Error)
	w.BalanceCents = cents
	return &w
}
