package service_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recycletek/config"
	"recycletek/internal/database"
	"recycletek/internal/domain"
	"recycletek/internal/models"
	"recycletek/internal/repository"
	"recycletek/internal/service"
	"recycletek/pkg/payout"
)

// Runs the overdraw property against a real MySQL or Postgres, where row locks
// (not a single connection) serialize the debits. Example:
//
//	RUN_DB_INTEGRATION=true DATABASE_DRIVER=postgres DATABASE_URL=postgres://... go test ./internal/service/
func TestIntegrationConcurrentWithdrawals(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION") != "true" {
		t.Skip("set RUN_DB_INTEGRATION=true to run against a live database")
	}
	cfg := config.Defaults()
	cfg.Database.Driver = os.Getenv("DATABASE_DRIVER")
	cfg.Database.DSN = os.Getenv("DATABASE_URL")
	cfg.Database.ConnectTimeout = 10 * time.Second
	require.NotEmpty(t, cfg.Database.DSN, "DATABASE_URL is required")

	log := slogt.New(t)
	ctx := context.Background()
	db, err := database.NewDB(ctx, &cfg.Database, log)
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	email := fmt.Sprintf("it-%d@example.com", time.Now().UnixNano())
	user := &models.User{ExternalID: "it-" + email, Email: email}
	require.NoError(t, db.Create(user).Error)
	t.Cleanup(func() {
		db.Where("user_id = ?", user.ID).Delete(&models.Withdrawal{})
		db.Where("user_id = ?", user.ID).Delete(&models.Transaction{})
		db.Where("user_id = ?", user.ID).Delete(&models.Wallet{})
		db.Delete(user)
	})
	require.NoError(t, db.Create(&models.Wallet{UserID: user.ID, BalanceCents: 1000, Currency: "usd"}).Error)

	ledger := repository.NewLedger(db, "usd")
	svc := service.NewWithdrawalService(ledger, payout.StubProvider{}, cfg.Ledger, cfg.Payout, nil, log)

	const n = 25
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Withdraw(ctx, user, service.WithdrawRequest{AmountCents: 100, BankToken: "ba_it"})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.True(t, errors.Is(err, domain.ErrInsufficientBalance), "unexpected error: %v", err)
	}
	assert.Equal(t, 10, ok)

	var w models.Wallet
	require.NoError(t, db.Where("user_id = ?", user.ID).Take(&w).Error)
	assert.Equal(t, int64(0), w.BalanceCents)
}
