package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"recycletek/internal/domain"
	"recycletek/internal/models"
	"recycletek/internal/repository"
	"recycletek/internal/testutil"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, repository.IsUniqueViolation(fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, repository.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, repository.IsUniqueViolation(&mysqldriver.MySQLError{Number: 1062}))
	assert.False(t, repository.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, repository.IsUniqueViolation(errors.New("connection reset")))
	assert.False(t, repository.IsUniqueViolation(nil))
}

func TestUserRepositoryKioskID(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "k@example.com", "")

	taken, err := repo.KioskIDTaken(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.False(t, taken)

	ok, err := repo.AssignKioskID(ctx, user.ID, "ABCD1234")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.AssignKioskID(ctx, user.ID, "ZZZZ9999")
	require.NoError(t, err)
	assert.False(t, ok, "an assigned kiosk id is never replaced")

	got, err := repo.GetByKioskID(ctx, "ABCD1234")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = repo.GetByKioskID(ctx, "ZZZZ9999")
	assert.True(t, repository.IsNotFound(err))

	other := testutil.CreateUser(t, db, "other@example.com", "")
	_, err = repo.AssignKioskID(ctx, other.ID, "ABCD1234")
	assert.True(t, repository.IsUniqueViolation(err))
}

func TestUserRepositoryGetByEmail(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewUserRepository(db)
	ctx := context.Background()
	first := testutil.CreateUser(t, db, "dup@example.com", "")
	require.NoError(t, db.Create(&models.User{ExternalID: "other-subject", Email: "dup@example.com"}).Error)

	got, err := repo.GetByEmail(ctx, "dup@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.True(t, repository.IsNotFound(err))
}

func TestWalletRepositoryGetOrCreate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewWalletRepository(db, "usd")
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "w@example.com", "")

	_, err := repo.GetByUserID(ctx, user.ID)
	require.ErrorIs(t, err, domain.ErrWalletNotFound)

	w, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.BalanceCents)

	again, err := repo.GetOrCreate(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)
}

func TestListsAreNewestFirstAndLimited(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "l@example.com", "")
	wallet := testutil.SetBalance(t, db, user.ID, 0)

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 5; i++ {
		require.NoError(t, db.Create(&models.Transaction{
			UserID: user.ID, WalletID: wallet.ID, Type: domain.TransactionTypeDeposit,
			Material: "plastic", Units: i, AmountCents: int64(i * 5), Source: domain.SourceApp,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}).Error)
	}

	txns, err := repository.NewTransactionRepository(db).ListByUser(ctx, user.ID, 3)
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, 5, txns[0].Units)
	assert.Equal(t, 3, txns[2].Units)
}

func TestListPendingOlderThan(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "p@example.com", "")
	wallet := testutil.SetBalance(t, db, user.ID, 0)

	old := &models.Withdrawal{UserID: user.ID, WalletID: wallet.ID, AmountCents: 100, Currency: "usd",
		BankToken: "b", Status: domain.WithdrawalStatusPending, CreatedAt: time.Now().Add(-time.Hour)}
	recent := &models.Withdrawal{UserID: user.ID, WalletID: wallet.ID, AmountCents: 100, Currency: "usd",
		BankToken: "b", Status: domain.WithdrawalStatusPending}
	done := &models.Withdrawal{UserID: user.ID, WalletID: wallet.ID, AmountCents: 100, Currency: "usd",
		BankToken: "b", Status: domain.WithdrawalStatusCompleted, CreatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, db.Create(old).Error)
	require.NoError(t, db.Create(recent).Error)
	require.NoError(t, db.Create(done).Error)

	stale, err := repository.NewWithdrawalRepository(db).ListPendingOlderThan(ctx, time.Now().Add(-15*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
}
