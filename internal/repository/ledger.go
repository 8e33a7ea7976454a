package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recycletek/internal/domain"
	"recycletek/internal/models"
)

// Ledger is the unit of consistency for balance mutations. Every call to Transact
// runs in one database transaction; any error rolls the whole unit back.
type Ledger struct {
	db       *gorm.DB
	currency string
}

func NewLedger(db *gorm.DB, currency string) *Ledger {
	return &Ledger{db: db, currency: currency}
}

func (l *Ledger) Transact(ctx context.Context, fn func(tx *LedgerTx) error) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&LedgerTx{tx: tx, currency: l.currency})
	})
}

// LedgerTx exposes the ledger operations that are only valid inside Transact.
type LedgerTx struct {
	tx       *gorm.DB
	currency string
}

// forUpdate adds SELECT ... FOR UPDATE. SQLite has no row locks; it holds a
// database-wide write lock for the transaction instead.
func (t *LedgerTx) forUpdate() *gorm.DB {
	if t.tx.Dialector.Name() == "sqlite" {
		return t.tx
	}
	return t.tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// GetOrCreateWallet returns the user's wallet locked for the rest of the
// transaction, inserting a zero-balance row first if none exists.
func (t *LedgerTx) GetOrCreateWallet(userID uint) (*models.Wallet, error) {
	w, err := t.LockWallet(userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}
	fresh := models.Wallet{UserID: userID, Currency: t.currency}
	err = t.tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&fresh).Error
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return t.LockWallet(userID)
}

// LockWallet locks and returns an existing wallet.
func (t *LedgerTx) LockWallet(userID uint) (*models.Wallet, error) {
	var w models.Wallet
	err := t.forUpdate().Where("user_id = ?", userID).Take(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return &w, nil
}

func (t *LedgerTx) ApplyCredit(w *models.Wallet, amountCents int64) error {
	if amountCents <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amountCents)
	}
	err := t.tx.Model(&models.Wallet{}).
		Where("id = ?", w.ID).
		Update("balance_cents", gorm.Expr("balance_cents + ?", amountCents)).Error
	if err != nil {
		return fmt.Errorf("credit wallet %d: %w", w.ID, err)
	}
	w.BalanceCents += amountCents
	return nil
}

// ApplyDebit fails with ErrInsufficientBalance when the wallet cannot cover amountCents.
// The balance guard is repeated in the UPDATE so the row can never go negative.
func (t *LedgerTx) ApplyDebit(w *models.Wallet, amountCents int64) error {
	if amountCents <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amountCents)
	}
	if w.BalanceCents < amountCents {
		return ErrInsufficientBalance
	}
	res := t.tx.Model(&models.Wallet{}).
		Where("id = ? AND balance_cents >= ?", w.ID, amountCents).
		Update("balance_cents", gorm.Expr("balance_cents - ?", amountCents))
	if res.Error != nil {
		return fmt.Errorf("debit wallet %d: %w", w.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientBalance
	}
	w.BalanceCents -= amountCents
	return nil
}

// ReverseDebit returns funds reserved by an earlier ApplyDebit.
func (t *LedgerTx) ReverseDebit(w *models.Wallet, amountCents int64) error {
	if err := t.ApplyCredit(w, amountCents); err != nil {
		return fmt.Errorf("reverse debit: %w", err)
	}
	return nil
}

func (t *LedgerTx) AppendTransaction(txn *models.Transaction) error {
	if err := t.tx.Create(txn).Error; err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (t *LedgerTx) CreateWithdrawal(w *models.Withdrawal) error {
	if w.Status == "" {
		w.Status = domain.WithdrawalStatusPending
	}
	if w.Currency == "" {
		w.Currency = t.currency
	}
	if err := t.tx.Create(w).Error; err != nil {
		return fmt.Errorf("create withdrawal: %w", err)
	}
	return nil
}

func (t *LedgerTx) GetWithdrawal(id uint) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := t.tx.Take(&w, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &w, nil
}

// Finalization describes a terminal transition for a pending withdrawal.
type Finalization struct {
	Status            string
	ProviderReference *string
	FailureReason     *string
	ProcessedAt       time.Time
}

// FinalizeWithdrawal moves a pending withdrawal to a terminal status. It reports
// false when the row had already left pending, so callers compensate at most once.
func (t *LedgerTx) FinalizeWithdrawal(id uint, f Finalization) (bool, error) {
	if f.Status != domain.WithdrawalStatusCompleted && f.Status != domain.WithdrawalStatusFailed {
		return false, fmt.Errorf("withdrawal %d: %q is not a terminal status", id, f.Status)
	}
	res := t.tx.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", id, domain.WithdrawalStatusPending).
		Updates(map[string]any{
			"status":             f.Status,
			"provider_reference": f.ProviderReference,
			"failure_reason":     f.FailureReason,
			"processed_at":       f.ProcessedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("finalize withdrawal %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
