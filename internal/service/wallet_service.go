package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"recycletek/config"
	"recycletek/internal/models"
	"recycletek/internal/repository"
)

// WalletService serves the read side of the ledger.
type WalletService struct {
	wallets      *repository.WalletRepository
	transactions *repository.TransactionRepository
	withdrawals  *repository.WithdrawalRepository
	cfg          config.LedgerConfig
	log          *slog.Logger
}

func NewWalletService(wallets *repository.WalletRepository, transactions *repository.TransactionRepository, withdrawals *repository.WithdrawalRepository, cfg config.LedgerConfig, log *slog.Logger) *WalletService {
	return &WalletService{
		wallets:      wallets,
		transactions: transactions,
		withdrawals:  withdrawals,
		cfg:          cfg,
		log:          log,
	}
}

// Balance returns the user's wallet, creating an empty one on first access.
func (s *WalletService) Balance(ctx context.Context, user *models.User) (*models.Wallet, error) {
	w, err := s.wallets.GetOrCreate(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// Wallet returns the user's wallet without creating it.
func (s *WalletService) Wallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	return s.wallets.GetByUserID(ctx, userID)
}

// Transactions lists deposits newest first. limit is clamped to the configured range.
func (s *WalletService) Transactions(ctx context.Context, user *models.User, limit int) ([]models.Transaction, error) {
	limit = s.cfg.TransactionsLimit.Clamp(limit)
	txns, err := s.transactions.ListByUser(ctx, user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

func (s *WalletService) Withdrawals(ctx context.Context, user *models.User, limit int) ([]models.Withdrawal, error) {
	limit = s.cfg.WithdrawalsLimit.Clamp(limit)
	wds, err := s.withdrawals.ListByUser(ctx, user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return wds, nil
}

// ReportStalePending logs withdrawals that have stayed pending since before cutoff.
// They need reconciliation against the provider; nothing is changed here.
func (s *WalletService) ReportStalePending(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.withdrawals.ListPendingOlderThan(ctx, cutoff, 100)
	if err != nil {
		return 0, fmt.Errorf("list stale withdrawals: %w", err)
	}
	for _, wd := range stale {
		s.log.Error("withdrawal stuck in pending",
			"withdrawal_id", wd.ID,
			"user_id", wd.UserID,
			"amount_cents", wd.AmountCents,
			"created_at", wd.CreatedAt,
		)
	}
	return len(stale), nil
}
