package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"recycletek/config"
	"recycletek/internal/domain"
	"recycletek/internal/models"
	"recycletek/internal/repository"
	"recycletek/pkg/payout"
)

type WithdrawRequest struct {
	AmountCents int64
	BankToken   string
}

type WithdrawResult struct {
	Withdrawal *models.Withdrawal
	Wallet     *models.Wallet
}

// WithdrawalService reserves funds, pays out, and reconciles the ledger with the outcome.
//
// The debit and the pending withdrawal commit before the provider is contacted, so
// overlapping withdrawals cannot spend the same funds. The provider call runs outside
// any lock; its outcome is applied in a second transaction that either completes the
// withdrawal or marks it failed and returns the funds.
type WithdrawalService struct {
	ledger    Ledger
	provider  payout.Provider
	minCents  int64
	currency  string
	timeout   time.Duration
	publisher BalancePublisher
	log       *slog.Logger
	now       func() time.Time

	belowMinimum *domain.Error
}

func NewWithdrawalService(ledger Ledger, provider payout.Provider, ledgerCfg config.LedgerConfig, payoutCfg config.PayoutConfig, publisher BalancePublisher, log *slog.Logger) *WithdrawalService {
	return &WithdrawalService{
		ledger:       ledger,
		provider:     provider,
		minCents:     ledgerCfg.MinWithdrawalCents,
		currency:     ledgerCfg.Currency,
		timeout:      payoutCfg.Timeout,
		publisher:    publisherOrNoop(publisher),
		log:          log,
		now:          time.Now,
		belowMinimum: domain.ErrBelowMinimum.WithMessage("Minimum withdrawal is " + domain.FormatDollars(ledgerCfg.MinWithdrawalCents)),
	}
}

func (s *WithdrawalService) Withdraw(ctx context.Context, user *models.User, req WithdrawRequest) (*WithdrawResult, error) {
	if req.AmountCents <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if req.AmountCents < s.minCents {
		return nil, s.belowMinimum
	}
	token := strings.TrimSpace(req.BankToken)
	if token == "" {
		return nil, domain.ErrMissingToken
	}

	wd, err := s.reserve(ctx, user, req.AmountCents, token)
	if err != nil {
		return nil, err
	}

	// the outcome must be recorded even if the caller goes away
	bg := context.WithoutCancel(ctx)

	res, perr := s.callProvider(bg, wd)
	if perr == nil {
		out, err := s.complete(bg, wd, res)
		if err != nil {
			s.log.Error("payout succeeded but completion was not recorded; withdrawal left pending",
				"withdrawal_id", wd.ID, "reference", res.ReferenceID, "error", err)
			return nil, fmt.Errorf("complete withdrawal %d: %w", wd.ID, err)
		}
		return out, nil
	}

	s.log.Warn("payout failed, compensating", "withdrawal_id", wd.ID, "user_id", user.ID, "error", perr)
	if err := s.fail(bg, wd.ID, perr.Error()); err != nil {
		s.log.Error("compensation was not recorded; withdrawal left pending",
			"withdrawal_id", wd.ID, "error", err)
		return nil, fmt.Errorf("compensate withdrawal %d: %w", wd.ID, err)
	}
	return nil, domain.ErrPayoutFailed
}

// reserve debits the wallet and records the pending withdrawal in one transaction.
func (s *WithdrawalService) reserve(ctx context.Context, user *models.User, amount int64, token string) (*models.Withdrawal, error) {
	var wd *models.Withdrawal
	var balance int64
	err := s.ledger.Transact(ctx, func(tx *repository.LedgerTx) error {
		w, err := tx.LockWallet(user.ID)
		if err != nil {
			return err
		}
		if err := tx.ApplyDebit(w, amount); err != nil {
			return err
		}
		wd = &models.Withdrawal{
			UserID:      user.ID,
			WalletID:    w.ID,
			AmountCents: amount,
			Currency:    s.currency,
			BankToken:   token,
			Status:      domain.WithdrawalStatusPending,
		}
		if err := tx.CreateWithdrawal(wd); err != nil {
			return err
		}
		balance = w.BalanceCents
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reserve withdrawal: %w", err)
	}
	s.log.Info("withdrawal reserved", "withdrawal_id", wd.ID, "user_id", user.ID, "amount_cents", amount, "balance_cents", balance)
	s.publisher.PublishBalance(user.ID, balance, "withdrawal")
	return wd, nil
}

func (s *WithdrawalService) callProvider(ctx context.Context, wd *models.Withdrawal) (res *payout.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("payout provider panic: %v", r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	res, err = s.provider.Payout(ctx, payout.Request{
		IdempotencyKey:   wd.IdempotencyKey(),
		DestinationToken: wd.BankToken,
		AmountCents:      wd.AmountCents,
		Currency:         wd.Currency,
		Description:      fmt.Sprintf("Recycling wallet withdrawal %d", wd.ID),
	})
	if err != nil {
		return nil, err
	}
	if res == nil || res.ReferenceID == "" {
		return nil, errors.New("payout provider returned no reference")
	}
	return res, nil
}

func (s *WithdrawalService) complete(ctx context.Context, wd *models.Withdrawal, res *payout.Result) (*WithdrawResult, error) {
	ref := res.ReferenceID
	var out WithdrawResult
	err := s.ledger.Transact(ctx, func(tx *repository.LedgerTx) error {
		won, err := tx.FinalizeWithdrawal(wd.ID, repository.Finalization{
			Status:            domain.WithdrawalStatusCompleted,
			ProviderReference: &ref,
			ProcessedAt:       s.now(),
		})
		if err != nil {
			return err
		}
		if !won {
			// a webhook settled it first; report what is stored
			s.log.Warn("withdrawal already settled before provider response", "withdrawal_id", wd.ID, "reference", ref)
		}
		stored, err := tx.GetWithdrawal(wd.ID)
		if err != nil {
			return err
		}
		w, err := tx.LockWallet(wd.UserID)
		if err != nil {
			return err
		}
		out = WithdrawResult{Withdrawal: stored, Wallet: w}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Withdrawal.Status == domain.WithdrawalStatusFailed {
		return nil, domain.ErrPayoutFailed
	}
	s.log.Info("withdrawal completed", "withdrawal_id", wd.ID, "reference", ref)
	s.publisher.PublishBalance(wd.UserID, out.Wallet.BalanceCents, "withdrawal_completed")
	return &out, nil
}

// maxFailureReason is the width of withdrawals.failure_reason.
const maxFailureReason = 255

// truncateReason cuts s to at most n bytes without splitting a rune, and
// replaces any invalid bytes the provider sent.
func truncateReason(s string, n int) string {
	s = strings.ToValidUTF8(s, "?")
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// fail marks the withdrawal failed and returns its funds. The reversal happens only
// for the call that performed the pending -> failed transition.
func (s *WithdrawalService) fail(ctx context.Context, id uint, reason string) error {
	reason = truncateReason(reason, maxFailureReason)
	var userID uint
	var balance int64
	var reversed bool
	err := s.ledger.Transact(ctx, func(tx *repository.LedgerTx) error {
		won, err := tx.FinalizeWithdrawal(id, repository.Finalization{
			Status:        domain.WithdrawalStatusFailed,
			FailureReason: &reason,
			ProcessedAt:   s.now(),
		})
		if err != nil || !won {
			return err
		}
		wd, err := tx.GetWithdrawal(id)
		if err != nil {
			return err
		}
		w, err := tx.LockWallet(wd.UserID)
		if err != nil {
			return err
		}
		if err := tx.ReverseDebit(w, wd.AmountCents); err != nil {
			return err
		}
		userID, balance, reversed = wd.UserID, w.BalanceCents, true
		return nil
	})
	if err != nil {
		return err
	}
	if reversed {
		s.log.Info("withdrawal failed, funds returned", "withdrawal_id", id, "balance_cents", balance)
		s.publisher.PublishBalance(userID, balance, "withdrawal_reversed")
	}
	return nil
}

// Settlement is a provider-reported final state for a withdrawal.
type Settlement struct {
	WithdrawalID uint
	Succeeded    bool
	Reference    string
	Reason       string
}

// Settle applies an asynchronous provider notification. Only pending withdrawals
// change; anything already terminal is returned as stored.
func (s *WithdrawalService) Settle(ctx context.Context, st Settlement) (*models.Withdrawal, bool, error) {
	var changed bool
	if st.Succeeded {
		ref := st.Reference
		err := s.ledger.Transact(ctx, func(tx *repository.LedgerTx) error {
			if _, err := tx.GetWithdrawal(st.WithdrawalID); err != nil {
				return err
			}
			var err error
			changed, err = tx.FinalizeWithdrawal(st.WithdrawalID, repository.Finalization{
				Status:            domain.WithdrawalStatusCompleted,
				ProviderReference: &ref,
				ProcessedAt:       s.now(),
			})
			return err
		})
		if err != nil {
			return nil, false, settleErr(err)
		}
	} else {
		reason := st.Reason
		if reason == "" {
			reason = "reported failed by provider"
		}
		before, err := s.get(ctx, st.WithdrawalID)
		if err != nil {
			return nil, false, err
		}
		if err := s.fail(ctx, st.WithdrawalID, reason); err != nil {
			return nil, false, err
		}
		changed = before.Status == domain.WithdrawalStatusPending
	}
	wd, err := s.get(ctx, st.WithdrawalID)
	if err != nil {
		return nil, false, err
	}
	changed = changed && wd.Status != domain.WithdrawalStatusPending
	if !st.Succeeded && wd.Status == domain.WithdrawalStatusCompleted {
		s.log.Error("provider reported failure for a completed withdrawal; reconcile manually",
			"withdrawal_id", wd.ID, "amount_cents", wd.AmountCents, "reason", st.Reason)
	}
	s.log.Info("withdrawal settlement applied", "withdrawal_id", wd.ID, "status", wd.Status, "changed", changed)
	return wd, changed, nil
}

func (s *WithdrawalService) get(ctx context.Context, id uint) (*models.Withdrawal, error) {
	var wd *models.Withdrawal
	err := s.ledger.Transact(ctx, func(tx *repository.LedgerTx) error {
		var err error
		wd, err = tx.GetWithdrawal(id)
		return err
	})
	if err != nil {
		return nil, settleErr(err)
	}
	return wd, nil
}

func settleErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrWithdrawalNotFound
	}
	return err
}
