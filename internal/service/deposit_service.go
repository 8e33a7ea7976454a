package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"recycletek/config"
	"recycletek/internal/domain"
	"recycletek/internal/models"
	"recycletek/internal/repository"
)

type DepositRequest struct {
	Material string
	Units    int
	Source   string // domain.SourceApp or domain.SourceKiosk
}

type DepositResult struct {
	Transaction *models.Transaction
	Wallet      *models.Wallet
}

type DepositService struct {
	ledger    Ledger
	rates     map[string]int64
	maxUnits  int
	publisher BalancePublisher
	log       *slog.Logger

	invalidMaterial *domain.Error
	unitsExceeded   *domain.Error
}

func NewDepositService(ledger Ledger, cfg config.LedgerConfig, publisher BalancePublisher, log *slog.Logger) *DepositService {
	rates := make(map[string]int64, len(cfg.MaterialRates))
	for k, v := range cfg.MaterialRates {
		rates[k] = v
	}
	return &DepositService{
		ledger:          ledger,
		rates:           rates,
		maxUnits:        cfg.MaxUnitsPerDeposit,
		publisher:       publisherOrNoop(publisher),
		log:             log,
		invalidMaterial: domain.ErrInvalidMaterial.WithMessage(invalidMaterialMessage(rates)),
		unitsExceeded:   domain.ErrUnitsExceeded.WithMessage(fmt.Sprintf("Maximum %d units per deposit", cfg.MaxUnitsPerDeposit)),
	}
}

// Rate returns the credit per unit for material in cents.
func (s *DepositService) Rate(material string) (int64, bool) {
	r, ok := s.rates[material]
	return r, ok
}

// Deposit validates the submission and credits the wallet. The wallet row, the
// transaction row and the credit commit together or not at all.
func (s *DepositService) Deposit(ctx context.Context, user *models.User, req DepositRequest) (*DepositResult, error) {
	rate, ok := s.rates[req.Material]
	if !ok {
		return nil, s.invalidMaterial
	}
	if req.Units <= 0 {
		return nil, domain.ErrInvalidUnits
	}
	if req.Units > s.maxUnits {
		return nil, s.unitsExceeded
	}
	source := req.Source
	if source == "" {
		source = domain.SourceApp
	}
	amount := int64(req.Units) * rate

	var result DepositResult
	err := s.ledger.Transact(ctx, func(tx *repository.LedgerTx) error {
		w, err := tx.GetOrCreateWallet(user.ID)
		if err != nil {
			return err
		}
		txn := &models.Transaction{
			UserID:      user.ID,
			WalletID:    w.ID,
			Type:        domain.TransactionTypeDeposit,
			Material:    req.Material,
			Units:       req.Units,
			AmountCents: amount,
			Source:      source,
		}
		if err := tx.AppendTransaction(txn); err != nil {
			return err
		}
		if err := tx.ApplyCredit(w, amount); err != nil {
			return err
		}
		result = DepositResult{Transaction: txn, Wallet: w}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("deposit: %w", err)
	}

	s.log.Info("deposit credited",
		"user_id", user.ID,
		"transaction_id", result.Transaction.ID,
		"material", req.Material,
		"units", req.Units,
		"amount_cents", amount,
		"source", source,
		"balance_cents", result.Wallet.BalanceCents,
	)
	s.publisher.PublishBalance(user.ID, result.Wallet.BalanceCents, "deposit")
	return &result, nil
}

// invalidMaterialMessage lists materials cheapest first: `Must be "plastic" or "aluminum"`.
func invalidMaterialMessage(rates map[string]int64) string {
	names := make([]string, 0, len(rates))
	for k := range rates {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		if rates[names[i]] != rates[names[j]] {
			return rates[names[i]] < rates[names[j]]
		}
		return names[i] < names[j]
	})
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	var list string
	switch len(quoted) {
	case 0:
		list = "a configured material"
	case 1:
		list = quoted[0]
	default:
		list = strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
	}
	return "Invalid material. Must be " + list
}
