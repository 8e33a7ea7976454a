package service

import (
	"context"

	"recycletek/internal/repository"
)

// Ledger runs fn as one atomic unit against the wallet tables.
type Ledger interface {
	Transact(ctx context.Context, fn func(tx *repository.LedgerTx) error) error
}

var _ Ledger = (*repository.Ledger)(nil)

// BalancePublisher is notified after a committed balance change.
type BalancePublisher interface {
	PublishBalance(userID uint, balanceCents int64, reason string)
}

type noopPublisher struct{}

func (noopPublisher) PublishBalance(uint, int64, string) {}

func publisherOrNoop(p BalancePublisher) BalancePublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
