package ws

import (
	"log/slog"

	"recycletek/internal/domain"
)

// BalanceEvent is pushed to every open connection of a user after a committed balance change.
type BalanceEvent struct {
	Type           string  `json:"type"`
	Reason         string  `json:"reason"`
	BalanceCents   int64   `json:"balance_cents"`
	BalanceDollars float64 `json:"balance_dollars"`
}

type WalletHub struct {
	*Hub
	log *slog.Logger
}

func NewWalletHub(log *slog.Logger) *WalletHub {
	return &WalletHub{Hub: NewHub(), log: log}
}

func (h *WalletHub) PublishBalance(userID uint, balanceCents int64, reason string) {
	n := h.BroadcastToUser(userID, balanceEvent(balanceCents, reason))
	if n > 0 {
		h.log.Debug("balance pushed", "user_id", userID, "connections", n, "reason", reason)
	}
}

func balanceEvent(balanceCents int64, reason string) BalanceEvent {
	return BalanceEvent{
		Type:           "balance",
		Reason:         reason,
		BalanceCents:   balanceCents,
		BalanceDollars: domain.Dollars(balanceCents),
	}
}
