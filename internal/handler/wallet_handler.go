package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"recycletek/internal/domain"
	"recycletek/internal/service"
)

type WalletHandler struct {
	wallets *service.WalletService
	log     *slog.Logger
}

func NewWalletHandler(wallets *service.WalletService, log *slog.Logger) *WalletHandler {
	return &WalletHandler{wallets: wallets, log: log}
}

// GetBalance returns the caller's balance, creating an empty wallet on first access.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	user, ok := requireUser(c, h.log)
	if !ok {
		return
	}
	w, err := h.wallets.Balance(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              w.ID,
		"balance_cents":   w.BalanceCents,
		"balance_dollars": domain.Dollars(w.BalanceCents),
		"currency":        w.Currency,
		"updated_at":      w.UpdatedAt.UTC().Format(timeLayout),
	})
}

func (h *WalletHandler) ListTransactions(c *gin.Context) {
	user, ok := requireUser(c, h.log)
	if !ok {
		return
	}
	txns, err := h.wallets.Transactions(c.Request.Context(), user, parseLimit(c.Query("limit")))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]gin.H, 0, len(txns))
	for i := range txns {
		out = append(out, transactionView(&txns[i]))
	}
	c.JSON(http.StatusOK, gin.H{"transactions": out, "count": len(out)})
}

func (h *WalletHandler) ListWithdrawals(c *gin.Context) {
	user, ok := requireUser(c, h.log)
	if !ok {
		return
	}
	wds, err := h.wallets.Withdrawals(c.Request.Context(), user, parseLimit(c.Query("limit")))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	out := make([]gin.H, 0, len(wds))
	for i := range wds {
		out = append(out, withdrawalView(&wds[i]))
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": out, "count": len(out)})
}
