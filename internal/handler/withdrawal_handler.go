package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"recycletek/internal/domain"
	"recycletek/internal/service"
)

type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
	log         *slog.Logger
}

func NewWithdrawalHandler(withdrawals *service.WithdrawalService, log *slog.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, log: log}
}

type withdrawBody struct {
	AmountCents json.RawMessage `json:"amount_cents"`
	BankToken   json.RawMessage `json:"bank_token"`
}

// Create pays out part of the caller's balance to their bank destination.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	user, ok := requireUser(c, h.log)
	if !ok {
		return
	}
	var body withdrawBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, h.log, domain.ErrInvalidRequest)
		return
	}
	amount, ok := parseInt(body.AmountCents)
	if !ok {
		respondError(c, h.log, domain.ErrInvalidAmount)
		return
	}
	// a token that is not a JSON string counts as missing
	var token string
	if len(body.BankToken) > 0 {
		_ = json.Unmarshal(body.BankToken, &token)
	}

	res, err := h.withdrawals.Withdraw(c.Request.Context(), user, service.WithdrawRequest{
		AmountCents: amount,
		BankToken:   token,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	w := res.Withdrawal
	c.JSON(http.StatusCreated, gin.H{
		"success":             true,
		"withdrawal":          withdrawalView(w),
		"amount_cents":        w.AmountCents,
		"amount_dollars":      domain.Dollars(w.AmountCents),
		"new_balance_cents":   res.Wallet.BalanceCents,
		"new_balance_dollars": domain.Dollars(res.Wallet.BalanceCents),
	})
}
