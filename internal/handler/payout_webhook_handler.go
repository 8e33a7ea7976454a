package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"recycletek/internal/domain"
	"recycletek/internal/service"
)

const HeaderSignature = "X-Signature"

// PayoutCallback is the provider notification for an asynchronous payout outcome.
// Either withdrawal_id or order_id ("wd-<id>", the idempotency key we sent) identifies it.
type PayoutCallback struct {
	WithdrawalID      uint   `json:"withdrawal_id"`
	OrderID           string `json:"order_id"`
	Status            string `json:"status"`
	Reference         string `json:"reference"`
	StatusDescription string `json:"status_description"`
}

type PayoutWebhookHandler struct {
	withdrawals *service.WithdrawalService
	secret      []byte
	log         *slog.Logger
}

func NewPayoutWebhookHandler(withdrawals *service.WithdrawalService, secret string, log *slog.Logger) *PayoutWebhookHandler {
	return &PayoutWebhookHandler{withdrawals: withdrawals, secret: []byte(secret), log: log}
}

// Handle verifies the signature and applies the outcome to a pending withdrawal.
// Withdrawals that are already terminal are acknowledged and left unchanged.
func (h *PayoutWebhookHandler) Handle(c *gin.Context) {
	if len(h.secret) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if !h.validSignature(body, c.GetHeader(HeaderSignature)) {
		h.log.Warn("payout webhook rejected: bad signature", "remote", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}
	var payload PayoutCallback
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	id, ok := payload.withdrawalID()
	if !ok {
		h.log.Warn("payout webhook without withdrawal id", "order_id", payload.OrderID)
		c.JSON(http.StatusBadRequest, gin.H{"error": "withdrawal_id required"})
		return
	}
	succeeded, known := parseOutcome(payload.Status)
	if !known {
		// still processing on the provider side
		h.log.Info("payout webhook: non-terminal status", "withdrawal_id", id, "status", payload.Status)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	wd, changed, err := h.withdrawals.Settle(c.Request.Context(), service.Settlement{
		WithdrawalID: id,
		Succeeded:    succeeded,
		Reference:    payload.Reference,
		Reason:       payload.StatusDescription,
	})
	if errors.Is(err, domain.ErrWithdrawalNotFound) {
		h.log.Warn("payout webhook for unknown withdrawal", "withdrawal_id", id)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "status": wd.Status, "changed": changed})
}

func (h *PayoutWebhookHandler) validSignature(body []byte, header string) bool {
	got, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(header), "sha256="))
	if err != nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(got, Sign(h.secret, body))
}

// Sign returns the HMAC-SHA256 of body, as providers send it in X-Signature (hex).
func Sign(secret, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return mac.Sum(nil)
}

func (p PayoutCallback) withdrawalID() (uint, bool) {
	if p.WithdrawalID != 0 {
		return p.WithdrawalID, true
	}
	n, err := strconv.ParseUint(strings.TrimPrefix(p.OrderID, "wd-"), 10, 64)
	if err != nil || n == 0 || !strings.HasPrefix(p.OrderID, "wd-") {
		return 0, false
	}
	return uint(n), true
}

// parseOutcome maps provider status strings; known is false for non-terminal states.
func parseOutcome(status string) (succeeded, known bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "paid", "success", "succeeded":
		return true, true
	case "failed", "canceled", "cancelled", "reversed", "returned":
		return false, true
	default:
		return false, false
	}
}
