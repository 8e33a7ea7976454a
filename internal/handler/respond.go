package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"recycletek/internal/domain"
	"recycletek/internal/middleware"
	"recycletek/internal/models"
)

const timeLayout = time.RFC3339

// respondError writes {"error": msg}. Unexpected faults are logged; their detail never reaches the client.
func respondError(c *gin.Context, log *slog.Logger, err error) {
	status, msg := domain.StatusAndMessage(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"request_id", middleware.RequestID(c),
			"error", err,
		)
	}
	c.JSON(status, gin.H{"error": msg})
}

func requireUser(c *gin.Context, log *slog.Logger) (*models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		respondError(c, log, domain.ErrAuthRequired)
		return nil, false
	}
	return u, true
}

// parseLimit returns 0 for anything that is not an integer; callers clamp to their defaults.
func parseLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// parseInt accepts only a bare JSON integer literal: 2.5, "3", true and null are rejected.
func parseInt(raw []byte) (int64, bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func timeString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(timeLayout)
	return &s
}

func transactionView(t *models.Transaction) gin.H {
	return gin.H{
		"id":               t.ID,
		"transaction_type": t.Type,
		"material":         t.Material,
		"units":            t.Units,
		"amount_cents":     t.AmountCents,
		"amount_dollars":   domain.Dollars(t.AmountCents),
		"source":           t.Source,
		"created_at":       t.CreatedAt.UTC().Format(timeLayout),
	}
}

func withdrawalView(w *models.Withdrawal) gin.H {
	return gin.H{
		"id":                 w.ID,
		"amount_cents":       w.AmountCents,
		"amount_dollars":     domain.Dollars(w.AmountCents),
		"currency":           w.Currency,
		"status":             w.Status,
		"provider_reference": w.ProviderReference,
		"failure_reason":     w.FailureReason,
		"created_at":         w.CreatedAt.UTC().Format(timeLayout),
		"processed_at":       timeString(w.ProcessedAt),
	}
}
