package handler

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"recycletek/internal/domain"
	"recycletek/internal/models"
	"recycletek/internal/service"
)

type DepositHandler struct {
	deposits *service.DepositService
	log      *slog.Logger
}

func NewDepositHandler(deposits *service.DepositService, log *slog.Logger) *DepositHandler {
	return &DepositHandler{deposits: deposits, log: log}
}

type depositBody struct {
	Material string          `json:"material"`
	Units    json.RawMessage `json:"units"`
}

// Create credits the caller for a deposit made in the app or at a kiosk.
func (h *DepositHandler) Create(c *gin.Context) {
	h.deposit(c, domain.SourceApp)
}

// CreateKiosk is the kiosk-only variant; identity has already been restricted to a kiosk id.
func (h *DepositHandler) CreateKiosk(c *gin.Context) {
	h.deposit(c, domain.SourceKiosk)
}

func (h *DepositHandler) deposit(c *gin.Context, source string) {
	user, ok := requireUser(c, h.log)
	if !ok {
		return
	}
	var body depositBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, h.log, domain.ErrInvalidRequest)
		return
	}
	// a non-integer becomes 0 so material is still validated first; out-of-range
	// integers keep their sign so they still fail as over the cap or non-positive
	units, ok := parseInt(body.Units)
	switch {
	case !ok:
		units = 0
	case units > math.MaxInt32:
		units = math.MaxInt32
	case units < math.MinInt32:
		units = math.MinInt32
	}

	res, err := h.deposits.Deposit(c.Request.Context(), user, service.DepositRequest{
		Material: body.Material,
		Units:    int(units),
		Source:   source,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, depositResponse(user, res))
}

func depositResponse(user *models.User, res *service.DepositResult) gin.H {
	t := res.Transaction
	out := gin.H{
		"success":             true,
		"message":             "Deposit successful! " + domain.FormatDollars(t.AmountCents) + " added to account.",
		"transaction":         transactionView(t),
		"transaction_id":      t.ID,
		"material":            t.Material,
		"units":               t.Units,
		"amount_cents":        t.AmountCents,
		"amount_dollars":      domain.Dollars(t.AmountCents),
		"new_balance_cents":   res.Wallet.BalanceCents,
		"new_balance_dollars": domain.Dollars(res.Wallet.BalanceCents),
		"user_email":          user.Email,
	}
	if t.Source == domain.SourceApp {
		out["user_info"] = gin.H{"email": user.Email, "kiosk_id": user.KioskCode()}
	}
	return out
}
