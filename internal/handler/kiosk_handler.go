package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recycletek/internal/domain"
	"recycletek/internal/models"
)

type KioskDirectory interface {
	LookupKiosk(ctx context.Context, kioskID string) (*models.User, error)
}

type KioskAssigner interface {
	EnsureKioskID(ctx context.Context, u *models.User) (*models.User, error)
}

type KioskHandler struct {
	directory KioskDirectory
	assigner  KioskAssigner
	log       *slog.Logger
}

func NewKioskHandler(directory KioskDirectory, assigner KioskAssigner, log *slog.Logger) *KioskHandler {
	return &KioskHandler{directory: directory, assigner: assigner, log: log}
}

// GetKioskID returns the caller's kiosk id, assigning one on first request.
func (h *KioskHandler) GetKioskID(c *gin.Context) {
	user, ok := requireUser(c, h.log)
	if !ok {
		return
	}
	u, err := h.assigner.EnsureKioskID(c.Request.Context(), user)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"kiosk_id": u.KioskCode(),
		"email":    u.Email,
		"user_id":  u.ID,
	})
}

type validateKioskBody struct {
	KioskID string `json:"kiosk_id"`
}

// Validate is public: a kiosk checks an id before starting a session.
func (h *KioskHandler) Validate(c *gin.Context) {
	var body validateKioskBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "JSON body required"})
		return
	}
	code := strings.TrimSpace(body.KioskID)
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kiosk_id is required"})
		return
	}
	if len(code) != domain.KioskIDLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kiosk_id must be 8 characters"})
		return
	}
	u, err := h.directory.LookupKiosk(c.Request.Context(), code)
	if errors.Is(err, domain.ErrInvalidKiosk) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invalid kiosk ID"})
		return
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":      true,
		"user_email": u.Email,
		"message":    "Kiosk ID validated for " + u.Email,
	})
}
