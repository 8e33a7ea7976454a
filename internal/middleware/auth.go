package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"recycletek/internal/domain"
	"recycletek/internal/identity"
	"recycletek/internal/models"
)

const (
	HeaderTestUserEmail = "X-Test-User-Email"
	HeaderKioskUserID   = "X-Kiosk-User-ID"

	userKey = "user"

	maxPeekBytes = 1 << 20
)

type IdentityResolver interface {
	Resolve(ctx context.Context, creds identity.Credentials) (*models.User, error)
	ResolveKioskOnly(ctx context.Context, creds identity.Credentials) (*models.User, error)
}

// Identify resolves the caller with test bypass, kiosk id or bearer token, in that order.
func Identify(resolver IdentityResolver, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := resolver.Resolve(c.Request.Context(), Credentials(c))
		if err != nil {
			rejectIdentity(c, err, log)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

// KioskOnly accepts nothing but a kiosk id.
func KioskOnly(resolver IdentityResolver, log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := resolver.ResolveKioskOnly(c.Request.Context(), Credentials(c))
		if err != nil {
			rejectIdentity(c, err, log)
			return
		}
		c.Set(userKey, u)
		c.Next()
	}
}

func rejectIdentity(c *gin.Context, err error, log *slog.Logger) {
	if _, ok := domain.AsError(err); !ok {
		log.Error("identity resolution failed", "path", c.FullPath(), "error", err)
	}
	abortWithError(c, err)
}

// CurrentUser returns the user set by Identify or KioskOnly.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok && u != nil
}

// Credentials collects identity inputs from headers and, failing a kiosk header,
// from a kiosk_id field in a JSON body. The body is restored for the handler.
func Credentials(c *gin.Context) identity.Credentials {
	creds := identity.Credentials{
		TestEmail:     strings.TrimSpace(c.GetHeader(HeaderTestUserEmail)),
		KioskID:       strings.TrimSpace(c.GetHeader(HeaderKioskUserID)),
		Authorization: strings.TrimSpace(c.GetHeader("Authorization")),
	}
	if creds.KioskID == "" {
		creds.KioskID = peekBodyKioskID(c.Request)
	}
	return creds
}

func peekBodyKioskID(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBytes))
	// whatever was read goes back, followed by anything past the peek limit
	r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(raw), r.Body), Closer: r.Body}
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		KioskID string `json:"kiosk_id"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	return strings.TrimSpace(body.KioskID)
}

type readCloser struct {
	io.Reader
	io.Closer
}

func abortWithError(c *gin.Context, err error) {
	status, msg := domain.StatusAndMessage(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
