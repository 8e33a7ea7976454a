package auth

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidToken = errors.New("invalid token")

// Identity is what an identity-assertion provider vouches for after verifying a bearer token.
type Identity struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// Verifier checks an opaque bearer token. Failures wrap ErrInvalidToken.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}
