package identity

import (
	"context"
	"errors"
	"strings"

	"recycletek/internal/auth"
	"recycletek/internal/domain"
	"recycletek/internal/models"
	"recycletek/internal/repository"
)

// Credentials are the identity inputs a request may carry.
type Credentials struct {
	TestEmail     string // X-Test-User-Email
	KioskID       string // X-Kiosk-User-ID header, or kiosk_id in the body
	Authorization string // Authorization header
}

type OutcomeKind int

const (
	NotApplicable OutcomeKind = iota
	Resolved
	Failed
)

// Outcome is the result of one strategy. Exactly one of User and Err is set for
// Resolved and Failed respectively; neither is set for NotApplicable.
type Outcome struct {
	Kind OutcomeKind
	User *models.User
	Err  *domain.Error
}

func notApplicable() Outcome { return Outcome{Kind: NotApplicable} }
func resolved(u *models.User) Outcome { return Outcome{Kind: Resolved, User: u} }
func failed(err *domain.Error) Outcome { return Outcome{Kind: Failed, Err: err} }

// Strategy evaluates one way of identifying the caller. A non-nil error is an
// infrastructure fault, not an authentication failure.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, creds Credentials) (Outcome, error)
}

// TestBypass resolves the configured test account by email. Only registered when the bypass is enabled.
type TestBypass struct {
	Email       string
	Provisioner *Provisioner
}

func (s *TestBypass) Name() string { return "test_bypass" }

func (s *TestBypass) Evaluate(ctx context.Context, creds Credentials) (Outcome, error) {
	if s.Email == "" || creds.TestEmail == "" || creds.TestEmail != s.Email {
		return notApplicable(), nil
	}
	u, err := s.Provisioner.FindOrCreateByEmail(ctx, s.Email)
	if err != nil {
		return Outcome{}, err
	}
	return resolved(u), nil
}

// KioskLookup resolves an existing user by kiosk id. It never creates users.
type KioskLookup struct {
	Users UserStore
}

func (s *KioskLookup) Name() string { return "kiosk_id" }

func (s *KioskLookup) Evaluate(ctx context.Context, creds Credentials) (Outcome, error) {
	code := NormalizeKioskID(creds.KioskID)
	if code == "" {
		return notApplicable(), nil
	}
	if !ValidKioskID(code) {
		return failed(domain.ErrInvalidKiosk), nil
	}
	u, err := s.Users.GetByKioskID(ctx, code)
	if repository.IsNotFound(err) {
		return failed(domain.ErrInvalidKiosk), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	return resolved(u), nil
}

// BearerToken verifies an Authorization: Bearer token and provisions the subject on first sight.
type BearerToken struct {
	Verifier    auth.Verifier
	Provisioner *Provisioner
}

func (s *BearerToken) Name() string { return "bearer_token" }

func (s *BearerToken) Evaluate(ctx context.Context, creds Credentials) (Outcome, error) {
	token, ok := bearerToken(creds.Authorization)
	if !ok {
		return notApplicable(), nil
	}
	if token == "" || s.Verifier == nil {
		return failed(domain.ErrInvalidToken), nil
	}
	id, err := s.Verifier.Verify(ctx, token)
	if errors.Is(err, auth.ErrInvalidToken) {
		return failed(domain.ErrInvalidToken), nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if id.Email == "" {
		return failed(domain.ErrMissingEmail), nil
	}
	u, err := s.Provisioner.FindOrCreateBySubject(ctx, id.Subject, id.Email)
	if err != nil {
		return Outcome{}, err
	}
	return resolved(u), nil
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
