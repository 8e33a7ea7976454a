// Package payout sends money from the platform to a user's bank destination.
package payout

import (
	"context"
	"fmt"
)

type Request struct {
	// IdempotencyKey makes retried calls pay out at most once.
	IdempotencyKey   string
	DestinationToken string
	AmountCents      int64
	Currency         string
	Description      string
}

type Result struct {
	ReferenceID string
}

// Provider sends one payout. A nil error means the provider accepted the payout and
// the withdrawal is recorded as completed; providers that settle later report a
// failure through the payout webhook only while the withdrawal is still pending.
// Implementations return an error for any response that is already failed or canceled.
type Provider interface {
	Name() string
	Payout(ctx context.Context, req Request) (*Result, error)
}

// ProviderError is a failure reported by the provider itself, as opposed to a transport error.
type ProviderError struct {
	Provider   string
	StatusCode int
	Code       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s payout rejected (%d %s): %s", e.Provider, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s payout rejected (%d): %s", e.Provider, e.StatusCode, e.Message)
}

func validate(req Request) error {
	if req.IdempotencyKey == "" {
		return fmt.Errorf("payout: idempotency key required")
	}
	if req.DestinationToken == "" {
		return fmt.Errorf("payout: destination required")
	}
	if req.AmountCents <= 0 {
		return fmt.Errorf("payout: amount must be positive")
	}
	return nil
}
