package domain

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindAuth              Kind = "auth"
	KindValidation        Kind = "validation"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindNotFound          Kind = "not_found"
	KindProcessing        Kind = "processing"
	KindRateLimited       Kind = "rate_limited"
)

// Error is a user-visible failure. Code names the failing condition; Message is what the client sees.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Status  int
}

func (e *Error) Error() string { return e.Message }

// Is matches on Code so that errors carrying a customised message still compare equal to the sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of e with a different client message.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

func newError(kind Kind, code string, status int, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Status: status}
}

var (
	ErrAuthRequired  = newError(KindAuth, "auth_required", http.StatusUnauthorized, "Authorization required. Use Bearer token, X-Kiosk-User-ID header, or kiosk_id in body")
	ErrInvalidKiosk  = newError(KindAuth, "invalid_kiosk", http.StatusUnauthorized, "Invalid kiosk ID")
	ErrInvalidToken  = newError(KindAuth, "invalid_token", http.StatusUnauthorized, "Invalid or expired token")
	ErrMissingEmail  = newError(KindAuth, "missing_email", http.StatusUnauthorized, "Email claim missing")
	ErrKioskRequired = newError(KindAuth, "kiosk_required", http.StatusUnauthorized, "Kiosk ID required")

	ErrInvalidMaterial = newError(KindValidation, "invalid_material", http.StatusBadRequest, `Invalid material. Must be "plastic" or "aluminum"`)
	ErrInvalidUnits    = newError(KindValidation, "invalid_units", http.StatusBadRequest, "Units must be a positive integer")
	ErrUnitsExceeded   = newError(KindValidation, "units_exceeded", http.StatusBadRequest, "Maximum 1000 units per deposit")
	ErrInvalidAmount   = newError(KindValidation, "invalid_amount", http.StatusBadRequest, "Amount must be a positive integer in cents")
	ErrBelowMinimum    = newError(KindValidation, "below_minimum", http.StatusBadRequest, "Minimum withdrawal is $1.00")
	ErrMissingToken    = newError(KindValidation, "missing_token", http.StatusBadRequest, "Bank token required")
	ErrInvalidRequest  = newError(KindValidation, "invalid_request", http.StatusBadRequest, "Invalid request body")

	ErrInsufficientBalance = newError(KindInsufficientFunds, "insufficient_balance", http.StatusBadRequest, "Insufficient balance")
	ErrWalletNotFound      = newError(KindNotFound, "wallet_not_found", http.StatusNotFound, "Wallet not found")
	ErrWithdrawalNotFound  = newError(KindNotFound, "withdrawal_not_found", http.StatusNotFound, "Withdrawal not found")

	ErrPayoutFailed = newError(KindProcessing, "payout_failed", http.StatusInternalServerError, "Payout failed")
	ErrRateLimited  = newError(KindRateLimited, "rate_limited", http.StatusTooManyRequests, "rate limit exceeded")
)

// AsError extracts a *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// StatusAndMessage maps err to an HTTP status and client message. Anything that is
// not a *Error is an unexpected fault and is reported generically.
func StatusAndMessage(err error) (int, string) {
	if de, ok := AsError(err); ok {
		return de.Status, de.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
