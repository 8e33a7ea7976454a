package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	stripepayout "github.com/stripe/stripe-go/v79/payout"
)

// StripeProvider creates payouts with the Stripe SDK.
type StripeProvider struct {
	StatementDescriptor string
	Method              string
	client              stripepayout.Client
	log                 *slog.Logger
}

// NewStripeProvider builds a provider with its own SDK backend. An empty baseURL
// means the live Stripe API.
func NewStripeProvider(baseURL, secretKey, descriptor, method string, log *slog.Logger) *StripeProvider {
	if baseURL == "" {
		baseURL = stripe.APIURL
	}
	if method == "" {
		method = "standard"
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:        stripe.String(strings.TrimRight(baseURL, "/")),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		// retries are driven by the withdrawal flow, which reuses the idempotency key
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     stripeLogger{log},
	})
	return &StripeProvider{
		StatementDescriptor: descriptor,
		Method:              method,
		client:              stripepayout.Client{B: backend, Key: secretKey},
		log:                 log,
	}
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) Payout(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	params := &stripe.PayoutParams{
		Amount:      stripe.Int64(req.AmountCents),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.DestinationToken),
		Method:      stripe.String(p.Method),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey)
	params.AddMetadata("idempotency_key", req.IdempotencyKey)
	if p.StatementDescriptor != "" {
		params.StatementDescriptor = stripe.String(p.StatementDescriptor)
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}

	p.log.Info("stripe payout", "idempotency_key", req.IdempotencyKey, "amount_cents", req.AmountCents, "currency", req.Currency)
	po, err := p.client.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return nil, &ProviderError{Provider: p.Name(), StatusCode: se.HTTPStatusCode, Code: string(se.Code), Message: se.Msg}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("stripe payout: %w", ctxErr)
		}
		return nil, fmt.Errorf("stripe payout: %w", err)
	}

	if po.Status == stripe.PayoutStatusFailed || po.Status == stripe.PayoutStatusCanceled {
		return nil, &ProviderError{Provider: p.Name(), StatusCode: http.StatusOK, Code: string(po.FailureCode), Message: po.FailureMessage}
	}
	if po.ID == "" {
		return nil, fmt.Errorf("stripe payout: response has no id")
	}
	return &Result{ReferenceID: po.ID}, nil
}

// stripeLogger routes SDK logging into slog.
type stripeLogger struct {
	log *slog.Logger
}

func (l stripeLogger) Debugf(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l stripeLogger) Infof(format string, v ...interface{}) {
	l.log.Debug(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l stripeLogger) Warnf(format string, v ...interface{}) {
	l.log.Warn(fmt.Sprintf(format, v...), "component", "stripe")
}

func (l stripeLogger) Errorf(format string, v ...interface{}) {
	l.log.Error(fmt.Sprintf(format, v...), "component", "stripe")
}
