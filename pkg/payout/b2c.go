package payout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// B2CProvider sends business-to-customer transfers through a bank or
// mobile-money gateway that authenticates with OAuth2 client credentials.
type B2CProvider struct {
	BaseURL     string
	CallbackURL string
	tokens      oauth2.TokenSource
	base        *http.Client
	log         *slog.Logger
}

func NewB2CProvider(baseURL, tokenURL, clientID, clientSecret, callbackURL string, log *slog.Logger) *B2CProvider {
	cc := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
	}
	base := &http.Client{Timeout: 30 * time.Second}
	// token requests use the same bounded client as payouts
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	return &B2CProvider{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		CallbackURL: callbackURL,
		tokens:      cc.TokenSource(tokenCtx),
		base:        base,
		log:         log,
	}
}

func (p *B2CProvider) Name() string { return "b2c" }

type b2cRequest struct {
	Amount      int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
	OrderID     string `json:"order_id"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type b2cResponse struct {
	UUID                string `json:"uuid"`
	OrderID             string `json:"order_id"`
	ConversationID      string `json:"conversation_id"`
	Status              string `json:"status"`
	ResponseCode        string `json:"response_code"`
	ResponseDescription string `json:"response_description"`
}

func (p *B2CProvider) Payout(ctx context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	desc := req.Description
	if desc == "" {
		desc = "Recycling wallet withdrawal"
	}
	payload, err := json.Marshal(b2cRequest{
		Amount:      req.AmountCents,
		Currency:    strings.ToUpper(req.Currency),
		Destination: req.DestinationToken,
		OrderID:     req.IdempotencyKey,
		Description: desc,
		CallbackURL: p.CallbackURL,
	})
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/api/v1/transactions/b2c", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	client := &http.Client{
		Timeout:   p.base.Timeout,
		Transport: &oauth2.Transport{Source: p.tokens, Base: p.base.Transport},
	}
	p.log.Info("b2c payout", "order_id", req.IdempotencyKey, "amount_cents", req.AmountCents)
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("b2c payout: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("b2c payout: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var out b2cResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("b2c payout: decode response: %w", err)
	}
	if out.ResponseCode != "" && out.ResponseCode != "0" {
		return nil, &ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Code: out.ResponseCode, Message: out.ResponseDescription}
	}
	switch strings.ToLower(out.Status) {
	case "failed", "rejected", "cancelled", "canceled":
		return nil, &ProviderError{Provider: p.Name(), StatusCode: resp.StatusCode, Code: out.ResponseCode, Message: out.ResponseDescription}
	}
	ref := out.ConversationID
	if ref == "" {
		ref = out.UUID
	}
	if ref == "" {
		return nil, fmt.Errorf("b2c payout: response has no reference")
	}
	return &Result{ReferenceID: ref}, nil
}
