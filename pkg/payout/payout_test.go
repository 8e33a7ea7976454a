package payout

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() Request {
	return Request{IdempotencyKey: "wd-17", DestinationToken: "ba_123", AmountCents: 250, Currency: "usd"}
}

func TestStubProvider(t *testing.T) {
	res, err := StubProvider{}.Payout(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "stub_payout_wd-17", res.ReferenceID)

	_, err = StubProvider{}.Payout(context.Background(), Request{IdempotencyKey: "wd-1", AmountCents: 100})
	require.Error(t, err)
}

func TestStripeProviderSendsIdempotentPayout(t *testing.T) {
	var got url.Values
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payouts", r.URL.Path)
		headers = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		got, _ = url.ParseQuery(string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"po_123","object":"payout","status":"pending"}`))
	}))
	defer srv.Close()

	p := NewStripeProvider(srv.URL, "sk_test_abc", "RECYCLETEK", "", slogt.New(t))
	res, err := p.Payout(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "po_123", res.ReferenceID)
	assert.Equal(t, "wd-17", headers.Get("Idempotency-Key"))
	assert.Equal(t, "Bearer sk_test_abc", headers.Get("Authorization"))
	assert.Equal(t, "250", got.Get("amount"))
	assert.Equal(t, "usd", got.Get("currency"))
	assert.Equal(t, "ba_123", got.Get("destination"))
	assert.Equal(t, "standard", got.Get("method"))
	assert.Equal(t, "RECYCLETEK", got.Get("statement_descriptor"))
	assert.Equal(t, "wd-17", got.Get("metadata[idempotency_key]"))
}

func TestStripeProviderRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","code":"balance_insufficient","message":"You have insufficient funds"}}`))
	}))
	defer srv.Close()

	p := NewStripeProvider(srv.URL, "sk_test_abc", "", "", slogt.New(t))
	_, err := p.Payout(context.Background(), testRequest())

	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.Equal(t, "balance_insufficient", pe.Code)
	assert.Equal(t, "You have insufficient funds", pe.Message)
}

func TestStripeProviderFailedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"po_9","status":"failed","failure_code":"account_closed","failure_message":"closed"}`))
	}))
	defer srv.Close()

	_, err := NewStripeProvider(srv.URL, "sk", "", "", slogt.New(t)).Payout(context.Background(), testRequest())
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "account_closed", pe.Code)
}

func TestStripeProviderHonoursContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewStripeProvider(srv.URL, "sk", "", "", slogt.New(t)).Payout(ctx, testRequest())
	require.ErrorIs(t, err, context.Canceled)
}

func TestB2CProviderUsesClientCredentials(t *testing.T) {
	mux := http.NewServeMux()
	tokenCalls := 0
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	})
	var payload b2cRequest
	mux.HandleFunc("/api/v1/transactions/b2c", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "wd-17", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = w.Write([]byte(`{"conversation_id":"AG_1","status":"accepted","response_code":"0"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewB2CProvider(srv.URL, srv.URL+"/oauth/token", "id", "secret", "https://api.example.com/webhooks/payout", slogt.New(t))
	for i := 0; i < 2; i++ {
		res, err := p.Payout(context.Background(), testRequest())
		require.NoError(t, err)
		assert.Equal(t, "AG_1", res.ReferenceID)
	}
	assert.Equal(t, 1, tokenCalls, "tokens are reused until expiry")
	assert.Equal(t, int64(250), payload.Amount)
	assert.Equal(t, "USD", payload.Currency)
	assert.Equal(t, "wd-17", payload.OrderID)
}

func TestB2CProviderFailedStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v1/transactions/b2c", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"conversation_id":"AG_2","status":"failed","response_description":"account dormant"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewB2CProvider(srv.URL, srv.URL+"/oauth/token", "id", "secret", "", slogt.New(t))
	_, err := p.Payout(context.Background(), testRequest())
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "account dormant", pe.Message)
}

func TestB2CProviderRejectedResponseCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/api/v1/transactions/b2c", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response_code":"2001","response_description":"invalid destination"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := NewB2CProvider(srv.URL, srv.URL+"/oauth/token", "id", "secret", "", slogt.New(t))
	_, err := p.Payout(context.Background(), testRequest())
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "2001", pe.Code)
}
