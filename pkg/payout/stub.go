package payout

import "context"

// StubProvider succeeds without moving money. Development only.
type StubProvider struct{}

func (StubProvider) Name() string { return "stub" }

func (StubProvider) Payout(_ context.Context, req Request) (*Result, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	return &Result{ReferenceID: "stub_payout_" + req.IdempotencyKey}, nil
}
