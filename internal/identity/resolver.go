package identity

import (
	"context"
	"fmt"
	"log/slog"

	"recycletek/internal/auth"
	"recycletek/internal/domain"
	"recycletek/internal/models"
)

// Resolver maps request credentials to exactly one user. Strategies run in a
// fixed order and the first one that applies decides the result.
type Resolver struct {
	strategies  []Strategy
	kiosk       Strategy
	provisioner *Provisioner
	log         *slog.Logger
}

type Options struct {
	Users    UserStore
	Verifier auth.Verifier
	// TestEmail enables the test bypass when non-empty.
	TestEmail string
	Log       *slog.Logger
}

func NewResolver(opts Options) *Resolver {
	prov := NewProvisioner(opts.Users, opts.Log)
	kiosk := &KioskLookup{Users: opts.Users}

	var strategies []Strategy
	if opts.TestEmail != "" {
		strategies = append(strategies, &TestBypass{Email: opts.TestEmail, Provisioner: prov})
	}
	strategies = append(strategies, kiosk, &BearerToken{Verifier: opts.Verifier, Provisioner: prov})

	return &Resolver{strategies: strategies, kiosk: kiosk, provisioner: prov, log: opts.Log}
}

func (r *Resolver) Provisioner() *Provisioner {
	return r.provisioner
}

func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (*models.User, error) {
	return r.run(ctx, r.strategies, creds, domain.ErrAuthRequired)
}

// ResolveKioskOnly accepts the kiosk id strategy only.
func (r *Resolver) ResolveKioskOnly(ctx context.Context, creds Credentials) (*models.User, error) {
	return r.run(ctx, []Strategy{r.kiosk}, creds, domain.ErrKioskRequired)
}

func (r *Resolver) run(ctx context.Context, strategies []Strategy, creds Credentials, none *domain.Error) (*models.User, error) {
	for _, s := range strategies {
		out, err := s.Evaluate(ctx, creds)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		switch out.Kind {
		case Resolved:
			r.log.Debug("identity resolved", "strategy", s.Name(), "user_id", out.User.ID)
			return out.User, nil
		case Failed:
			r.log.Info("identity rejected", "strategy", s.Name(), "reason", out.Err.Code)
			return nil, out.Err
		}
	}
	return nil, none
}

// LookupKiosk resolves a kiosk id without any other credential.
func (r *Resolver) LookupKiosk(ctx context.Context, kioskID string) (*models.User, error) {
	return r.run(ctx, []Strategy{r.kiosk}, Credentials{KioskID: kioskID}, domain.ErrKioskRequired)
}
