package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"recycletek/internal/models"
	"recycletek/internal/repository"
)

// UserStore is the persistence the resolver and provisioner need.
type UserStore interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByKioskID(ctx context.Context, kioskID string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	KioskIDTaken(ctx context.Context, kioskID string) (bool, error)
	AssignKioskID(ctx context.Context, userID uint, kioskID string) (bool, error)
}

var _ UserStore = (*repository.UserRepository)(nil)

// maxKioskAttempts bounds the collision loop. With 36^8 codes it is only ever
// reached when the store keeps failing, not through genuine collisions.
const maxKioskAttempts = 64

// Provisioner is the only write path for users: first-sight creation and lazy kiosk id assignment.
type Provisioner struct {
	users      UserStore
	log        *slog.Logger
	newKioskID func() (string, error)
}

func NewProvisioner(users UserStore, log *slog.Logger) *Provisioner {
	return &Provisioner{users: users, log: log, newKioskID: NewKioskID}
}

// BypassExternalID is the synthetic subject used for bypass accounts.
func BypassExternalID(email string) string {
	return "test-" + email
}

// FindOrCreateByEmail resolves any existing account with the email, whatever its
// subject. Only when none exists is a bypass account created.
func (p *Provisioner) FindOrCreateByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := p.users.GetByEmail(ctx, email)
	if err == nil {
		return p.EnsureKioskID(ctx, u)
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("find user: %w", err)
	}
	return p.findOrCreate(ctx, BypassExternalID(email), email)
}

func (p *Provisioner) FindOrCreateBySubject(ctx context.Context, subject, email string) (*models.User, error) {
	return p.findOrCreate(ctx, subject, email)
}

func (p *Provisioner) findOrCreate(ctx context.Context, externalID, email string) (*models.User, error) {
	u, err := p.users.GetByExternalID(ctx, externalID)
	if err == nil {
		return p.EnsureKioskID(ctx, u)
	}
	if !repository.IsNotFound(err) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	for attempt := 0; attempt < maxKioskAttempts; attempt++ {
		code, err := p.unusedKioskID(ctx)
		if err != nil {
			return nil, err
		}
		u = &models.User{ExternalID: externalID, Email: email, KioskID: &code}
		err = p.users.Create(ctx, u)
		if err == nil {
			p.log.Info("provisioned user", "user_id", u.ID, "email", email, "kiosk_id", code)
			return u, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		// either a concurrent request created the same subject, or the kiosk id was taken in between
		existing, lookupErr := p.users.GetByExternalID(ctx, externalID)
		if lookupErr == nil {
			return p.EnsureKioskID(ctx, existing)
		}
		if !repository.IsNotFound(lookupErr) {
			return nil, fmt.Errorf("find user: %w", lookupErr)
		}
	}
	return nil, errors.New("create user: no unused kiosk id found")
}

// EnsureKioskID assigns a kiosk id to u if it has none.
func (p *Provisioner) EnsureKioskID(ctx context.Context, u *models.User) (*models.User, error) {
	if u.KioskID != nil {
		return u, nil
	}
	for attempt := 0; attempt < maxKioskAttempts; attempt++ {
		code, err := p.unusedKioskID(ctx)
		if err != nil {
			return nil, err
		}
		assigned, err := p.users.AssignKioskID(ctx, u.ID, code)
		if repository.IsUniqueViolation(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("assign kiosk id: %w", err)
		}
		if !assigned {
			// assigned concurrently; use the winner's value
			return p.users.GetByID(ctx, u.ID)
		}
		u.KioskID = &code
		p.log.Info("assigned kiosk id", "user_id", u.ID, "kiosk_id", code)
		return u, nil
	}
	return nil, errors.New("assign kiosk id: no unused kiosk id found")
}

func (p *Provisioner) unusedKioskID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxKioskAttempts; attempt++ {
		code, err := p.newKioskID()
		if err != nil {
			return "", err
		}
		taken, err := p.users.KioskIDTaken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check kiosk id: %w", err)
		}
		if !taken {
			return code, nil
		}
		p.log.Debug("kiosk id collision, regenerating")
	}
	return "", errors.New("no unused kiosk id found")
}
