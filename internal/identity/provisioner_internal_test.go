package identity

import (
	"context"
	"testing"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recycletek/internal/repository"
	"recycletek/internal/testutil"
)

// sequence returns the given codes in order, then repeats the last one.
func sequence(codes ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
}

func TestProvisionerRegeneratesOnCollision(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "first@example.com", "TAKEN001")
	testutil.CreateUser(t, db, "second@example.com", "TAKEN002")

	p := NewProvisioner(repository.NewUserRepository(db), slogt.New(t))
	p.newKioskID = sequence("TAKEN001", "TAKEN002", "FRESH003")

	u, err := p.FindOrCreateByEmail(context.Background(), "third@example.com")
	require.NoError(t, err)
	require.NotNil(t, u.KioskID)
	assert.Equal(t, "FRESH003", *u.KioskID)
	assert.Equal(t, BypassExternalID("third@example.com"), u.ExternalID)
}

func TestEnsureKioskIDKeepsExisting(t *testing.T) {
	db := testutil.NewDB(t)
	u := testutil.CreateUser(t, db, "has@example.com", "HAS00001")

	p := NewProvisioner(repository.NewUserRepository(db), slogt.New(t))
	p.newKioskID = sequence("OTHER001")

	got, err := p.EnsureKioskID(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, "HAS00001", got.KioskCode())
}

func TestProvisionerGivesUpWhenEveryCodeIsTaken(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.CreateUser(t, db, "first@example.com", "TAKEN001")

	p := NewProvisioner(repository.NewUserRepository(db), slogt.New(t))
	p.newKioskID = sequence("TAKEN001")

	_, err := p.FindOrCreateByEmail(context.Background(), "stuck@example.com")
	require.Error(t, err)
}
