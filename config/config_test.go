package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("PAYOUT_PROVIDER", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(5), cfg.Ledger.MaterialRates["plastic"])
	assert.Equal(t, int64(10), cfg.Ledger.MaterialRates["aluminum"])
	assert.Equal(t, 1000, cfg.Ledger.MaxUnitsPerDeposit)
	assert.Equal(t, int64(100), cfg.Ledger.MinWithdrawalCents)
	assert.Equal(t, ListLimit{Default: 50, Max: 100}, cfg.Ledger.TransactionsLimit)
	assert.Equal(t, ListLimit{Default: 20, Max: 50}, cfg.Ledger.WithdrawalsLimit)
	assert.Equal(t, "stub", cfg.Payout.Provider)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "8081")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file::memory:")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("PAYOUT_PROVIDER", "")
	t.Setenv("PAYOUT_TIMEOUT", "3s")
	t.Setenv("MAX_UNITS_PER_DEPOSIT", "500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "stripe", cfg.Payout.Provider, "an sk_ key selects stripe")
	assert.Equal(t, 3*time.Second, cfg.Payout.Timeout)
	assert.Equal(t, 500, cfg.Ledger.MaxUnitsPerDeposit)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PAYOUT_TIMEOUT", "soon")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("PAYOUT_TIMEOUT", "")
	t.Setenv("DATABASE_DRIVER", "oracle")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadFileReplacesRateTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
ledger:
  material_rates:
    glass: 3
  max_units_per_deposit: 200
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("PAYOUT_PROVIDER", "")
	t.Setenv("MAX_UNITS_PER_DEPOSIT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"glass": 3}, cfg.Ledger.MaterialRates)
	assert.Equal(t, 200, cfg.Ledger.MaxUnitsPerDeposit)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, int64(100), cfg.Ledger.MinWithdrawalCents, "unset keys keep defaults")
}

func TestTestBypassGate(t *testing.T) {
	cfg := Defaults()
	assert.False(t, cfg.TestBypassEnabled())

	cfg.Auth.TestUserEmail = "tester@example.com"
	assert.True(t, cfg.TestBypassEnabled())

	cfg.Server.Env = "production"
	assert.False(t, cfg.TestBypassEnabled())

	cfg.Auth.AllowTestBypassInProduction = true
	assert.True(t, cfg.TestBypassEnabled())
}

func TestValidateStubInProduction(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Env = "production"
	require.Error(t, cfg.Validate())

	cfg.Payout.Provider = "stripe"
	cfg.Payout.Stripe.SecretKey = "sk_live_x"
	require.NoError(t, cfg.Validate())
}

func TestListLimitClamp(t *testing.T) {
	l := ListLimit{Default: 50, Max: 100}
	assert.Equal(t, 50, l.Clamp(0))
	assert.Equal(t, 50, l.Clamp(-3))
	assert.Equal(t, 1, l.Clamp(1))
	assert.Equal(t, 100, l.Clamp(100))
	assert.Equal(t, 100, l.Clamp(101))
}
