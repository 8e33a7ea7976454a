package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Ledger     LedgerConfig     `yaml:"ledger"`
	Payout     PayoutConfig     `yaml:"payout"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Detection  DetectionConfig  `yaml:"detection"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port           string        `yaml:"port"`
	Env            string        `yaml:"env"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"` // mysql | postgres | sqlite
	DSN             string        `yaml:"dsn"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// AuthConfig configures the identity-assertion provider and the test bypass.
type AuthConfig struct {
	FirebaseServiceAccount string        `yaml:"-"` // raw service-account JSON
	FirebaseProjectID      string        `yaml:"firebase_project_id"`
	JWTSecret              string        `yaml:"-"`
	JWKSURL                string        `yaml:"jwks_url"`
	JWTIssuer              string        `yaml:"jwt_issuer"`
	TokenCacheSize         int           `yaml:"token_cache_size"`
	TokenCacheTTL          time.Duration `yaml:"token_cache_ttl"`

	TestUserEmail               string `yaml:"test_user_email"`
	AllowTestBypassInProduction bool   `yaml:"allow_test_bypass_in_production"`
}

type LedgerConfig struct {
	Currency           string           `yaml:"currency"`
	MaterialRates      map[string]int64 `yaml:"material_rates"` // cents per unit
	MaxUnitsPerDeposit int              `yaml:"max_units_per_deposit"`
	MinWithdrawalCents int64            `yaml:"min_withdrawal_cents"`
	TransactionsLimit  ListLimit        `yaml:"transactions_limit"`
	WithdrawalsLimit   ListLimit        `yaml:"withdrawals_limit"`
}

type ListLimit struct {
	Default int `yaml:"default"`
	Max     int `yaml:"max"`
}

// Clamp returns n bounded by Max, or Default when n is below 1.
func (l ListLimit) Clamp(n int) int {
	if n < 1 {
		return l.Default
	}
	if n > l.Max {
		return l.Max
	}
	return n
}

type PayoutConfig struct {
	Provider        string        `yaml:"provider"` // stripe | b2c | stub
	Timeout         time.Duration `yaml:"timeout"`
	WebhookSecret   string        `yaml:"-"`
	StalePendingAge time.Duration `yaml:"stale_pending_age"`
	Stripe          StripeConfig  `yaml:"stripe"`
	B2C             B2CConfig     `yaml:"b2c"`
}

type StripeConfig struct {
	SecretKey           string `yaml:"-"`
	BaseURL             string `yaml:"base_url"`
	StatementDescriptor string `yaml:"statement_descriptor"`
	Method              string `yaml:"method"` // standard | instant
}

// B2CConfig is for a bank / mobile-money payout gateway using OAuth2 client credentials.
type B2CConfig struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"-"`
	CallbackURL  string `yaml:"callback_url"`
}

type RateLimitConfig struct {
	GlobalPerHour      int           `yaml:"global_per_hour"`
	DepositPerSecond   int           `yaml:"deposit_per_second"`
	KioskDepositPerSec int           `yaml:"kiosk_deposit_per_second"`
	WithdrawPerSecond  int           `yaml:"withdraw_per_second"`
	Window             time.Duration `yaml:"window"`
}

type DetectionConfig struct {
	URL            string        `yaml:"url"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	MinConfidence  float64       `yaml:"min_confidence"`
}

type CloudinaryConfig struct {
	CloudName string `yaml:"cloud_name"`
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
	Folder    string `yaml:"folder"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text | json
}

// Defaults returns the configuration used when neither a file nor the environment overrides a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "5000",
			Env:            "development",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   45 * time.Second,
			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			DSN:             "recycletek:recycletek@tcp(localhost:3306)/recycling_wallet?charset=utf8mb4&parseTime=True&loc=UTC",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: time.Hour,
			ConnectTimeout:  30 * time.Second,
		},
		Auth: AuthConfig{
			JWTIssuer:      "recycletek",
			TokenCacheSize: 1024,
			TokenCacheTTL:  5 * time.Minute,
		},
		Ledger: LedgerConfig{
			Currency:           "usd",
			MaterialRates:      map[string]int64{"plastic": 5, "aluminum": 10},
			MaxUnitsPerDeposit: 1000,
			MinWithdrawalCents: 100,
			TransactionsLimit:  ListLimit{Default: 50, Max: 100},
			WithdrawalsLimit:   ListLimit{Default: 20, Max: 50},
		},
		Payout: PayoutConfig{
			Provider:        "stub",
			Timeout:         20 * time.Second,
			StalePendingAge: 15 * time.Minute,
			Stripe: StripeConfig{
				BaseURL:             "https://api.stripe.com",
				StatementDescriptor: "RECYCLETEK",
				Method:              "standard",
			},
		},
		RateLimit: RateLimitConfig{
			GlobalPerHour:      1000,
			DepositPerSecond:   5,
			KioskDepositPerSec: 10,
			WithdrawPerSecond:  5,
			Window:             time.Second,
		},
		Detection: DetectionConfig{
			Timeout:        30 * time.Second,
			MaxUploadBytes: 10 << 20,
			MinConfidence:  0.15,
		},
		Cloudinary: CloudinaryConfig{
			Folder: "recycletek/detections",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by CONFIG_FILE,
// and environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := Defaults()
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func mergeFile(cfg *Config, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()
	rates := cfg.Ledger.MaterialRates
	cfg.Ledger.MaterialRates = nil
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
		return fmt.Errorf("decode config file: %w", err)
	}
	// a rate table in the file replaces the default one instead of merging into it
	if cfg.Ledger.MaterialRates == nil {
		cfg.Ledger.MaterialRates = rates
	}
	return nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Env, "APP_ENV")
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.Server.AllowedOrigins = parseCSV(v)
	}

	setString(&cfg.Database.Driver, "DATABASE_DRIVER")
	setString(&cfg.Database.DSN, "DATABASE_URL")

	setString(&cfg.Auth.FirebaseServiceAccount, "FIREBASE_SERVICE_ACCOUNT")
	setString(&cfg.Auth.FirebaseProjectID, "FIREBASE_PROJECT_ID")
	setString(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setString(&cfg.Auth.JWKSURL, "AUTH_JWKS_URL")
	setString(&cfg.Auth.JWTIssuer, "AUTH_JWT_ISSUER")
	setString(&cfg.Auth.TestUserEmail, "TEST_USER_EMAIL")
	if err := setBool(&cfg.Auth.AllowTestBypassInProduction, "ALLOW_TEST_BYPASS_IN_PRODUCTION"); err != nil {
		return err
	}

	setString(&cfg.Ledger.Currency, "LEDGER_CURRENCY")
	if err := setInt(&cfg.Ledger.MaxUnitsPerDeposit, "MAX_UNITS_PER_DEPOSIT"); err != nil {
		return err
	}
	if err := setInt64(&cfg.Ledger.MinWithdrawalCents, "MIN_WITHDRAWAL_CENTS"); err != nil {
		return err
	}

	setString(&cfg.Payout.Provider, "PAYOUT_PROVIDER")
	setString(&cfg.Payout.WebhookSecret, "PAYOUT_WEBHOOK_SECRET")
	if err := setDuration(&cfg.Payout.Timeout, "PAYOUT_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&cfg.Payout.StalePendingAge, "PAYOUT_STALE_PENDING_AGE"); err != nil {
		return err
	}
	setString(&cfg.Payout.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	if os.Getenv("PAYOUT_PROVIDER") == "" && strings.HasPrefix(cfg.Payout.Stripe.SecretKey, "sk_") {
		cfg.Payout.Provider = "stripe"
	}
	setString(&cfg.Payout.B2C.BaseURL, "B2C_BASE_URL")
	setString(&cfg.Payout.B2C.TokenURL, "B2C_TOKEN_URL")
	setString(&cfg.Payout.B2C.ClientID, "B2C_CLIENT_ID")
	setString(&cfg.Payout.B2C.ClientSecret, "B2C_CLIENT_SECRET")
	setString(&cfg.Payout.B2C.CallbackURL, "B2C_CALLBACK_URL")

	if err := setInt(&cfg.RateLimit.GlobalPerHour, "RATE_LIMIT_GLOBAL_PER_HOUR"); err != nil {
		return err
	}
	if err := setInt(&cfg.RateLimit.DepositPerSecond, "RATE_LIMIT_DEPOSIT_PER_SECOND"); err != nil {
		return err
	}
	if err := setInt(&cfg.RateLimit.KioskDepositPerSec, "RATE_LIMIT_KIOSK_DEPOSIT_PER_SECOND"); err != nil {
		return err
	}
	if err := setInt(&cfg.RateLimit.WithdrawPerSecond, "RATE_LIMIT_WITHDRAW_PER_SECOND"); err != nil {
		return err
	}

	setString(&cfg.Detection.URL, "DETECTION_URL")
	if err := setDuration(&cfg.Detection.Timeout, "DETECTION_TIMEOUT"); err != nil {
		return err
	}

	setString(&cfg.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&cfg.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	setString(&cfg.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	return nil
}

// Validate rejects configurations the ledger cannot run safely with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	switch c.Payout.Provider {
	case "stripe", "b2c", "stub":
	default:
		return fmt.Errorf("unknown payout provider %q", c.Payout.Provider)
	}
	if c.Payout.Provider == "stripe" && c.Payout.Stripe.SecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required for the stripe payout provider")
	}
	if c.Payout.Provider == "stub" && c.IsProduction() {
		return errors.New("the stub payout provider cannot run in production")
	}
	if len(c.Ledger.MaterialRates) == 0 {
		return errors.New("at least one material rate is required")
	}
	for material, rate := range c.Ledger.MaterialRates {
		if rate <= 0 {
			return fmt.Errorf("rate for %q must be positive", material)
		}
	}
	if c.Ledger.MaxUnitsPerDeposit <= 0 {
		return errors.New("max units per deposit must be positive")
	}
	if c.Ledger.MinWithdrawalCents <= 0 {
		return errors.New("minimum withdrawal must be positive")
	}
	if c.Payout.Timeout <= 0 {
		return errors.New("payout timeout must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Env, "production")
}

// TestBypassEnabled reports whether the X-Test-User-Email bypass may be honoured.
func (c *Config) TestBypassEnabled() bool {
	if c.Auth.TestUserEmail == "" {
		return false
	}
	return !c.IsProduction() || c.Auth.AllowTestBypassInProduction
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setInt64(dst *int64, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s value %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

func parseCSV(input string) []string {
	var out []string
	for _, part := range strings.Split(input, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
