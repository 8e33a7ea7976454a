package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/joho/godotenv"

	"recycletek/config"
	"recycletek/internal/auth"
	"recycletek/internal/database"
	"recycletek/internal/domain"
	"recycletek/internal/logging"
	"recycletek/internal/router"
	"recycletek/internal/service"
	"recycletek/pkg/cloudinary"
	"recycletek/pkg/detection"
	"recycletek/pkg/payout"
)

func main() {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "error", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Logging)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(ctx, &cfg.Database, log)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}

	verifier, err := newVerifier(ctx, cfg.Auth, log)
	if err != nil {
		return err
	}
	provider, err := newPayoutProvider(cfg, log)
	if err != nil {
		return err
	}

	deps := router.Deps{DB: db, Verifier: verifier, Payout: provider, Log: log}

	if cfg.Detection.URL != "" {
		det := detection.NewHTTPDetector(cfg.Detection.URL, cfg.Detection.Timeout, domain.DetectionLabels, cfg.Detection.MinConfidence, log)
		// the model sidecar may still be loading; detection reports not-ready until it answers
		go func() {
			if err := det.Open(ctx, 5*time.Minute); err != nil {
				log.Warn("detection unavailable", "error", err)
			}
		}()
		defer det.Close()
		deps.Detector = det
	}
	if cfg.Cloudinary.CloudName != "" {
		archive, err := cloudinary.New(cfg.Cloudinary.CloudName, cfg.Cloudinary.APIKey, cfg.Cloudinary.APISecret, cfg.Cloudinary.Folder)
		if err != nil {
			return err
		}
		deps.Archive = archive
	}

	if cfg.TestBypassEnabled() {
		log.Warn("test user bypass is ENABLED: X-Test-User-Email authenticates without a token",
			"email", cfg.Auth.TestUserEmail, "env", cfg.Server.Env)
	}

	app := router.Setup(cfg, deps)
	defer app.Close()

	go watchStalePending(ctx, app.Wallets, cfg.Payout.StalePendingAge, log)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Server.Port, "env", cfg.Server.Env, "payout_provider", provider.Name())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}

// newVerifier prefers Firebase when it is configured, then a local JWT setup.
// With neither, bearer tokens are rejected and only kiosk ids (and the test bypass) work.
func newVerifier(ctx context.Context, cfg config.AuthConfig, log *slog.Logger) (auth.Verifier, error) {
	var next auth.Verifier
	switch {
	case cfg.FirebaseServiceAccount != "" || cfg.FirebaseProjectID != "":
		fv, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseServiceAccount, cfg.FirebaseProjectID)
		if err != nil {
			return nil, err
		}
		log.Info("bearer tokens verified with firebase", "project_id", cfg.FirebaseProjectID)
		next = fv
	case cfg.JWTSecret != "" || cfg.JWKSURL != "":
		var keys jwkset.Storage
		if cfg.JWKSURL != "" {
			k, err := auth.NewJWKSStorage(cfg.JWKSURL)
			if err != nil {
				return nil, err
			}
			keys = k
		}
		log.Info("bearer tokens verified as jwt", "jwks", cfg.JWKSURL != "", "issuer", cfg.JWTIssuer)
		next = auth.NewJWTVerifier(cfg.JWTSecret, keys, cfg.JWTIssuer)
	default:
		log.Warn("no token verifier configured; bearer tokens will be rejected")
		return nil, nil
	}
	return auth.NewCachingVerifier(next, cfg.TokenCacheSize, cfg.TokenCacheTTL)
}

func newPayoutProvider(cfg *config.Config, log *slog.Logger) (payout.Provider, error) {
	p := cfg.Payout
	switch p.Provider {
	case "stripe":
		return payout.NewStripeProvider(p.Stripe.BaseURL, p.Stripe.SecretKey, p.Stripe.StatementDescriptor, p.Stripe.Method, log), nil
	case "b2c":
		return payout.NewB2CProvider(p.B2C.BaseURL, p.B2C.TokenURL, p.B2C.ClientID, p.B2C.ClientSecret, p.B2C.CallbackURL, log), nil
	case "stub":
		log.Warn("payout provider is stub: withdrawals complete without moving money")
		return payout.StubProvider{}, nil
	default:
		return nil, errors.New("unknown payout provider " + p.Provider)
	}
}

func watchStalePending(ctx context.Context, wallets *service.WalletService, age time.Duration, log *slog.Logger) {
	if age <= 0 {
		return
	}
	ticker := time.NewTicker(age / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := wallets.ReportStalePending(ctx, time.Now().Add(-age))
			if err != nil {
				log.Error("stale withdrawal check", "error", err)
				continue
			}
			if n > 0 {
				log.Warn("withdrawals awaiting reconciliation", "count", n)
			}
		}
	}
}
