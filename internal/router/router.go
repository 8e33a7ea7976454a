package router

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"recycletek/config"
	"recycletek/internal/auth"
	"recycletek/internal/handler"
	"recycletek/internal/identity"
	"recycletek/internal/middleware"
	"recycletek/internal/repository"
	"recycletek/internal/service"
	"recycletek/internal/ws"
	"recycletek/pkg/cloudinary"
	"recycletek/pkg/detection"
	"recycletek/pkg/payout"
)

// Deps are the collaborators built in main. Detector and Archive may be nil.
type Deps struct {
	DB       *gorm.DB
	Verifier auth.Verifier
	Payout   payout.Provider
	Detector detection.Detector
	Archive  cloudinary.Archive
	Log      *slog.Logger
}

// App is the wired HTTP application.
type App struct {
	Engine      *gin.Engine
	Wallets     *service.WalletService
	Withdrawals *service.WithdrawalService
	Hub         *ws.WalletHub

	limiters []*middleware.InMemoryRateLimiter
}

// Close stops background rate-limiter cleanup.
func (a *App) Close() {
	for _, l := range a.limiters {
		l.Stop()
	}
}

func Setup(cfg *config.Config, deps Deps) *App {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Log

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	r.Use(middleware.RequestLogger(log))

	global := middleware.NewInMemoryRateLimiter(cfg.RateLimit.GlobalPerHour, time.Hour)
	depositLimiter := middleware.NewInMemoryRateLimiter(cfg.RateLimit.DepositPerSecond, cfg.RateLimit.Window)
	kioskLimiter := middleware.NewInMemoryRateLimiter(cfg.RateLimit.KioskDepositPerSec, cfg.RateLimit.Window)
	withdrawLimiter := middleware.NewInMemoryRateLimiter(cfg.RateLimit.WithdrawPerSecond, cfg.RateLimit.Window)
	r.Use(middleware.RateLimitByIP(global, log))

	// Repositories
	userRepo := repository.NewUserRepository(deps.DB)
	walletRepo := repository.NewWalletRepository(deps.DB, cfg.Ledger.Currency)
	txnRepo := repository.NewTransactionRepository(deps.DB)
	withdrawalRepo := repository.NewWithdrawalRepository(deps.DB)
	ledger := repository.NewLedger(deps.DB, cfg.Ledger.Currency)

	hub := ws.NewWalletHub(log)

	testEmail := ""
	if cfg.TestBypassEnabled() {
		testEmail = cfg.Auth.TestUserEmail
	}
	resolver := identity.NewResolver(identity.Options{
		Users:     userRepo,
		Verifier:  deps.Verifier,
		TestEmail: testEmail,
		Log:       log,
	})

	// Services
	depositSvc := service.NewDepositService(ledger, cfg.Ledger, hub, log)
	withdrawalSvc := service.NewWithdrawalService(ledger, deps.Payout, cfg.Ledger, cfg.Payout, hub, log)
	walletSvc := service.NewWalletService(walletRepo, txnRepo, withdrawalRepo, cfg.Ledger, log)

	// Handlers
	depositHandler := handler.NewDepositHandler(depositSvc, log)
	withdrawalHandler := handler.NewWithdrawalHandler(withdrawalSvc, log)
	walletHandler := handler.NewWalletHandler(walletSvc, log)
	kioskHandler := handler.NewKioskHandler(resolver, resolver.Provisioner(), log)
	webhookHandler := handler.NewPayoutWebhookHandler(withdrawalSvc, cfg.Payout.WebhookSecret, log)
	detectionHandler := handler.NewDetectionHandler(deps.Detector, deps.Archive, cfg.Detection.MaxUploadBytes, log)
	healthHandler := handler.NewHealthHandler(deps.DB)

	identify := middleware.Identify(resolver, log)
	kioskOnly := middleware.KioskOnly(resolver, log)

	// Public
	r.GET("/health", healthHandler.Health)
	r.POST("/validate-kiosk-id", kioskHandler.Validate)
	r.POST("/webhooks/payout", webhookHandler.Handle)
	r.POST("/detect-bottles", detectionHandler.Detect)
	r.GET("/model-status", detectionHandler.ModelStatus)
	r.GET("/ws/wallet", ws.UpgradeWalletWS(resolver, walletRepo, hub))

	// Identified
	r.POST("/deposit", identify, middleware.RateLimitByUser(depositLimiter, "deposit", log), depositHandler.Create)
	r.POST("/deposit/kiosk", kioskOnly, middleware.RateLimitByUser(kioskLimiter, "kiosk_deposit", log), depositHandler.CreateKiosk)
	r.POST("/withdraw", identify, middleware.RateLimitByUser(withdrawLimiter, "withdraw", log), withdrawalHandler.Create)

	authed := r.Group("", identify)
	{
		authed.GET("/wallet", walletHandler.GetBalance)
		authed.GET("/transactions", walletHandler.ListTransactions)
		authed.GET("/withdrawals", walletHandler.ListWithdrawals)
		authed.GET("/user/kiosk-id", kioskHandler.GetKioskID)
	}

	return &App{
		Engine:      r,
		Wallets:     walletSvc,
		Withdrawals: withdrawalSvc,
		Hub:         hub,
		limiters:    []*middleware.InMemoryRateLimiter{global, depositLimiter, kioskLimiter, withdrawLimiter},
	}
}
