package routes

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/timelock/internal/auth"
	"github.com/congo-pay/timelock/internal/config"
	"github.com/congo-pay/timelock/internal/funding"
	"github.com/congo-pay/timelock/internal/ledger"
	"github.com/congo-pay/timelock/internal/lock"
	"github.com/congo-pay/timelock/internal/metrics"
	"github.com/congo-pay/timelock/internal/middleware"
	"github.com/congo-pay/timelock/internal/notification"
	"github.com/congo-pay/timelock/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Clock defaults to wall time.
	Clock clock.Clock
}

// Components are the long-lived services built by Setup.
type Components struct {
	Wallets *wallet.Service
	Funding *funding.Service
	Watcher *notification.ReleaseWatcher
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (Components, error) {
	// Enforce DB/Redis presence outside of dev, even though config also checks.
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return Components{}, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return Components{}, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Clock == nil {
		d.Clock = clock.New()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	// Middlewares
	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))
	app.Use(d.Metrics.Middleware())

	// Health
	RegisterHealthRoutes(app, d)

	// Storage, locking and replay protection
	var (
		ledgerBackend ledger.Ledger
		store         wallet.Store
		locker        lock.Locker
		replay        auth.ReplayGuard
	)
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
		store = wallet.NewPostgresStore(d.DB)
	} else {
		mem := ledger.NewInMemory()
		ledgerBackend = mem
		store = wallet.NewMemoryStore(mem)
	}
	if d.Cache != nil {
		locker = lock.NewRedisLocker(d.Cache, d.Cfg.LockTTL, d.Logger)
		replay = auth.NewRedisReplayGuard(d.Cache)
	} else {
		locker = lock.NewKeyedMutex()
		replay = auth.NewMemoryReplayGuard(d.Clock)
	}

	// Services and handlers
	walletSvc := wallet.NewService(wallet.Deps{
		Store:     store,
		Locker:    locker,
		Reserve:   d.Cfg.Rent,
		Clock:     d.Clock,
		Namespace: d.Cfg.Namespace,
		Logger:    d.Logger,
		Observer:  d.Metrics,
	})
	fundingSvc := funding.NewService(ledgerBackend, funding.Config{
		Enabled:   d.Cfg.FaucetEnabled,
		MaxAmount: d.Cfg.FaucetMaxAmount,
	}, d.Logger, d.Metrics)
	notifier := notification.NewLoggerNotifier(d.Logger)
	watcher := notification.NewReleaseWatcher(store, notifier, d.Clock, d.Logger, d.Metrics)

	walletHandler := wallet.NewHandler(walletSvc)
	fundingHandler := funding.NewHandler(fundingSvc)

	// API routes
	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	// Public routes
	RegisterPublicWalletRoutes(api, walletHandler)
	RegisterPublicFundingRoutes(api, fundingHandler)

	// Signed routes
	signedMW := []fiber.Handler{middleware.SignatureAuth(middleware.SignatureConfig{
		MaxSkew: d.Cfg.SignatureMaxSkew,
		Clock:   d.Clock,
		Replay:  replay,
	})}
	if d.Cache != nil {
		signedMW = append(signedMW, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}
	signed := api.Group("", signedMW...)
	signed.Get("/me", func(c *fiber.Ctx) error {
		caller, _ := middleware.Caller(c)
		addr, err := walletSvc.Address(caller)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(fiber.Map{
			"identity":       caller.String(),
			"wallet_address": addr.String(),
		})
	})
	RegisterWalletRoutes(signed, walletHandler)
	RegisterFundingRoutes(signed, fundingHandler, middleware.RateLimit(d.Cache, "faucet", d.Cfg.FaucetRatePerMinute))

	return Components{Wallets: walletSvc, Funding: fundingSvc, Watcher: watcher}, nil
}
