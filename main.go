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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"github.com/ken-eddy/simplesales/auth"
	"github.com/ken-eddy/simplesales/catalog"
	"github.com/ken-eddy/simplesales/config"
	"github.com/ken-eddy/simplesales/controllers"
	"github.com/ken-eddy/simplesales/database"
	"github.com/ken-eddy/simplesales/entitlement"
	"github.com/ken-eddy/simplesales/inventory"
	"github.com/ken-eddy/simplesales/middleware"
	"github.com/ken-eddy/simplesales/payments"
	"github.com/ken-eddy/simplesales/reports"
	"github.com/ken-eddy/simplesales/routes"
	"github.com/ken-eddy/simplesales/sales"
	"github.com/ken-eddy/simplesales/store"
)

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}

	// Redis is optional: without it entitlements are read from the database
	// every time and rate limits are kept per process.
	var (
		rdb     *redis.Client
		cache   entitlement.Cache
		limiter middleware.Limiter = middleware.NewLocalLimiter()
	)
	if cfg.RedisAddr != "" {
		rdb, err = database.NewRedisClient(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer rdb.Close()
		cache = entitlement.NewRedisCache(rdb, cfg.EntitlementCacheTTL)
		limiter = middleware.NewRedisLimiter(rdb)
	}

	gate := entitlement.NewGate(store.NewEntitlementStore(db), cache, logger)

	var mailer auth.Mailer = auth.LogMailer{Logger: logger}
	if cfg.ResendAPIKey != "" {
		mailer = auth.NewResendMailer(cfg.ResendAPIKey, cfg.ResendFromEmail)
	}
	authService := auth.NewService(
		store.NewUserStore(db),
		auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL),
		mailer,
		cfg.FrontendResetURL,
		cfg.PasswordResetTTL,
		logger,
	)

	saleStore := store.NewSaleStore(db, cfg.SaleLockTimeout)
	paymentService := payments.NewService(
		store.NewPaymentStore(db),
		payments.NewPaystack(cfg.PaystackBaseURL, cfg.PaystackSecretKey),
		gate,
		payments.Prices{WeeklyKobo: cfg.WeeklyPriceKobo, MonthlyKobo: cfg.MonthlyPriceKobo},
		cfg.PaystackSecretKey,
		logger,
	)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := routes.NewRouter(routes.Options{
		CORSOrigins:    cfg.CORSOrigins,
		TrustedProxies: cfg.TrustedProxies,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	routes.SetupRoutes(router, routes.Deps{
		Users: controllers.NewUserController(authService, cfg.AccessTokenTTL, cfg.InternalAdminSecret),
		Products: controllers.NewProductController(
			catalog.NewService(store.NewProductStore(db), logger),
			inventory.NewService(store.NewInventoryStore(db), logger),
		),
		Sales: controllers.NewSalesController(
			sales.NewEngine(saleStore, logger),
			sales.NewHistory(saleStore, gate, cfg.FreeHistoryDays),
		),
		Reports: controllers.NewReportsController(
			reports.NewService(store.NewReportStore(db), gate, cfg.FreeHistoryDays, logger),
		),
		Business: controllers.NewBusinessController(gate, paymentService, reports.NewAdmin(store.NewPlatformStore(db))),
		Auth:     authService,
		Limiter:  limiter,
		Logger:   logger,
		Health: func(ctx context.Context) error {
			if err := database.Ping(ctx, db); err != nil {
				return err
			}
			if rdb != nil {
				return rdb.Ping(ctx).Err()
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr, "env", cfg.Env)
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

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
