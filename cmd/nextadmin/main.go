package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zubair-sh/next-admin/internal/app"
	"github.com/zubair-sh/next-admin/internal/auth"
	"github.com/zubair-sh/next-admin/internal/authz"
	"github.com/zubair-sh/next-admin/internal/identity"
	"github.com/zubair-sh/next-admin/internal/observability"
	"github.com/zubair-sh/next-admin/internal/permissions"
	"github.com/zubair-sh/next-admin/internal/platform/cache"
	"github.com/zubair-sh/next-admin/internal/platform/db"
	"github.com/zubair-sh/next-admin/internal/ratelimit"
	"github.com/zubair-sh/next-admin/internal/roles"
	"github.com/zubair-sh/next-admin/internal/users"
	"github.com/zubair-sh/next-admin/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, db.Config{
		DSN:             cfg.PGDSN,
		MaxConns:        cfg.PGMaxConns,
		MinConns:        cfg.PGMinConns,
		MaxConnLifetime: cfg.PGConnLifetime,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	tokenManager, err := auth.NewTokenManager(cfg.JWTSecret, "next-admin", cfg.AccessTTL)
	if err != nil {
		logger.Error("init token manager", slog.Any("error", err))
		os.Exit(1)
	}
	refreshStore := auth.NewRefreshStore(redisClient, cfg.RefreshTTL)
	resetStore := auth.NewResetStore(redisClient, cfg.ResetTTL)
	loginLimiter := ratelimit.NewFixedWindow(redisClient, cfg.LoginRateLimit, cfg.LoginRateWindow)

	principals := authz.NewStore(dbpool)
	authn := authz.Middleware{Verifier: tokenManager, Principals: principals, Logger: logger}

	provider := identity.NewLocalProvider(dbpool)

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	mailClient, err := jobs.NewClient(redisOpts, cfg.AppBaseURL)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mailClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	authService := auth.NewService(provider, auth.NewPGRepository(dbpool), principals,
		tokenManager, refreshStore, resetStore, loginLimiter, mailClient, logger)
	authHandler := auth.NewHandler(authService, authn, "/api/auth", cfg.IsProduction())

	usersHandler := users.NewHandler(
		users.NewService(users.NewRepository(dbpool), provider, logger), authn)
	rolesHandler := roles.NewHandler(
		roles.NewService(roles.NewRepository(dbpool)), authn)
	permissionsHandler := permissions.NewHandler(
		permissions.NewService(permissions.NewRepository(dbpool)), authn)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
