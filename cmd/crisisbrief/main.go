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

	"github.com/crisisbrief/crisisbrief/internal/app"
	"github.com/crisisbrief/crisisbrief/internal/auth"
	"github.com/crisisbrief/crisisbrief/internal/authz"
	"github.com/crisisbrief/crisisbrief/internal/observability"
	"github.com/crisisbrief/crisisbrief/internal/platform/cache"
	"github.com/crisisbrief/crisisbrief/internal/platform/db"
	"github.com/crisisbrief/crisisbrief/internal/shared"
	"github.com/crisisbrief/crisisbrief/internal/summaries"
	"github.com/crisisbrief/crisisbrief/internal/templates"
	"github.com/crisisbrief/crisisbrief/internal/users"
	"github.com/crisisbrief/crisisbrief/internal/view"
	"github.com/crisisbrief/crisisbrief/jobs"
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

	if err := db.Migrate(cfg.PGDSN); err != nil {
		logger.Error("run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "crisisbrief_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	views, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo)
	resolver := authz.NewResolver(authz.SourceFunc(usersService.IdentityByID))
	gate := authz.Middleware{Resolver: resolver, Sessions: sessionManager, Logger: logger}

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, logger)
	authHandler := auth.NewHandler(logger, authService, views, sessionManager, csrfManager)

	jobsClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	templatesRepo := templates.NewRepository(pool)
	templatesService := templates.NewService(templatesRepo, jobsClient, logger)
	templatesHandler := templates.NewHandler(logger, templatesService, views, csrfManager, gate)

	summariesRepo := summaries.NewRepository(pool)
	summariesService := summaries.NewService(summariesRepo, jobsClient, logger)
	summariesHandler := summaries.NewHandler(logger, summariesService, templatesService, views, csrfManager, gate)

	usersHandler := users.NewHandler(logger, usersService, views, csrfManager, sessionManager, gate)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        views,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		UsersHandler:     usersHandler,
		TemplatesHandler: templatesHandler,
		SummariesHandler: summariesHandler,
		JobHandler:       jobHandler,
		Gate:             gate,
		Metrics:          metrics,
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
