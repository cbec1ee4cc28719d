package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/crisisbrief/crisisbrief/internal/app"
	"github.com/crisisbrief/crisisbrief/internal/genai"
	jobmetrics "github.com/crisisbrief/crisisbrief/internal/jobs"
	"github.com/crisisbrief/crisisbrief/internal/platform/db"
	"github.com/crisisbrief/crisisbrief/internal/summaries"
	"github.com/crisisbrief/crisisbrief/internal/templates"
	"github.com/crisisbrief/crisisbrief/internal/users"
	"github.com/crisisbrief/crisisbrief/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	genaiClient := genai.NewClient(cfg.GenAIURL)
	if err := genaiClient.Ping(ctx); err != nil {
		logger.Warn("generation service ping", slog.Any("error", err))
	}

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

	metrics := jobmetrics.NewMetrics(nil)

	usersService := users.NewService(users.NewRepository(pool))
	templatesRepo := templates.NewRepository(pool)
	templatesService := templates.NewService(templatesRepo, jobsClient, logger)
	summariesService := summaries.NewService(summaries.NewRepository(pool), jobsClient, logger)

	mailer := jobs.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, logger)

	templateJob := &jobs.TemplateGenerationJob{
		GenAI:     genaiClient,
		Templates: templatesService,
		Users:     usersService,
		Mail:      jobsClient,
		Logger:    logger,
		Metrics:   metrics,
	}
	summaryJob := &jobs.SummaryGenerationJob{
		GenAI:          genaiClient,
		Summaries:      summariesService,
		TemplateSource: templatesRepo,
		Users:          usersService,
		Mail:           jobsClient,
		Logger:         logger,
		Metrics:        metrics,
	}
	healthJob := &jobs.GenAIHealthcheckJob{GenAI: genaiClient, Logger: logger}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeGenerateTemplate, Handler: templateJob.Handle},
			{Type: jobs.TaskTypeGenerateSummary, Handler: summaryJob.Handle},
			{Type: jobs.TaskTypeSendEmail, Handler: mailer.HandleSendEmailTask},
			{Type: jobs.TaskTypeGenAIHealthcheck, Handler: healthJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "@every 5m", Task: jobs.NewGenAIHealthcheckTask(), Options: []asynq.Option{asynq.MaxRetry(0)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
