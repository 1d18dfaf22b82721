package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-pos/internal/app"
	jobmetrics "github.com/odyssey-erp/odyssey-pos/internal/jobs"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

func main() {
	if app.SkipStartup(slog.Default(), "worker") {
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	} else if err := redisClient.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}

	service := ledger.NewService(ledger.NewRepository(pool), ledger.ServiceConfig{
		Location:       cfg.Location(),
		StorageTimeout: cfg.StorageTimeout,
		Logger:         logger,
	})
	closeJob := jobs.NewDailyCloseJob(service, cfg.Location(), logger, jobmetrics.NewMetrics(nil))

	closeTask, err := jobs.NewDailyCloseTask(jobs.DailyClosePayload{})
	if err != nil {
		logger.Error("build daily close task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Location:  cfg.Location(),
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDailyClose, Handler: closeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.DailyCloseCron, Task: closeTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("starting worker", slog.String("daily_close_cron", cfg.DailyCloseCron), slog.String("timezone", cfg.Location().String()))
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
