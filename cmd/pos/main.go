package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-pos/cmd/pos/cli"
	"github.com/odyssey-erp/odyssey-pos/internal/app"
	"github.com/odyssey-erp/odyssey-pos/internal/ledger"
	"github.com/odyssey-erp/odyssey-pos/internal/observability"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-pos/internal/platform/db"
	"github.com/odyssey-erp/odyssey-pos/internal/schema"
	"github.com/odyssey-erp/odyssey-pos/jobs"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if app.SkipStartup(slog.Default(), "pos") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}
	var code exitCode
	if errors.As(err, &code) {
		stop()
		os.Exit(int(code))
	}
	_, _ = fmt.Fprintln(os.Stderr, err)
	stop()
	os.Exit(cli.ExitFailure)
}

// runtime holds what every subcommand needs: configuration, a logger and the pool.
type runtime struct {
	cfg    *app.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, pool: pool}, nil
}

func (rt *runtime) close() {
	rt.pool.Close()
}

func (rt *runtime) ledgerService(metrics *ledger.Metrics) (*ledger.Service, error) {
	numberer, err := ledger.NewSnowflakeNumberer(rt.cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("bill numberer: %w", err)
	}
	return ledger.NewService(ledger.NewRepository(rt.pool), ledger.ServiceConfig{
		Location:       rt.cfg.Location(),
		StorageTimeout: rt.cfg.StorageTimeout,
		Numberer:       numberer,
		Logger:         rt.logger,
		Metrics:        metrics,
	}), nil
}

func (rt *runtime) schemaManager() *schema.Manager {
	return schema.NewManager(schema.NewPoolRunner(rt.pool), rt.logger)
}

func serve(ctx context.Context, rt *runtime) error {
	cfg, logger := rt.cfg, rt.logger

	if err := rt.schemaManager().Initialize(ctx, cfg.SchemaVersion); err != nil {
		logger.Error("initialize schema", slog.Int("version", cfg.SchemaVersion), slog.Any("error", err))
		return err
	}

	metrics := observability.NewMetrics()
	service, err := rt.ledgerService(ledger.NewMetrics(metrics.Registerer()))
	if err != nil {
		logger.Error("init ledger", slog.Any("error", err))
		return err
	}

	checks := map[string]app.HealthCheck{
		"postgres": func(ctx context.Context) error { return rt.pool.Ping(ctx) },
	}

	var jobHandler *jobs.Handler
	if cfg.JobsEnabled {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, job endpoints disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }

			inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
			defer func() {
				if err := inspector.Close(); err != nil {
					logger.Warn("inspector close", slog.Any("error", err))
				}
			}()
			jobHandler = jobs.NewHandler(inspector, logger)
		}
	}

	router := app.NewRouter(app.RouterParams{
		Logger:        logger,
		Config:        cfg,
		LedgerHandler: ledger.NewHandler(logger, service),
		JobHandler:    jobHandler,
		Metrics:       metrics,
		HealthChecks:  checks,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.Int("schema_version", cfg.SchemaVersion),
			slog.String("timezone", cfg.Location().String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-serveErr:
		if ok {
			logger.Error("http server", slog.Any("error", err))
			return err
		}
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return err
	}
	return nil
}
