package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/activity-batch-engine/internal/catalog"
	"github.com/kursadbilgin/activity-batch-engine/internal/collaborator"
	"github.com/kursadbilgin/activity-batch-engine/internal/command"
	"github.com/kursadbilgin/activity-batch-engine/internal/config"
	"github.com/kursadbilgin/activity-batch-engine/internal/handler"
	"github.com/kursadbilgin/activity-batch-engine/internal/infra/postgresql"
	"github.com/kursadbilgin/activity-batch-engine/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/activity-batch-engine/internal/infra/redis"
	"github.com/kursadbilgin/activity-batch-engine/internal/observability"
	"github.com/kursadbilgin/activity-batch-engine/internal/orgdir"
	"github.com/kursadbilgin/activity-batch-engine/internal/queue"
	"github.com/kursadbilgin/activity-batch-engine/internal/repository"
	"github.com/kursadbilgin/activity-batch-engine/internal/service"
	"github.com/kursadbilgin/activity-batch-engine/internal/transport"
	"github.com/kursadbilgin/activity-batch-engine/internal/validator"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("activity-batch-engine api stopped with error", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	metrics := observability.NewMetrics()

	pool := postgresql.DefaultPoolOptions()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	pool.MaxIdleConns = cfg.DBMaxIdleConns
	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN, pool)
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer rdb.Close()

	limits, err := infraredis.ParseLimits(cfg.CollaboratorRateLimit, cfg.CollaboratorRateLimits)
	if err != nil {
		return err
	}
	limiter, err := infraredis.NewRedisRateLimiter(rdb, limits)
	if err != nil {
		return err
	}

	contentClient, err := collaborator.New(catalog.Name, cfg.ContentServiceURL, cfg.CollaboratorTimeout(), limiter, metrics)
	if err != nil {
		return err
	}
	contentCatalog, err := catalog.New(contentClient)
	if err != nil {
		return err
	}
	orgClient, err := collaborator.New(orgdir.Name, cfg.OrgServiceURL, cfg.CollaboratorTimeout(), limiter, metrics)
	if err != nil {
		return err
	}
	orgDirectory, err := orgdir.New(orgClient)
	if err != nil {
		return err
	}

	rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, queue.Topology{
		Exchange: cfg.EventExchange,
		Topics:   []string{settings.ActivityBatchTopic, settings.BatchInstructionTopic},
	}, logger)
	if err != nil {
		return fmt.Errorf("rabbitmq initialization failed: %w", err)
	}
	defer rabbit.Close()

	events, err := queue.NewAsyncPublisher(
		queue.NewRabbitMQPublisher(rabbit),
		cfg.EventBufferSize,
		cfg.EventWorkerCount,
		logger,
		metrics,
	)
	if err != nil {
		return err
	}
	// Workers outlive ctx so buffered events are flushed after the HTTP server stops.
	workersDone := make(chan error, 1)
	go func() { workersDone <- events.Start(context.Background()) }()

	batches, err := service.NewBatchService(
		repository.NewGormBatchRepo(db),
		contentCatalog,
		orgDirectory,
		events,
		settings,
		logger,
		metrics,
	)
	if err != nil {
		return err
	}
	enrollments, err := service.NewEnrollmentService(
		repository.NewGormEnrollmentRepo(db),
		contentCatalog,
		events,
		settings,
		logger,
		metrics,
	)
	if err != nil {
		return err
	}
	requests, err := validator.New(settings.Location, time.Now)
	if err != nil {
		return err
	}
	table, err := command.NewTable(batches, enrollments, requests)
	if err != nil {
		return err
	}

	app := fiber.New(fiber.Config{
		AppName:               "activity-batch-engine",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return postgresql.Ping(ctx, db) },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"rabbitmq": rabbit.Healthy,
	})
	if err := handler.RegisterCommandRoutes(app, table); err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("activity-batch-engine api started",
			zap.Int("port", cfg.APIPort),
			zap.Strings("operations", operationNames(table)),
		)
		serveErr <- app.Listen(fmt.Sprintf(":%d", cfg.APIPort))
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-serveErr:
	}

	if err := app.ShutdownWithTimeout(cfg.ShutdownTimeout()); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	_ = events.Close()
	select {
	case err := <-workersDone:
		if err != nil {
			logger.Error("event publisher stopped with error", zap.Error(err))
		}
	case <-time.After(cfg.ShutdownTimeout()):
		logger.Warn("event publisher did not drain before timeout")
	}

	logger.Info("activity-batch-engine api stopped")
	return runErr
}

func operationNames(table *command.Table) []string {
	ops := table.Operations()
	names := make([]string, 0, len(ops))
	for _, op := range ops {
		names = append(names, string(op))
	}
	return names
}
