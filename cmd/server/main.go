package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/lcgerke/invoice-orchestrator/internal/adr"
	"github.com/lcgerke/invoice-orchestrator/internal/config"
	"github.com/lcgerke/invoice-orchestrator/internal/job"
	"github.com/lcgerke/invoice-orchestrator/internal/logging"
	"github.com/lcgerke/invoice-orchestrator/internal/metrics"
	"github.com/lcgerke/invoice-orchestrator/internal/notify"
	"github.com/lcgerke/invoice-orchestrator/internal/orchestrator"
	"github.com/lcgerke/invoice-orchestrator/internal/recovery"
	"github.com/lcgerke/invoice-orchestrator/internal/repository/postgres"
	"github.com/lcgerke/invoice-orchestrator/internal/scheduler"
	"github.com/lcgerke/invoice-orchestrator/internal/stale"
	"github.com/lcgerke/invoice-orchestrator/internal/sync"
)

func main() {
	log, err := logging.New(os.Getenv("APP_ENV"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	appStart := time.Now().UTC()

	dsn := envOrDefault("DATABASE_URL", "postgres://localhost:5432/invoice_orchestrator?sslmode=disable")
	sqlDB, err := postgres.New(dsn)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer sqlDB.Close()
	db := postgres.NewDatabase(sqlDB)

	sourceDSN := envOrDefault("SOURCE_DATABASE_URL", dsn)
	sourceDB, err := postgres.New(sourceDSN)
	if err != nil {
		log.Fatalw("failed to connect to external invoice-aggregation database", "error", err)
	}
	defer sourceDB.Close()
	source := sync.NewPostgresSource(sourceDB.DB)

	cfgHolder, err := config.NewHolder(db.ConfigurationRepository(), log)
	if err != nil {
		log.Fatalw("failed to initialize configuration", "error", err)
	}
	if err := cfgHolder.Refresh(context.Background()); err != nil {
		log.Warnw("failed to load configuration row, using fallback", "error", err)
	}
	cfg := cfgHolder.Get()
	if result := config.Validate(cfg); result.HasErrors() {
		log.Fatalw("invalid configuration", "summary", result.Summary())
	} else if result.HasWarnings() {
		log.Warnw("configuration warnings", "summary", result.Summary())
	}

	metricsRegistry := metrics.NewRegistry()

	adrBaseURL := envOrDefault("ADR_BASE_URL", "http://localhost:9000")
	adrClient := adr.NewClient(adrBaseURL, log)

	queue := orchestrator.NewQueue()
	core := orchestrator.NewCore(db, adrClient, queue, cfg, log)
	syncer := sync.NewSyncer(db, source, log)
	finalizer := stale.NewFinalizer(db, cfg.BatchSize, log)
	emailService := notify.NewLoggingEmailService(log)

	configRow, _ := db.ConfigurationRepository().Get(context.Background())
	startupDelay := config.StartupDelay(configRow)
	grace := config.GracePeriod(configRow)
	if startupDelay > 0 {
		log.Infow("delaying startup recovery", "delay", startupDelay)
		time.Sleep(startupDelay)
	}
	rec := recovery.New(db, emailService, log)
	recResult, err := rec.Run(context.Background(), appStart, grace)
	if err != nil {
		log.Errorw("startup recovery failed", "error", err)
	} else {
		log.Infow("startup recovery completed",
			"executions_failed", recResult.ExecutionsFailed,
			"runs_interrupted", recResult.RunsInterrupted,
		)
	}

	redisAddr := envOrDefault("REDIS_ADDR", "localhost:6379")
	jobScheduler, err := job.NewJobScheduler(redisAddr)
	if err != nil {
		log.Fatalw("failed to connect job scheduler to redis", "error", err)
	}
	defer jobScheduler.Close()

	jobHandlers := job.NewJobHandlers(syncer, core, finalizer, log)
	mux := asynq.NewServeMux()
	jobHandlers.RegisterHandlers(mux)

	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency: cfg.MaxParallelRequests,
			Queues: map[string]int{
				"orchestrator_periodic": 1,
			},
		},
	)
	go func() {
		if err := asynqServer.Run(mux); err != nil {
			log.Fatalw("asynq worker server stopped", "error", err)
		}
	}()
	defer asynqServer.Shutdown()

	cronDriver := scheduler.NewDriver(jobScheduler, log)
	if err := cronDriver.Register(); err != nil {
		log.Fatalw("failed to register periodic schedules", "error", err)
	}
	cronDriver.Start()
	defer cronDriver.Stop()

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	e.GET("/healthz", func(c echo.Context) error {
		if err := db.Health(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(metricsRegistry.Handler()))

	e.POST("/api/runs", func(c echo.Context) error {
		requestedBy := c.QueryParam("requested_by")
		if requestedBy == "" {
			requestedBy = "api"
		}
		info, err := jobScheduler.EnqueueOrchestrationRun(c.Request().Context(), requestedBy)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusAccepted, map[string]string{"task_id": info.ID, "queue": info.Queue})
	})

	e.GET("/api/runs/:id", func(c echo.Context) error {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		}
		run, err := db.OrchestrationRunRepository().GetByID(c.Request().Context(), id)
		if err != nil {
			return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, run)
	})

	addr := envOrDefault("SERVER_ADDR", ":8080")
	go func() {
		log.Infow("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed to start", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Infow("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Errorw("server shutdown error", "error", err)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
