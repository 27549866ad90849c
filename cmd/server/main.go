package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/irfndi/gutsense-go/internal/api"
	"github.com/irfndi/gutsense-go/internal/api/handlers"
	"github.com/irfndi/gutsense-go/internal/cache"
	"github.com/irfndi/gutsense-go/internal/config"
	"github.com/irfndi/gutsense-go/internal/correlation"
	"github.com/irfndi/gutsense-go/internal/database"
	"github.com/irfndi/gutsense-go/internal/logging"
	"github.com/irfndi/gutsense-go/internal/observability"
	"github.com/irfndi/gutsense-go/internal/services"
	"github.com/irfndi/gutsense-go/internal/telemetry"
)

const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; real deployments use the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := observability.InitSentry(cfg.Sentry, cfg.Telemetry.ServiceVersion, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Sentry: %v\n", err)
	}
	defer observability.Flush(context.Background())

	logging.ConfigureLogrus(cfg.LogLevel, os.Stdout)
	logger := newLogger(cfg)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := logger.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to shutdown logger: %v\n", err)
		}
	}()

	if err := telemetry.InitTelemetry(telemetry.TelemetryConfig{
		Enabled:        cfg.Telemetry.Enabled,
		Exporter:       cfg.Telemetry.Exporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
	}); err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetry.Shutdown(); err != nil {
			logrus.WithError(err).Error("Failed to shutdown telemetry")
		}
	}()

	policies := services.DefaultRetryPolicies()

	var db *database.PostgresDB
	err = services.ExecuteWithRetry(context.Background(), "database_connect", policies["database_connect"], func(ctx context.Context) error {
		var connErr error
		db, connErr = database.NewPostgresConnection(cfg.Database)
		return connErr
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	pool := database.NewTracedPool(db.Pool)
	if err := database.Migrate(context.Background(), pool); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	var redisClient *database.RedisClient
	err = services.ExecuteWithRetry(context.Background(), "redis_connect", policies["redis_connect"], func(ctx context.Context) error {
		var connErr error
		redisClient, connErr = database.NewRedisConnection(cfg.Redis)
		return connErr
	})
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer redisClient.Close()

	app, err := newApplication(cfg, pool, db, redisClient, logger)
	if err != nil {
		return err
	}
	defer app.cache.LogStats()

	app.scheduler.Start()
	defer app.scheduler.Stop()

	// Manual runs wait for the engine, so the write timeout covers a full run.
	runTimeout, _ := cfg.Correlation.RunTimeoutDuration()
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           app.router,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      runTimeout + 10*time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.LogStartup(cfg.Telemetry.ServiceName, cfg.Telemetry.ServiceVersion, cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
		logger.LogShutdown(cfg.Telemetry.ServiceName, "signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logrus.Info("Server exited gracefully")
	return nil
}

// application is the wired analysis pipeline and its HTTP surface.
type application struct {
	router    *gin.Engine
	scheduler *services.AnalysisScheduler
	cache     *cache.RedisCorrelationCache
}

// newApplication wires the repository, result cache, engine, scheduler and
// routes. The scheduler is returned stopped.
func newApplication(cfg *config.Config, pool database.DatabasePool, dbHealth handlers.HealthChecker, redisClient *database.RedisClient, logger *logging.StandardLogger) (*application, error) {
	resultTTL, err := cfg.Redis.ResultTTLDuration()
	if err != nil {
		return nil, err
	}

	repository := database.NewDiaryRepository(pool, logger)
	resultCache := cache.NewRedisCorrelationCache(redisClient.Client, resultTTL).
		WithLogger(logger).
		WithBreaker(services.NewCircuitBreaker("correlation_cache", services.CacheBreakerConfig()))
	engine := correlation.NewEngine(cache.NewCachedStore(repository, resultCache), cfg.Correlation, logger)

	scheduler, err := services.NewAnalysisScheduler(engine, repository, cfg.Correlation, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis scheduler: %w", err)
	}

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if observability.Enabled(cfg.Sentry) {
		router.Use(sentrygin.New(sentrygin.Options{
			Repanic: true,
			Timeout: 2 * time.Second,
		}))
	}
	router.Use(gin.Recovery())
	api.SetupRoutes(router, api.Dependencies{
		DB:             dbHealth,
		Redis:          redisClient,
		Trigger:        scheduler,
		Reader:         cache.NewCachedReader(resultCache, repository),
		Logger:         logger,
		ServiceName:    cfg.Telemetry.ServiceName,
		Version:        cfg.Telemetry.ServiceVersion,
		Threshold:      cfg.Correlation.SignificanceThreshold,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	return &application{
		router:    router,
		scheduler: scheduler,
		cache:     resultCache,
	}, nil
}

// newLogger builds the application logger. OTLP log export failures fall
// back to stdout only.
func newLogger(cfg *config.Config) *logging.StandardLogger {
	if !cfg.Telemetry.LogExport {
		return logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)
	}

	logger, err := logging.NewStandardOTLPLogger(logging.OTLPConfig{
		Enabled:        true,
		Endpoint:       cfg.Telemetry.OTLPEndpoint,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: cfg.Telemetry.ServiceVersion,
		Environment:    cfg.Environment,
		LogLevel:       cfg.LogLevel,
	})
	if err != nil {
		logrus.WithError(err).Warn("OTLP log export disabled")
	}
	return logger
}
