package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/edunet/search-gateway/internal/analytics"
	"github.com/edunet/search-gateway/internal/api"
	"github.com/edunet/search-gateway/internal/cache"
	"github.com/edunet/search-gateway/internal/config"
	"github.com/edunet/search-gateway/internal/directory"
	"github.com/edunet/search-gateway/internal/geocode"
	"github.com/edunet/search-gateway/internal/observability"
	"github.com/edunet/search-gateway/internal/resilience"
	"github.com/edunet/search-gateway/internal/session"
	"github.com/edunet/search-gateway/internal/suggest"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Initialize logger
	logger, err := observability.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("starting search gateway",
		zap.String("service", cfg.Observability.ServiceName),
	)

	// Initialize tracing
	tracerShutdown, err := observability.InitTracer(cfg.Observability.ServiceName)
	if err != nil {
		logger.Warn("tracing initialization failed, continuing without tracing", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients
	redisCache, err := cache.NewRedisCache(cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("initializing redis: %w", err)
	}
	defer redisCache.Close()
	logger.Info("redis cache initialized")

	// Analytics is best-effort: the gateway serves searches without it.
	var chClient *analytics.Client
	chClient, err = analytics.NewClient(cfg.ClickHouse, logger)
	if err != nil {
		logger.Warn("clickhouse initialization failed, analytics will be unavailable", zap.Error(err))
		chClient = nil
	} else {
		defer chClient.Close()
		ensureErr := resilience.Retry(ctx, cfg.Search.StartupRetry, func() error {
			return chClient.EnsureTables(ctx)
		})
		if ensureErr != nil {
			logger.Warn("clickhouse table creation failed", zap.Error(ensureErr))
		}
		logger.Info("clickhouse analytics sink initialized")
	}

	dirClient := directory.NewClient(cfg.Directory, cfg.Search, logger)
	resolver := geocode.NewResolver(cfg.Geocode, redisCache, logger)
	suggester := suggest.New(dirClient, redisCache, cfg.Suggest, logger)

	var analyticsWriter observability.AnalyticsWriter
	if chClient != nil {
		analyticsWriter = chClient
	}
	slowQueryDetector := observability.NewSlowQueryDetector(
		cfg.Search.SlowQuery.WarningThreshold,
		cfg.Search.SlowQuery.CriticalThreshold,
		logger,
		analyticsWriter,
	)

	registry := session.NewRegistry(cfg.Session, logger)
	registry.StartSweeper()
	defer registry.Stop()

	// Initialize HTTP server
	handler := api.NewHandler(api.HandlerDeps{
		Sessions:     registry,
		Directory:    dirClient,
		Resolver:     resolver,
		Suggester:    suggester,
		Cache:        redisCache,
		SlowQuery:    slowQueryDetector,
		Analytics:    chClient,
		QueryTimeout: cfg.Search.QueryTimeout,
		MaxPageSize:  cfg.Session.MaxPageSize,
		Logger:       logger,
	})

	healthHandler := api.NewHealthHandler(logger)
	healthHandler.Register("redis", redisCache)
	healthHandler.Register("directory", dirClient)
	if chClient != nil {
		healthHandler.Register("clickhouse", chClient)
	}

	router := api.NewRouter(handler, healthHandler, cfg.Server.MaxConcurrent, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case err := <-errCh:
		return err
	}

	// Graceful shutdown
	logger.Info("starting graceful shutdown", zap.Duration("timeout", cfg.Server.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new requests
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	// Cancel background operations
	cancel()

	// Shutdown tracing
	if tracerShutdown != nil {
		if err := tracerShutdown(shutdownCtx); err != nil {
			logger.Error("tracer shutdown error", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	return nil
}
