package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fraudsight/graph-engine/internal/analytics"
	"github.com/fraudsight/graph-engine/internal/builder"
	"github.com/fraudsight/graph-engine/internal/config"
	"github.com/fraudsight/graph-engine/internal/engine"
	"github.com/fraudsight/graph-engine/internal/events"
	"github.com/fraudsight/graph-engine/internal/handlers"
	"github.com/fraudsight/graph-engine/internal/metrics"
	"github.com/fraudsight/graph-engine/internal/middleware"
	"github.com/fraudsight/graph-engine/internal/records"
	"github.com/fraudsight/graph-engine/internal/resolution"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))

	logger.Info("Starting Graph Engine Service",
		"version", "1.0.0",
		"environment", cfg.Environment)

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector(logger)

	// Initialize database connection
	db, err := records.NewConnection(cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run database migrations
	if err := records.RunMigrations(cfg.Database); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// Initialize record store
	store := records.NewPostgresStore(db, cfg.Database, logger)

	// Resolution events go to Kafka when enabled, otherwise to the
	// append-only Postgres table.
	var sink events.Sink
	var kafkaSink *events.KafkaSink
	if cfg.Kafka.Enabled {
		kafkaSink, err = events.NewKafkaSink(cfg.Kafka, logger)
		if err != nil {
			logger.Error("Failed to create Kafka producer", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
	} else {
		sink = events.NewPostgresStore(db, cfg.Database, logger)
	}

	// Initialize AI scorer when enabled
	var scorer resolution.Scorer
	if cfg.AI.Enabled {
		openAIScorer, err := resolution.NewOpenAIScorer(cfg.AI, logger)
		if err != nil {
			logger.Error("Failed to create AI scorer", "error", err)
			os.Exit(1)
		}
		scorer = openAIScorer
	}

	// Initialize core components
	graphBuilder := builder.NewBuilder(store, cfg.GraphEngine, logger)
	graphAnalytics := analytics.NewAnalytics(logger)
	entityResolver := resolution.NewResolver(cfg.Resolution, cfg.AI, scorer, logger)

	graphEngine := engine.New(
		graphBuilder,
		graphAnalytics,
		entityResolver,
		sink,
		cfg,
		metricsCollector,
		logger,
	)

	// Initialize HTTP handlers
	ready := func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
	httpHandlers := handlers.NewHTTPHandlers(graphEngine, cfg, ready, logger)

	// Setup HTTP router
	router := mux.NewRouter()
	router.Use(
		middleware.Recovery(logger),
		middleware.Logging(logger),
		middleware.Metrics(metricsCollector),
	)

	// Register routes
	httpHandlers.RegisterRoutes(router)

	// Add Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	httpSrv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start Kafka consumer for asynchronous resolution requests
	var consumer *events.Consumer
	if cfg.Kafka.Enabled {
		consumer, err = events.NewConsumer(cfg.Kafka, graphEngine, logger)
		if err != nil {
			logger.Error("Failed to create Kafka consumer", "error", err)
			os.Exit(1)
		}
		if err := consumer.Start(); err != nil {
			logger.Error("Failed to start Kafka consumer", "error", err)
			os.Exit(1)
		}
	}

	// Start HTTP server
	go func() {
		logger.Info("Starting HTTP server", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	// Graceful shutdown
	logger.Info("Starting graceful shutdown")

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer httpCancel()
	if err := httpSrv.Shutdown(httpCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	if consumer != nil {
		if err := consumer.Stop(); err != nil {
			logger.Error("Kafka consumer shutdown failed", "error", err)
		}
	}

	logger.Info("Graph Engine Service stopped")
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
