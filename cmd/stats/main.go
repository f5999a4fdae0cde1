// Command stats starts the trend statistics service.
//
// It consumes ingest events from Kafka to keep live counters and invalidate
// cached snapshots, computes per-country trend statistics from the
// collector's Postgres tables, caches them in Redis, and serves them at
// GET /api/v1/stats/{country}. Health endpoints probe Postgres and Redis.
//
// Usage:
//
//	go run ./cmd/stats [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pulsewatch/social-pulse/internal/stats"
	"github.com/pulsewatch/social-pulse/pkg/config"
	"github.com/pulsewatch/social-pulse/pkg/health"
	"github.com/pulsewatch/social-pulse/pkg/kafka"
	"github.com/pulsewatch/social-pulse/pkg/logger"
	"github.com/pulsewatch/social-pulse/pkg/metrics"
	"github.com/pulsewatch/social-pulse/pkg/middleware"
	"github.com/pulsewatch/social-pulse/pkg/postgres"
	"github.com/pulsewatch/social-pulse/pkg/redis"
)

// main wires Postgres, Redis, the Kafka consumer, and the HTTP API, then
// serves until SIGINT/SIGTERM.
func main() {
	godotenv.Load()
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting stats service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdown := metrics.StartServer(cfg.Metrics.Port)
		defer shutdown(context.Background())
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	cache, err := redis.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer cache.Close()
	slog.Info("connected to redis")

	aggregator := stats.NewAggregator(cache)
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.IngestEvents, stats.HandleEvent(aggregator))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("consumer error", "error", err)
		}
	}()
	slog.Info("ingest event consumer started", "topic", cfg.Kafka.Topics.IngestEvents)

	store := stats.NewStore(db)
	handler := stats.NewHandler(store, cache, aggregator, cfg.Stats, m)

	checker := health.NewChecker(cfg.Server.ProbeTimeout)
	checker.Register("postgres", db.Ping)
	checker.Register("redis", cache.Ping)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/stats/{country}", handler.CountryStats)
	mux.HandleFunc("GET /api/v1/stats/{country}/keywords", handler.KeywordStats)
	mux.HandleFunc("GET /api/v1/activity", handler.Activity)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("stats service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("stats service stopped")
}
