// Command collector runs one full collection pass: it expands the configured
// country x topic x language partitions, pages each one through the upstream
// search API from its stored watermark forward, appends records and daily
// counts to Postgres, publishes ingest events to Kafka, and exits. An
// external scheduler (cron, k8s CronJob) invokes it per run.
//
// Usage:
//
//	go run ./cmd/collector [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pulsewatch/social-pulse/internal/ingest/api"
	"github.com/pulsewatch/social-pulse/internal/ingest/collector"
	"github.com/pulsewatch/social-pulse/internal/ingest/pager"
	"github.com/pulsewatch/social-pulse/internal/ingest/runner"
	"github.com/pulsewatch/social-pulse/internal/sink"
	"github.com/pulsewatch/social-pulse/pkg/config"
	"github.com/pulsewatch/social-pulse/pkg/kafka"
	"github.com/pulsewatch/social-pulse/pkg/logger"
	"github.com/pulsewatch/social-pulse/pkg/metrics"
	"github.com/pulsewatch/social-pulse/pkg/postgres"
)

// main wires config, Postgres, Kafka, the API client, and the runner, then
// performs exactly one run. A partition failure is reported but does not
// fail the process; only configuration errors do.
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

	if err := cfg.ValidateCollector(); err != nil {
		slog.Error("invalid collector configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("starting collector",
		"countries", len(cfg.Collector.Countries),
		"topics", len(cfg.Collector.Topics),
		"languages", cfg.Collector.Languages,
		"workers", cfg.Collector.Workers,
	)

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

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IngestEvents)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.IngestEvents)

	store := sink.NewPostgres(db, producer)
	client := api.NewClient(cfg.API, cfg.Collector.PageSize)
	pg := pager.New(client, pager.Options{
		Cooldown:     cfg.Collector.Cooldown,
		PageInterval: cfg.Collector.PageInterval,
		Metrics:      m,
	})
	coll := collector.New(pg, store)
	run := runner.New(cfg.Collector, coll, store, m)

	report, err := run.RunAll(ctx)
	if err != nil {
		slog.Error("run aborted", "error", err)
		os.Exit(1)
	}

	for _, res := range report.Results {
		if res.Err != nil {
			slog.Warn("partition failed",
				"partition", res.Partition.Key(),
				"error", res.Err,
			)
		}
	}
	slog.Info("run complete",
		"run_id", report.RunID,
		"partitions", len(report.Results),
		"failed", report.Failed(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
}
