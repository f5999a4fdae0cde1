// Package runner enumerates every configured partition and drives its
// collection, persisting the advancing watermark after each success. A
// failure in one partition never aborts the others; every partition is
// attempted exactly once per run.
package runner

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pulsewatch/social-pulse/internal/ingest"
	"github.com/pulsewatch/social-pulse/internal/ingest/collector"
	"github.com/pulsewatch/social-pulse/internal/sink"
	"github.com/pulsewatch/social-pulse/pkg/config"
	apperrors "github.com/pulsewatch/social-pulse/pkg/errors"
	"github.com/pulsewatch/social-pulse/pkg/metrics"
	"github.com/pulsewatch/social-pulse/pkg/resilience"
)

// PartitionCollector collects one partition. Implemented by collector.Collector.
type PartitionCollector interface {
	Collect(ctx context.Context, job collector.Job) (*ingest.Summary, error)
}

// PartitionResult is the outcome of one partition's attempt.
type PartitionResult struct {
	Partition ingest.Partition
	Records   int
	Buckets   int
	Watermark string
	Err       error
}

// Report summarises a full run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Results    []PartitionResult
}

// Failed returns the number of partitions that did not complete.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Runner owns partition enumeration and watermark persistence.
type Runner struct {
	cfg       config.CollectorConfig
	collector PartitionCollector
	sink      sink.Sink
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates a Runner. metrics may be nil.
func New(cfg config.CollectorConfig, pc PartitionCollector, store sink.Sink, m *metrics.Metrics) *Runner {
	return &Runner{
		cfg:       cfg,
		collector: pc,
		sink:      store,
		metrics:   m,
		logger:    slog.Default().With("component", "runner"),
	}
}

// RunAll attempts every configured partition exactly once and returns the
// per-partition outcomes. It only errors before any partition is attempted,
// when the partition configuration itself is unusable. With Workers > 1
// partitions run concurrently; they share no state beyond the sink and the
// pager's API budget, so no further coordination is needed.
func (r *Runner) RunAll(ctx context.Context) (*Report, error) {
	jobs := expand(r.cfg)
	if len(jobs) == 0 {
		return nil, apperrors.New(apperrors.ErrConfig, 0, "partition configuration expands to zero partitions")
	}

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]PartitionResult, len(jobs)),
	}
	r.logger.Info("starting collection run", "run_id", report.RunID, "partitions", len(jobs), "workers", r.cfg.Workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	workers := r.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, job := range jobs {
		g.Go(func() error {
			result := r.runPartition(gctx, job, report.RunID)
			mu.Lock()
			report.Results[i] = result
			mu.Unlock()
			// Partition failures are isolated; never propagate into the group.
			return nil
		})
	}
	// The group never returns an error, but Wait still bounds concurrency.
	_ = g.Wait()

	report.FinishedAt = time.Now().UTC()
	if r.metrics != nil {
		r.metrics.RunDurationSeconds.Set(report.FinishedAt.Sub(report.StartedAt).Seconds())
	}
	r.logger.Info("collection run finished",
		"run_id", report.RunID,
		"partitions", len(jobs),
		"failed", report.Failed(),
		"duration", report.FinishedAt.Sub(report.StartedAt),
	)
	return report, nil
}

// runPartition reads the watermark, collects, and persists the candidate
// watermark only after the whole partition succeeded. On failure the stored
// watermark is left untouched so the next run refetches the same window:
// redundant but safe.
func (r *Runner) runPartition(ctx context.Context, job collector.Job, runID string) PartitionResult {
	part := job.Partition
	log := r.logger.With("partition", part.Key(), "run_id", runID)
	start := time.Now()

	result := PartitionResult{Partition: part}

	sinceID, err := r.sink.GetWatermark(ctx, part)
	if err != nil {
		log.Error("failed to read watermark", "error", err)
		result.Err = apperrors.Newf(apperrors.ErrPartitionFailed, 0, "reading watermark: %v", err)
		r.observePartition(start, result.Err)
		return result
	}
	job.SinceID = sinceID
	job.RunID = runID
	result.Watermark = sinceID

	var summary *ingest.Summary
	err = resilience.WithTimeout(ctx, r.cfg.PartitionTimeout, "partition "+part.Key(), func(ctx context.Context) error {
		var collectErr error
		summary, collectErr = r.collector.Collect(ctx, job)
		return collectErr
	})
	if err != nil {
		log.Error("partition collection failed", "error", err)
		result.Err = apperrors.Newf(apperrors.ErrPartitionFailed, 0, "%v", err)
		r.observePartition(start, result.Err)
		return result
	}

	result.Records = summary.Records
	result.Buckets = summary.Buckets

	if summary.MaxID != "" && ingest.CompareID(summary.MaxID, sinceID) > 0 {
		if err := r.sink.SetWatermark(ctx, part, summary.MaxID); err != nil {
			log.Error("failed to persist watermark", "candidate", summary.MaxID, "error", err)
			result.Err = apperrors.Newf(apperrors.ErrPartitionFailed, 0, "persisting watermark: %v", err)
			r.observePartition(start, result.Err)
			return result
		}
		result.Watermark = summary.MaxID
		log.Info("watermark advanced", "from", sinceID, "to", summary.MaxID)
	}

	if r.metrics != nil {
		r.metrics.RecordsIngestedTotal.WithLabelValues(part.CountryCode).Add(float64(summary.Records))
		r.metrics.BucketsIngestedTotal.WithLabelValues(part.CountryCode).Add(float64(summary.Buckets))
	}
	r.observePartition(start, nil)
	log.Info("partition collected", "records", summary.Records, "buckets", summary.Buckets)
	return result
}

func (r *Runner) observePartition(start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "failed"
	}
	r.metrics.PartitionsTotal.WithLabelValues(outcome).Inc()
	r.metrics.PartitionDuration.Observe(time.Since(start).Seconds())
}

// expand builds the cross-product of countries, topics, and languages.
func expand(cfg config.CollectorConfig) []collector.Job {
	jobs := make([]collector.Job, 0, len(cfg.Countries)*len(cfg.Topics)*len(cfg.Languages))
	for _, country := range cfg.Countries {
		for _, topic := range cfg.Topics {
			for _, lang := range cfg.Languages {
				jobs = append(jobs, collector.Job{
					Partition: ingest.Partition{
						CountryCode: country.Code,
						TopicID:     topic.ID,
						Lang:        ingest.Lang(lang),
					},
					CountryFilter: country.Filter,
					TopicFilter:   topic.Filter(lang),
				})
			}
		}
	}
	return jobs
}
