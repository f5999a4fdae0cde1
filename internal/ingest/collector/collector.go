// Package collector performs the full collection for a single partition:
// query compilation, paged record and count fetches bounded by the stored
// watermark, partition tagging, and handoff to the sink.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pulsewatch/social-pulse/internal/ingest"
	"github.com/pulsewatch/social-pulse/internal/ingest/query"
	"github.com/pulsewatch/social-pulse/internal/sink"
)

// Pager accumulates complete result sets for one query. Implemented by
// pager.Pager.
type Pager interface {
	CollectRecords(ctx context.Context, query, sinceID string) ([]ingest.RawItem, error)
	CollectCounts(ctx context.Context, query, sinceID string) ([]ingest.DayCount, error)
}

// Job is one partition plus the filter texts its query is compiled from.
type Job struct {
	Partition     ingest.Partition
	CountryFilter string
	TopicFilter   string
	SinceID       string
	RunID         string
}

// Collector runs one partition end to end. It never writes the watermark;
// whether progress is recorded is the runner's decision.
type Collector struct {
	pager  Pager
	sink   sink.Sink
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Collector over the given pager and sink.
func New(pager Pager, store sink.Sink) *Collector {
	return &Collector{
		pager:  pager,
		sink:   store,
		logger: slog.Default().With("component", "collector"),
		now:    time.Now,
	}
}

// Collect fetches records and counts for the job's partition and appends
// both to the sink as independent operations. The counts fetch proceeds even
// when the records fetch yields nothing. On any failure the partition is
// abandoned without a watermark candidate; rows already appended are safe to
// keep under at-least-once semantics.
func (c *Collector) Collect(ctx context.Context, job Job) (*ingest.Summary, error) {
	part := job.Partition
	q := query.Compile(job.CountryFilter, part.Lang, job.TopicFilter)
	log := c.logger.With("partition", part.Key())
	log.Info("collecting partition", "query", q, "since_id", job.SinceID)

	items, err := c.pager.CollectRecords(ctx, q, job.SinceID)
	if err != nil {
		return nil, fmt.Errorf("fetching records for %s: %w", part.Key(), err)
	}

	scrapedAt := c.now().UTC()
	maxID := ""
	if len(items) > 0 {
		records := make([]ingest.RawRecord, 0, len(items))
		for _, item := range items {
			records = append(records, ingest.RawRecord{
				RawItem:   item,
				Partition: part,
				ScrapedAt: scrapedAt,
				RunID:     job.RunID,
			})
			maxID = ingest.MaxID(maxID, item.ID)
		}
		if err := c.sink.AppendRecords(ctx, part, records); err != nil {
			return nil, fmt.Errorf("storing records for %s: %w", part.Key(), err)
		}
		log.Info("records stored", "count", len(records), "max_id", maxID)
	}

	// Counts are an independent API call; zero records does not imply zero
	// daily buckets over the window.
	counts, err := c.pager.CollectCounts(ctx, q, job.SinceID)
	if err != nil {
		return nil, fmt.Errorf("fetching counts for %s: %w", part.Key(), err)
	}
	if len(counts) > 0 {
		buckets := make([]ingest.CountBucket, 0, len(counts))
		for _, dc := range counts {
			buckets = append(buckets, ingest.CountBucket{
				Partition: part,
				Day:       dc.Day,
				Count:     dc.Count,
				ScrapedAt: scrapedAt,
				RunID:     job.RunID,
			})
		}
		if err := c.sink.AppendCounts(ctx, part, buckets); err != nil {
			return nil, fmt.Errorf("storing counts for %s: %w", part.Key(), err)
		}
		log.Info("count buckets stored", "count", len(buckets))
	}

	return &ingest.Summary{
		Partition: part,
		Records:   len(items),
		Buckets:   len(counts),
		MaxID:     maxID,
	}, nil
}
