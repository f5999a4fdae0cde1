package stats

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsewatch/social-pulse/internal/ingest"
	"github.com/pulsewatch/social-pulse/pkg/kafka"
	"github.com/pulsewatch/social-pulse/pkg/redis"
)

// Activity is the live view of ingestion since the service started.
type Activity struct {
	Batches            int64            `json:"batches"`
	Records            int64            `json:"records"`
	RecordsByCountry   map[string]int64 `json:"records_by_country"`
	RecordsByPartition map[string]int64 `json:"records_by_partition"`
	Since              time.Time        `json:"since"`
}

// Aggregator folds ingest events from Kafka into in-memory counters and
// invalidates the cached snapshot of any country that received new data.
type Aggregator struct {
	mu                 sync.RWMutex
	batches            atomic.Int64
	records            atomic.Int64
	recordsByCountry   map[string]int64
	recordsByPartition map[string]int64
	startTime          time.Time

	cache  *redis.Client
	logger *slog.Logger
}

// NewAggregator creates an Aggregator. cache may be nil, in which case no
// invalidation happens.
func NewAggregator(cache *redis.Client) *Aggregator {
	return &Aggregator{
		recordsByCountry:   make(map[string]int64),
		recordsByPartition: make(map[string]int64),
		startTime:          time.Now().UTC(),
		cache:              cache,
		logger:             slog.Default().With("component", "stats-aggregator"),
	}
}

// HandleEvent returns the Kafka message handler that feeds the aggregator.
// Undecodable events are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[ingest.BatchIngestedEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode ingest event", "error", err)
			return nil
		}
		agg.record(ctx, event)
		return nil
	}
}

func (a *Aggregator) record(ctx context.Context, event ingest.BatchIngestedEvent) {
	a.batches.Add(1)
	a.records.Add(int64(event.Records))

	part := ingest.Partition{
		CountryCode: event.CountryCode,
		TopicID:     event.TopicID,
		Lang:        event.Lang,
	}
	a.mu.Lock()
	a.recordsByCountry[event.CountryCode] += int64(event.Records)
	a.recordsByPartition[part.Key()] += int64(event.Records)
	a.mu.Unlock()

	if a.cache != nil {
		if err := a.cache.Del(ctx, snapshotKey(event.CountryCode)); err != nil && !redis.IsNilError(err) {
			a.logger.Warn("failed to invalidate stats cache",
				"country", event.CountryCode,
				"error", err,
			)
		}
	}
}

// Activity returns a copy of the live counters.
func (a *Aggregator) Activity() Activity {
	a.mu.RLock()
	defer a.mu.RUnlock()

	byCountry := make(map[string]int64, len(a.recordsByCountry))
	for k, v := range a.recordsByCountry {
		byCountry[k] = v
	}
	byPartition := make(map[string]int64, len(a.recordsByPartition))
	for k, v := range a.recordsByPartition {
		byPartition[k] = v
	}
	return Activity{
		Batches:            a.batches.Load(),
		Records:            a.records.Load(),
		RecordsByCountry:   byCountry,
		RecordsByPartition: byPartition,
		Since:              a.startTime,
	}
}

func snapshotKey(countryCode string) string {
	return "stats:" + countryCode
}
