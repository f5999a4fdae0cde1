// Package sink persists normalized records, count buckets, and per-partition
// watermarks. Appends are atomic per call and deliberately non-deduplicating:
// overlapping re-fetches may append duplicate rows, and aggregation consumers
// dedup by natural key (record ID; (partition, day) pair).
package sink

import (
	"context"

	"github.com/pulsewatch/social-pulse/internal/ingest"
)

// Sink is the durable store the collector writes to.
type Sink interface {
	// AppendRecords appends a batch of tagged records. Atomic per call.
	AppendRecords(ctx context.Context, part ingest.Partition, records []ingest.RawRecord) error
	// AppendCounts appends a batch of daily count buckets. Atomic per call.
	AppendCounts(ctx context.Context, part ingest.Partition, buckets []ingest.CountBucket) error
	// GetWatermark returns the stored last-seen record ID for a partition,
	// or the empty string when the partition has never completed a run.
	GetWatermark(ctx context.Context, part ingest.Partition) (string, error)
	// SetWatermark stores a new watermark. Implementations must never let
	// the stored value decrease.
	SetWatermark(ctx context.Context, part ingest.Partition, id string) error
}
