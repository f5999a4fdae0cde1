package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/pulsewatch/social-pulse/internal/ingest"
	apperrors "github.com/pulsewatch/social-pulse/pkg/errors"
	"github.com/pulsewatch/social-pulse/pkg/kafka"
	"github.com/pulsewatch/social-pulse/pkg/postgres"
)

// insertChunkSize bounds the number of rows per multi-row INSERT.
const insertChunkSize = 500

// Postgres is the production Sink. After a successful record append it
// publishes a BatchIngestedEvent to Kafka for downstream consumers; publish
// failures are logged and never fail the append.
type Postgres struct {
	db       *postgres.Client
	producer *kafka.Producer
	logger   *slog.Logger
}

// NewPostgres creates the Postgres sink. producer may be nil when no event
// stream is wanted (tests, backfills).
func NewPostgres(db *postgres.Client, producer *kafka.Producer) *Postgres {
	return &Postgres{
		db:       db,
		producer: producer,
		logger:   slog.Default().With("component", "sink"),
	}
}

// AppendRecords inserts the batch inside one transaction and emits an ingest
// event. Duplicate record IDs from overlapping re-fetches are inserted as-is.
func (s *Postgres) AppendRecords(ctx context.Context, part ingest.Partition, records []ingest.RawRecord) error {
	if len(records) == 0 {
		return nil
	}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(records); start += insertChunkSize {
			end := min(start+insertChunkSize, len(records))
			if err := insertRecordChunk(ctx, tx, records[start:end]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return apperrors.Newf(apperrors.ErrSinkWrite, 0, "appending %d records for %s: %v", len(records), part.Key(), err)
	}

	s.publishBatchEvent(ctx, part, records)
	return nil
}

func insertRecordChunk(ctx context.Context, tx *sql.Tx, records []ingest.RawRecord) error {
	const cols = 15
	placeholders := make([]string, 0, len(records))
	args := make([]any, 0, len(records)*cols)
	for i, r := range records {
		base := i * cols
		group := make([]string, cols)
		for j := range group {
			group[j] = "$" + strconv.Itoa(base+j+1)
		}
		placeholders = append(placeholders, "("+strings.Join(group, ", ")+")")
		args = append(args,
			r.ID, r.Text, r.CreatedAt, r.AuthorID, r.Lang,
			r.Metrics.Reposts, r.Metrics.Replies, r.Metrics.Likes, r.Metrics.Quotes,
			r.Partition.CountryCode, r.Partition.TopicID, string(r.Partition.Lang),
			nullableString(r.Sentiment), r.ScrapedAt, r.RunID,
		)
	}

	stmt := `INSERT INTO raw_posts
		(post_id, text, created_at, author_id, post_lang,
		 repost_count, reply_count, like_count, quote_count,
		 country_code, topic_id, lang, sentiment, scraped_at, run_id)
		VALUES ` + strings.Join(placeholders, ", ")
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("inserting record chunk: %w", err)
	}
	return nil
}

// AppendCounts inserts the daily buckets inside one transaction.
func (s *Postgres) AppendCounts(ctx context.Context, part ingest.Partition, buckets []ingest.CountBucket) error {
	if len(buckets) == 0 {
		return nil
	}

	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		const cols = 7
		placeholders := make([]string, 0, len(buckets))
		args := make([]any, 0, len(buckets)*cols)
		for i, b := range buckets {
			base := i * cols
			group := make([]string, cols)
			for j := range group {
				group[j] = "$" + strconv.Itoa(base+j+1)
			}
			placeholders = append(placeholders, "("+strings.Join(group, ", ")+")")
			args = append(args,
				b.Partition.CountryCode, b.Partition.TopicID, string(b.Partition.Lang),
				b.Day, b.Count, b.ScrapedAt, b.RunID,
			)
		}
		stmt := `INSERT INTO post_counts
			(country_code, topic_id, lang, day, count, scraped_at, run_id)
			VALUES ` + strings.Join(placeholders, ", ")
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("inserting count buckets: %w", err)
		}
		return nil
	})
	if err != nil {
		return apperrors.Newf(apperrors.ErrSinkWrite, 0, "appending %d buckets for %s: %v", len(buckets), part.Key(), err)
	}
	return nil
}

// GetWatermark reads the stored last-seen ID for the partition.
func (s *Postgres) GetWatermark(ctx context.Context, part ingest.Partition) (string, error) {
	var sinceID int64
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT since_id FROM partition_watermarks
		 WHERE country_code = $1 AND topic_id = $2 AND lang = $3`,
		part.CountryCode, part.TopicID, string(part.Lang)).Scan(&sinceID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading watermark for %s: %w", part.Key(), err)
	}
	return strconv.FormatInt(sinceID, 10), nil
}

// SetWatermark upserts the watermark. GREATEST keeps the stored value
// monotonically non-decreasing even under concurrent or replayed runs.
func (s *Postgres) SetWatermark(ctx context.Context, part ingest.Partition, id string) error {
	sinceID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return apperrors.Newf(apperrors.ErrSinkWrite, 0, "watermark %q for %s is not numeric: %v", id, part.Key(), err)
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO partition_watermarks (country_code, topic_id, lang, since_id, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (country_code, topic_id, lang)
		 DO UPDATE SET since_id = GREATEST(partition_watermarks.since_id, EXCLUDED.since_id),
		               updated_at = NOW()`,
		part.CountryCode, part.TopicID, string(part.Lang), sinceID)
	if err != nil {
		return apperrors.Newf(apperrors.ErrSinkWrite, 0, "writing watermark for %s: %v", part.Key(), err)
	}
	return nil
}

func (s *Postgres) publishBatchEvent(ctx context.Context, part ingest.Partition, records []ingest.RawRecord) {
	if s.producer == nil {
		return
	}
	maxID := ""
	for _, r := range records {
		maxID = ingest.MaxID(maxID, r.ID)
	}
	event := ingest.BatchIngestedEvent{
		RunID:       records[0].RunID,
		CountryCode: part.CountryCode,
		TopicID:     part.TopicID,
		Lang:        part.Lang,
		Records:     len(records),
		MaxID:       maxID,
		IngestedAt:  time.Now().UTC(),
	}
	if err := s.producer.Publish(ctx, kafka.Event{Key: part.Key(), Value: event}); err != nil {
		s.logger.Error("failed to publish ingest event",
			"partition", part.Key(),
			"records", len(records),
			"error", err,
		)
	}
}

func nullableString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
