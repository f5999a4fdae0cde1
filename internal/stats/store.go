// Package stats is the downstream consumer of the collector's tables: it
// computes per-country trend statistics (totals, most/least discussed topic,
// sentiment extremes) and keyword-level breakdowns, serves them over HTTP
// with a Redis cache, and folds live ingest events from Kafka.
package stats

import (
	"context"
	"fmt"

	"github.com/pulsewatch/social-pulse/pkg/postgres"
)

// TopicTotal is the summed daily counts for one topic. Count buckets are
// appended, possibly with duplicates for the same (partition, day), so the
// query sums rather than picking a single row.
type TopicTotal struct {
	TopicID string `json:"topic_id"`
	Count   int64  `json:"count"`
}

// TopicSentiment is the sentiment breakdown of one topic's records.
type TopicSentiment struct {
	TopicID  string `json:"topic_id"`
	Positive int64  `json:"positive"`
	Negative int64  `json:"negative"`
	Neutral  int64  `json:"neutral"`
}

// TextSentiment is one record's text plus its sentiment label, used for
// keyword matching.
type TextSentiment struct {
	Text      string
	Sentiment string
}

// Store runs the columnar aggregation queries against the collector's
// output tables.
type Store struct {
	db *postgres.Client
}

// NewStore creates a Store over the shared Postgres client.
func NewStore(db *postgres.Client) *Store {
	return &Store{db: db}
}

// TopicTotals sums the daily count buckets per topic for a country.
func (s *Store) TopicTotals(ctx context.Context, countryCode string) ([]TopicTotal, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT topic_id, COALESCE(SUM(count), 0)
		 FROM post_counts
		 WHERE country_code = $1
		 GROUP BY topic_id`, countryCode)
	if err != nil {
		return nil, fmt.Errorf("querying topic totals for %s: %w", countryCode, err)
	}
	defer rows.Close()

	var totals []TopicTotal
	for rows.Next() {
		var t TopicTotal
		if err := rows.Scan(&t.TopicID, &t.Count); err != nil {
			return nil, fmt.Errorf("scanning topic total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// SentimentTotals counts labelled records per topic for a country. Records
// without a sentiment label (classifier has not caught up) are ignored.
func (s *Store) SentimentTotals(ctx context.Context, countryCode string) ([]TopicSentiment, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT topic_id,
		        COUNT(*) FILTER (WHERE sentiment = 'positive'),
		        COUNT(*) FILTER (WHERE sentiment = 'negative'),
		        COUNT(*) FILTER (WHERE sentiment = 'neutral')
		 FROM raw_posts
		 WHERE country_code = $1 AND sentiment IS NOT NULL
		 GROUP BY topic_id`, countryCode)
	if err != nil {
		return nil, fmt.Errorf("querying sentiment totals for %s: %w", countryCode, err)
	}
	defer rows.Close()

	var totals []TopicSentiment
	for rows.Next() {
		var t TopicSentiment
		if err := rows.Scan(&t.TopicID, &t.Positive, &t.Negative, &t.Neutral); err != nil {
			return nil, fmt.Errorf("scanning sentiment total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// TextsWithSentiment streams the text and sentiment of every record for a
// country, for keyword matching.
func (s *Store) TextsWithSentiment(ctx context.Context, countryCode string) ([]TextSentiment, error) {
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT text, COALESCE(sentiment, '')
		 FROM raw_posts
		 WHERE country_code = $1`, countryCode)
	if err != nil {
		return nil, fmt.Errorf("querying record texts for %s: %w", countryCode, err)
	}
	defer rows.Close()

	var texts []TextSentiment
	for rows.Next() {
		var t TextSentiment
		if err := rows.Scan(&t.Text, &t.Sentiment); err != nil {
			return nil, fmt.Errorf("scanning record text: %w", err)
		}
		texts = append(texts, t)
	}
	return texts, rows.Err()
}
