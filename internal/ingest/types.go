// Package ingest defines the domain types shared by the collection pipeline:
// partitions, raw records, daily count buckets, and run summaries.
package ingest

import (
	"fmt"
	"time"
)

// Lang is a supported query language code.
type Lang string

const (
	LangEnglish Lang = "en"
	LangArabic  Lang = "ar"
)

// Partition identifies one unit of collection work: a (country, topic,
// language) triple. The triple is unique within a run.
type Partition struct {
	CountryCode string `json:"country_code"`
	TopicID     string `json:"topic_id"`
	Lang        Lang   `json:"lang"`
}

// Key returns the canonical string form used for logging, Kafka partition
// hashing, and cache keys.
func (p Partition) Key() string {
	return fmt.Sprintf("%s/%s/%s", p.CountryCode, p.TopicID, p.Lang)
}

// EngagementMetrics mirrors the public_metrics object of the upstream API.
type EngagementMetrics struct {
	Reposts int `json:"retweet_count"`
	Replies int `json:"reply_count"`
	Likes   int `json:"like_count"`
	Quotes  int `json:"quote_count"`
}

// RawItem is one post as returned by the upstream search endpoint, before
// partition tagging.
type RawItem struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	CreatedAt time.Time         `json:"created_at"`
	AuthorID  string            `json:"author_id"`
	Lang      string            `json:"lang"`
	Metrics   EngagementMetrics `json:"public_metrics"`
}

// RawRecord is an ingested post: the upstream payload tagged with its
// partition, the run that fetched it, and the ingestion timestamp. Records
// are immutable and append-only; duplicates across overlapping re-fetches
// are tolerated and deduplicated downstream by ID.
type RawRecord struct {
	RawItem
	Partition Partition `json:"partition"`
	Sentiment string    `json:"sentiment,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
	RunID     string    `json:"run_id"`
}

// DayCount is one time bucket as returned by the upstream counts endpoint.
type DayCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

// CountBucket is a (partition, calendar day) count. Buckets are appended,
// never upserted; consumers must sum duplicates for the same (partition, day).
type CountBucket struct {
	Partition Partition `json:"partition"`
	Day       string    `json:"day"`
	Count     int64     `json:"count"`
	ScrapedAt time.Time `json:"scraped_at"`
	RunID     string    `json:"run_id"`
}

// Summary reports the outcome of one partition's collection. MaxID is the
// highest record identifier observed and is the candidate new watermark;
// persisting it is the runner's responsibility, not the collector's.
type Summary struct {
	Partition Partition
	Records   int
	Buckets   int
	MaxID     string
}

// BatchIngestedEvent is published to Kafka after a successful record append,
// for downstream aggregation consumers.
type BatchIngestedEvent struct {
	RunID       string    `json:"run_id"`
	CountryCode string    `json:"country_code"`
	TopicID     string    `json:"topic_id"`
	Lang        Lang      `json:"lang"`
	Records     int       `json:"records"`
	MaxID       string    `json:"max_id"`
	IngestedAt  time.Time `json:"ingested_at"`
}
