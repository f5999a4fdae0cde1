// Package pager drives the page fetcher through a complete result set for
// one query: pagination via continuation tokens, a single cooldown retry on
// rate limiting, and a courtesy delay between pages.
package pager

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/pulsewatch/social-pulse/internal/ingest"
	"github.com/pulsewatch/social-pulse/internal/ingest/api"
	apperrors "github.com/pulsewatch/social-pulse/pkg/errors"
	"github.com/pulsewatch/social-pulse/pkg/metrics"
)

// Fetcher performs a single page fetch. Implemented by api.Client.
type Fetcher interface {
	SearchPage(ctx context.Context, query, nextToken, sinceID string) (*api.PageResult, error)
	CountsPage(ctx context.Context, query, sinceID string) (*api.PageResult, error)
}

type requestKind string

const (
	kindRecords requestKind = "records"
	kindCounts  requestKind = "counts"
)

// Options tune the pager. Zero values fall back to a 15-minute cooldown and
// one page per second.
type Options struct {
	Cooldown     time.Duration
	PageInterval time.Duration
	Metrics      *metrics.Metrics
}

// Pager accumulates a complete result set for one query. It is safe for
// concurrent use; the embedded limiter doubles as the shared per-API budget
// when partitions run in parallel.
type Pager struct {
	fetcher  Fetcher
	cooldown time.Duration
	limiter  *rate.Limiter
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// wait is the cancellable cooldown suspension, replaceable in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// New creates a Pager over the given fetcher.
func New(fetcher Fetcher, opts Options) *Pager {
	if opts.Cooldown <= 0 {
		opts.Cooldown = 15 * time.Minute
	}
	if opts.PageInterval <= 0 {
		opts.PageInterval = time.Second
	}
	return &Pager{
		fetcher:  fetcher,
		cooldown: opts.Cooldown,
		limiter:  rate.NewLimiter(rate.Every(opts.PageInterval), 1),
		metrics:  opts.Metrics,
		logger:   slog.Default().With("component", "pager"),
		wait:     sleepContext,
	}
}

// CollectRecords pages through the records-search endpoint until the
// continuation token is exhausted. On failure the partial accumulator is
// returned alongside the error; callers must not mistake it for a complete
// result set.
func (p *Pager) CollectRecords(ctx context.Context, query, sinceID string) ([]ingest.RawItem, error) {
	var items []ingest.RawItem
	token := ""
	for {
		res, err := p.fetchPage(ctx, kindRecords, query, token, sinceID)
		if err != nil {
			return items, err
		}
		items = append(items, res.Items...)
		if res.NextToken == "" {
			return items, nil
		}
		// The lower-bound ID applies to the first page only; continuation
		// tokens already encode the position.
		token = res.NextToken
		sinceID = ""
	}
}

// CollectCounts fetches the daily count buckets for a query. The counts
// endpoint does not paginate in practice but runs through the same fetch
// path for uniform rate-limit handling, and keeps the records contract: on
// failure the accumulated buckets come back alongside the error.
func (p *Pager) CollectCounts(ctx context.Context, query, sinceID string) ([]ingest.DayCount, error) {
	var counts []ingest.DayCount
	res, err := p.fetchPage(ctx, kindCounts, query, "", sinceID)
	if err != nil {
		return counts, err
	}
	counts = append(counts, res.Counts...)
	return counts, nil
}

// fetchPage issues one page request, retrying exactly once after a cooldown
// if the API signals a rate limit. A second consecutive rate-limit response
// fails the query, bounding worst-case blocking to one cooldown per page.
// Transport errors fail immediately and are never retried.
func (p *Pager) fetchPage(ctx context.Context, kind requestKind, query, token, sinceID string) (*api.PageResult, error) {
	res, err := p.fetchOnce(ctx, kind, query, token, sinceID)
	if err != nil {
		return nil, err
	}
	if !res.RateLimited {
		return res, nil
	}

	p.logger.Warn("rate limited, entering cooldown", "kind", kind, "cooldown", p.cooldown)
	if p.metrics != nil {
		p.metrics.RateLimitHitsTotal.Inc()
		p.metrics.CooldownSecondsTotal.Add(p.cooldown.Seconds())
	}
	if err := p.wait(ctx, p.cooldown); err != nil {
		return nil, fmt.Errorf("cooldown interrupted: %w", err)
	}

	res, err = p.fetchOnce(ctx, kind, query, token, sinceID)
	if err != nil {
		return nil, err
	}
	if res.RateLimited {
		if p.metrics != nil {
			p.metrics.RateLimitHitsTotal.Inc()
		}
		return nil, apperrors.Newf(apperrors.ErrRateLimited, 0, "still rate limited after %v cooldown", p.cooldown)
	}
	return res, nil
}

// fetchOnce waits out the courtesy interval and performs a single call.
func (p *Pager) fetchOnce(ctx context.Context, kind requestKind, query, token, sinceID string) (*api.PageResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var (
		res *api.PageResult
		err error
	)
	switch kind {
	case kindCounts:
		res, err = p.fetcher.CountsPage(ctx, query, sinceID)
	default:
		res, err = p.fetcher.SearchPage(ctx, query, token, sinceID)
	}
	if err != nil {
		return nil, err
	}
	if p.metrics != nil && !res.RateLimited {
		p.metrics.PagesFetchedTotal.WithLabelValues(string(kind)).Inc()
	}
	return res, nil
}

// sleepContext blocks for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
