package pager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/social-pulse/internal/ingest"
	"github.com/pulsewatch/social-pulse/internal/ingest/api"
	apperrors "github.com/pulsewatch/social-pulse/pkg/errors"
)

type fetchCall struct {
	kind    string
	token   string
	sinceID string
}

// scriptedFetcher replays a fixed sequence of responses and records every
// call it receives.
type scriptedFetcher struct {
	responses []*api.PageResult
	errs      []error
	calls     []fetchCall
}

func (f *scriptedFetcher) next() (*api.PageResult, error) {
	i := len(f.calls) - 1
	if i >= len(f.responses) {
		return nil, errors.New("scripted fetcher exhausted")
	}
	return f.responses[i], f.errs[i]
}

func (f *scriptedFetcher) SearchPage(ctx context.Context, query, nextToken, sinceID string) (*api.PageResult, error) {
	f.calls = append(f.calls, fetchCall{kind: "records", token: nextToken, sinceID: sinceID})
	return f.next()
}

func (f *scriptedFetcher) CountsPage(ctx context.Context, query, sinceID string) (*api.PageResult, error) {
	f.calls = append(f.calls, fetchCall{kind: "counts", sinceID: sinceID})
	return f.next()
}

func script(responses ...*api.PageResult) *scriptedFetcher {
	return &scriptedFetcher{
		responses: responses,
		errs:      make([]error, len(responses)),
	}
}

// newTestPager returns a pager with a negligible courtesy delay and a
// cooldown wait that only counts invocations.
func newTestPager(f Fetcher) (*Pager, *int) {
	p := New(f, Options{Cooldown: 15 * time.Minute, PageInterval: time.Nanosecond})
	cooldowns := 0
	p.wait = func(ctx context.Context, d time.Duration) error {
		cooldowns++
		return nil
	}
	return p, &cooldowns
}

func items(ids ...string) []ingest.RawItem {
	out := make([]ingest.RawItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, ingest.RawItem{ID: id})
	}
	return out
}

func TestCollectRecordsConcatenatesPages(t *testing.T) {
	f := script(
		&api.PageResult{Items: items("1", "2"), NextToken: "t1"},
		&api.PageResult{Items: items("3")},
	)
	p, cooldowns := newTestPager(f)

	got, err := p.CollectRecords(context.Background(), "q", "100")
	require.NoError(t, err)
	assert.Equal(t, items("1", "2", "3"), got)
	assert.Equal(t, 0, *cooldowns)

	// Lower bound applies to the first page only; continuation carries the token.
	require.Len(t, f.calls, 2)
	assert.Equal(t, fetchCall{kind: "records", token: "", sinceID: "100"}, f.calls[0])
	assert.Equal(t, fetchCall{kind: "records", token: "t1", sinceID: ""}, f.calls[1])
}

func TestCollectRecordsSingleCooldownRetry(t *testing.T) {
	f := script(
		&api.PageResult{RateLimited: true},
		&api.PageResult{Items: items("1")},
	)
	p, cooldowns := newTestPager(f)

	got, err := p.CollectRecords(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, items("1"), got)
	assert.Equal(t, 1, *cooldowns)
}

func TestCollectRecordsFailsAfterSecondRateLimit(t *testing.T) {
	f := script(
		&api.PageResult{RateLimited: true},
		&api.PageResult{RateLimited: true},
	)
	p, cooldowns := newTestPager(f)

	_, err := p.CollectRecords(context.Background(), "q", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRateLimited))
	assert.Equal(t, 1, *cooldowns, "exactly one cooldown before giving up")
	assert.Len(t, f.calls, 2, "no further automatic retry")
}

func TestCollectRecordsReturnsPartialOnTransportError(t *testing.T) {
	f := script(
		&api.PageResult{Items: items("1", "2"), NextToken: "t1"},
		nil,
	)
	f.errs[1] = apperrors.New(apperrors.ErrTransport, 0, "connection reset")
	p, _ := newTestPager(f)

	got, err := p.CollectRecords(context.Background(), "q", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
	assert.Equal(t, items("1", "2"), got, "partial accumulator is returned with the error")
}

func TestCollectRecordsEmptyPageWithTokenContinues(t *testing.T) {
	f := script(
		&api.PageResult{NextToken: "t1"},
		&api.PageResult{Items: items("5")},
	)
	p, _ := newTestPager(f)

	got, err := p.CollectRecords(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, items("5"), got)
	assert.Len(t, f.calls, 2)
}

func TestCollectRecordsEmptyTerminalPage(t *testing.T) {
	f := script(&api.PageResult{})
	p, _ := newTestPager(f)

	got, err := p.CollectRecords(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollectRecordsRateLimitMidPagination(t *testing.T) {
	f := script(
		&api.PageResult{Items: items("1"), NextToken: "t1"},
		&api.PageResult{RateLimited: true},
		&api.PageResult{Items: items("2")},
	)
	p, cooldowns := newTestPager(f)

	got, err := p.CollectRecords(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Equal(t, items("1", "2"), got)
	assert.Equal(t, 1, *cooldowns)
	// Retried request repeats the same token.
	assert.Equal(t, "t1", f.calls[1].token)
	assert.Equal(t, "t1", f.calls[2].token)
}

func TestCollectCountsSinglePage(t *testing.T) {
	f := script(&api.PageResult{Counts: []ingest.DayCount{
		{Day: "2024-05-01", Count: 3},
		{Day: "2024-05-02", Count: 7},
	}})
	p, _ := newTestPager(f)

	got, err := p.CollectCounts(context.Background(), "q", "99")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(7), got[1].Count)
	assert.Equal(t, fetchCall{kind: "counts", sinceID: "99"}, f.calls[0])
}

func TestCollectCountsCooldownRetry(t *testing.T) {
	f := script(
		&api.PageResult{RateLimited: true},
		&api.PageResult{Counts: []ingest.DayCount{{Day: "2024-05-01", Count: 1}}},
	)
	p, cooldowns := newTestPager(f)

	got, err := p.CollectCounts(context.Background(), "q", "")
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, *cooldowns)
}

func TestCollectCountsFailsAfterSecondRateLimit(t *testing.T) {
	f := script(
		&api.PageResult{RateLimited: true},
		&api.PageResult{RateLimited: true},
	)
	p, cooldowns := newTestPager(f)

	got, err := p.CollectCounts(context.Background(), "q", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrRateLimited))
	assert.Empty(t, got, "nothing accumulated before the failure")
	assert.Equal(t, 1, *cooldowns)
}

func TestCooldownWaitIsCancellable(t *testing.T) {
	f := script(
		&api.PageResult{RateLimited: true},
		&api.PageResult{Items: items("1")},
	)
	p := New(f, Options{Cooldown: time.Hour, PageInterval: time.Nanosecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.CollectRecords(ctx, "q", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second, "cooldown must not block past cancellation")
}
