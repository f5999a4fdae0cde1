package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsewatch/social-pulse/pkg/config"
	apperrors "github.com/pulsewatch/social-pulse/pkg/errors"
)

func newTestClient(searchURL, countsURL string) *Client {
	return NewClient(config.APIConfig{
		SearchURL:   searchURL,
		CountsURL:   countsURL,
		Timeout:     5 * time.Second,
		BearerToken: "test-token",
	}, 100)
}

func TestSearchPageDecodesResults(t *testing.T) {
	var gotQuery, gotSince, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotSince = r.URL.Query().Get("since_id")
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": "101", "text": "poverty is rising", "created_at": "2024-05-01T10:00:00Z",
				 "author_id": "u1", "lang": "en",
				 "public_metrics": {"retweet_count": 2, "reply_count": 1, "like_count": 5, "quote_count": 0}}
			],
			"meta": {"next_token": "tok-2", "result_count": 1}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	res, err := client.SearchPage(context.Background(), "poverty lang:en -is:retweet", "", "42")
	require.NoError(t, err)

	assert.Equal(t, "poverty lang:en -is:retweet", gotQuery)
	assert.Equal(t, "42", gotSince)
	assert.Equal(t, "Bearer test-token", gotAuth)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "101", res.Items[0].ID)
	assert.Equal(t, "u1", res.Items[0].AuthorID)
	assert.Equal(t, 5, res.Items[0].Metrics.Likes)
	assert.Equal(t, "tok-2", res.NextToken)
	assert.False(t, res.RateLimited)
}

func TestSearchPagePassesContinuationToken(t *testing.T) {
	var gotToken string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.URL.Query().Get("next_token")
		w.Write([]byte(`{"data": [], "meta": {"result_count": 0}}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	res, err := client.SearchPage(context.Background(), "q", "tok-7", "")
	require.NoError(t, err)
	assert.Equal(t, "tok-7", gotToken)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.NextToken)
}

func TestSearchPageRateLimitIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	res, err := client.SearchPage(context.Background(), "q", "", "")
	require.NoError(t, err)
	assert.True(t, res.RateLimited)
}

func TestSearchPageServerErrorIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	_, err := client.SearchPage(context.Background(), "q", "", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrTransport))
}

func TestCountsPageTruncatesDayToDate(t *testing.T) {
	var gotGranularity string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGranularity = r.URL.Query().Get("granularity")
		w.Write([]byte(`{"data": [
			{"start": "2024-05-01T00:00:00Z", "end": "2024-05-02T00:00:00Z", "tweet_count": 12},
			{"start": "2024-05-02T00:00:00Z", "end": "2024-05-03T00:00:00Z", "tweet_count": 0}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	res, err := client.CountsPage(context.Background(), "q", "")
	require.NoError(t, err)

	assert.Equal(t, "day", gotGranularity)
	require.Len(t, res.Counts, 2)
	assert.Equal(t, "2024-05-01", res.Counts[0].Day)
	assert.Equal(t, int64(12), res.Counts[0].Count)
	assert.Equal(t, "2024-05-02", res.Counts[1].Day)
	assert.Equal(t, int64(0), res.Counts[1].Count)
}

func TestCountsPageRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(server.URL, server.URL)
	res, err := client.CountsPage(context.Background(), "q", "")
	require.NoError(t, err)
	assert.True(t, res.RateLimited)
}
