// Package api is the HTTP client for the upstream search API. It performs
// exactly one network call per method and reports rate limiting as data, not
// as an error; retry policy belongs to the caller.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pulsewatch/social-pulse/internal/ingest"
	"github.com/pulsewatch/social-pulse/pkg/config"
	apperrors "github.com/pulsewatch/social-pulse/pkg/errors"
)

// PageResult is the outcome of a single page fetch: a batch of items or
// count buckets plus an optional continuation token, or a rate-limit signal.
// It is never persisted; its lifetime is one pager invocation.
type PageResult struct {
	Items       []ingest.RawItem
	Counts      []ingest.DayCount
	NextToken   string
	RateLimited bool
}

// Client issues search and counts requests against the upstream API.
type Client struct {
	httpClient *http.Client
	searchURL  string
	countsURL  string
	bearer     string
	pageSize   int
	logger     *slog.Logger
}

// NewClient creates a Client from configuration. The bearer credential is
// acquired once here and held for the client's lifetime.
func NewClient(cfg config.APIConfig, pageSize int) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		searchURL:  cfg.SearchURL,
		countsURL:  cfg.CountsURL,
		bearer:     cfg.BearerToken,
		pageSize:   pageSize,
		logger:     slog.Default().With("component", "api-client"),
	}
}

// searchResponse mirrors the upstream records-search payload.
type searchResponse struct {
	Data []ingest.RawItem `json:"data"`
	Meta struct {
		NextToken   string `json:"next_token"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

// countsResponse mirrors the upstream counts payload. Day buckets carry
// start/end timestamps; the calendar day is the date part of the start.
type countsResponse struct {
	Data []struct {
		Start string `json:"start"`
		End   string `json:"end"`
		Count int64  `json:"tweet_count"`
	} `json:"data"`
}

// SearchPage fetches one page of records. nextToken continues a prior page;
// sinceID bounds the first page to records newer than the watermark. A 429
// response yields a PageResult with RateLimited set and no error.
func (c *Client) SearchPage(ctx context.Context, query, nextToken, sinceID string) (*PageResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(c.pageSize))
	params.Set("tweet.fields", "created_at,author_id,public_metrics,lang")
	if nextToken != "" {
		params.Set("next_token", nextToken)
	}
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}

	body, limited, err := c.get(ctx, c.searchURL, params)
	if err != nil {
		return nil, err
	}
	if limited {
		return &PageResult{RateLimited: true}, nil
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Newf(apperrors.ErrTransport, 0, "decoding search response: %v", err)
	}
	return &PageResult{Items: resp.Data, NextToken: resp.Meta.NextToken}, nil
}

// CountsPage fetches the daily count buckets for a query. The counts
// endpoint does not paginate in practice, so no continuation token is taken.
func (c *Client) CountsPage(ctx context.Context, query, sinceID string) (*PageResult, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("granularity", "day")
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}

	body, limited, err := c.get(ctx, c.countsURL, params)
	if err != nil {
		return nil, err
	}
	if limited {
		return &PageResult{RateLimited: true}, nil
	}

	var resp countsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, apperrors.Newf(apperrors.ErrTransport, 0, "decoding counts response: %v", err)
	}
	result := &PageResult{Counts: make([]ingest.DayCount, 0, len(resp.Data))}
	for _, bucket := range resp.Data {
		day := bucket.Start
		if len(day) > 10 {
			day = day[:10]
		}
		result.Counts = append(result.Counts, ingest.DayCount{Day: day, Count: bucket.Count})
	}
	return result, nil
}

// get performs one authenticated GET. It returns the raw body, whether the
// API signalled a rate limit, or a transport error. No retries happen here.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) (body []byte, rateLimited bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearer)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, apperrors.Newf(apperrors.ErrTransport, 0, "request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("rate limit response from upstream", "endpoint", endpoint)
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, apperrors.Newf(apperrors.ErrTransport, resp.StatusCode, "unexpected status %d", resp.StatusCode)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, apperrors.Newf(apperrors.ErrTransport, 0, "reading response body: %v", err)
	}
	return body, false, nil
}
