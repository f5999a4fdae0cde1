package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllProbesUp(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("postgres", func(ctx context.Context) error { return nil })
	c.Register("redis", func(ctx context.Context) error { return nil })

	report := c.Run(context.Background())

	assert.Equal(t, StatusUp, report.Status)
	require.Len(t, report.Components, 2)
	assert.Equal(t, StatusUp, report.Components["postgres"].Status)
	assert.Empty(t, report.Components["postgres"].Error)
	assert.False(t, report.CheckedAt.IsZero())
}

func TestRunOneProbeDownMarksReportDown(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("postgres", func(ctx context.Context) error { return nil })
	c.Register("redis", func(ctx context.Context) error { return errors.New("connection refused") })

	report := c.Run(context.Background())

	assert.Equal(t, StatusDown, report.Status)
	assert.Equal(t, StatusUp, report.Components["postgres"].Status)
	assert.Equal(t, StatusDown, report.Components["redis"].Status)
	assert.Equal(t, "connection refused", report.Components["redis"].Error)
}

func TestRunWithNoProbes(t *testing.T) {
	report := NewChecker(time.Second).Run(context.Background())
	assert.Equal(t, StatusUp, report.Status)
	assert.Empty(t, report.Components)
}

func TestReadyHandlerStatusCodes(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("postgres", func(ctx context.Context) error { return nil })

	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	c.Register("redis", func(ctx context.Context) error { return errors.New("down") })
	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDown, report.Status)
}

func TestReadyHandlerBoundsProbeDuration(t *testing.T) {
	c := NewChecker(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	rec := httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Less(t, time.Since(start), time.Second, "probe must be cut off at the configured timeout")
}

func TestLiveHandlerIgnoresProbes(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("postgres", func(ctx context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
