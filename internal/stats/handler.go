package stats

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsewatch/social-pulse/pkg/config"
	apperrors "github.com/pulsewatch/social-pulse/pkg/errors"
	"github.com/pulsewatch/social-pulse/pkg/logger"
	"github.com/pulsewatch/social-pulse/pkg/metrics"
	"github.com/pulsewatch/social-pulse/pkg/redis"
)

// Handler serves the trend statistics API.
type Handler struct {
	store   *Store
	cache   *redis.Client
	agg     *Aggregator
	cfg     config.StatsConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewHandler creates a Handler. cache and m may be nil.
func NewHandler(store *Store, cache *redis.Client, agg *Aggregator, cfg config.StatsConfig, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   store,
		cache:   cache,
		agg:     agg,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "stats-handler"),
	}
}

// CountryStats handles GET /api/v1/stats/{country}: the cached snapshot if
// fresh, otherwise computed from Postgres and cached.
func (h *Handler) CountryStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countryCode := r.PathValue("country")
	if countryCode == "" {
		writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "missing country code"))
		return
	}

	if h.cache != nil {
		cached, err := h.cache.Get(ctx, snapshotKey(countryCode))
		if err == nil {
			if h.metrics != nil {
				h.metrics.StatsCacheHitsTotal.Inc()
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(cached))
			return
		}
		if !redis.IsNilError(err) {
			logger.FromContext(ctx).Warn("stats cache read failed", "country", countryCode, "error", err)
		}
	}
	if h.metrics != nil {
		h.metrics.StatsCacheMissTotal.Inc()
	}

	totals, err := h.store.TopicTotals(ctx, countryCode)
	if err != nil {
		h.logger.Error("failed to load topic totals", "country", countryCode, "error", err)
		writeError(w, err)
		return
	}
	sentiments, err := h.store.SentimentTotals(ctx, countryCode)
	if err != nil {
		h.logger.Error("failed to load sentiment totals", "country", countryCode, "error", err)
		writeError(w, err)
		return
	}

	stats := ComputeCountryStats(countryCode, h.cfg.BaselineTopic, totals, sentiments, time.Now().UTC())

	body, err := json.Marshal(stats)
	if err != nil {
		writeError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, snapshotKey(countryCode), body, h.cfg.CacheTTL); err != nil {
			logger.FromContext(ctx).Warn("stats cache write failed", "country", countryCode, "error", err)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(body)
}

// KeywordStats handles GET /api/v1/stats/{country}/keywords?k=...&k=...
// Keyword reports are computed per request and not cached; keyword sets vary
// too much for a snapshot key.
func (h *Handler) KeywordStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	countryCode := r.PathValue("country")
	keywords := r.URL.Query()["k"]
	if len(keywords) == 0 {
		writeError(w, apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest, "at least one keyword (k=...) is required"))
		return
	}
	if h.cfg.MaxKeywords > 0 && len(keywords) > h.cfg.MaxKeywords {
		writeError(w, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "too many keywords (max %d)", h.cfg.MaxKeywords))
		return
	}

	records, err := h.store.TextsWithSentiment(ctx, countryCode)
	if err != nil {
		h.logger.Error("failed to load record texts", "country", countryCode, "error", err)
		writeError(w, err)
		return
	}

	report := ComputeKeywordReport(countryCode, keywords, records, time.Now().UTC())
	writeJSON(w, http.StatusOK, report)
}

// Activity handles GET /api/v1/activity: live ingest counters since startup.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.agg.Activity())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
