// Package health backs the stats service's liveness and readiness endpoints.
// A probe is a plain error-returning check (both of this service's
// dependencies expose one as a Ping method); a component is up or down,
// nothing in between, and the service is ready only when every probe passes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Status is the health state of a component or of the service overall.
type Status string

const (
	StatusUp   Status = "up"
	StatusDown Status = "down"
)

// defaultProbeTimeout bounds a readiness check when no timeout is configured.
const defaultProbeTimeout = 5 * time.Second

// Probe checks one dependency. A nil return means the dependency is usable.
type Probe func(ctx context.Context) error

// ComponentHealth is the outcome of one probe.
type ComponentHealth struct {
	Status  Status `json:"status"`
	Error   string `json:"error,omitempty"`
	Latency string `json:"latency"`
}

// Report aggregates all probe outcomes for one readiness check.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	CheckedAt  time.Time                  `json:"checked_at"`
}

// Checker runs registered probes concurrently under a shared timeout.
type Checker struct {
	probeTimeout time.Duration

	mu     sync.RWMutex
	probes map[string]Probe
}

// NewChecker creates a Checker. A non-positive probeTimeout falls back to
// five seconds.
func NewChecker(probeTimeout time.Duration) *Checker {
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}
	return &Checker{
		probeTimeout: probeTimeout,
		probes:       make(map[string]Probe),
	}
}

// Register adds a named probe.
func (c *Checker) Register(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = probe
}

// Run executes every registered probe concurrently and aggregates the
// outcomes. One down component marks the whole report down.
func (c *Checker) Run(ctx context.Context) Report {
	c.mu.RLock()
	probes := make(map[string]Probe, len(c.probes))
	for name, probe := range c.probes {
		probes[name] = probe
	}
	c.mu.RUnlock()

	type outcome struct {
		name   string
		health ComponentHealth
	}
	results := make(chan outcome, len(probes))
	for name, probe := range probes {
		go func(name string, probe Probe) {
			start := time.Now()
			err := probe(ctx)
			h := ComponentHealth{
				Status:  StatusUp,
				Latency: time.Since(start).Round(time.Millisecond).String(),
			}
			if err != nil {
				h.Status = StatusDown
				h.Error = err.Error()
			}
			results <- outcome{name: name, health: h}
		}(name, probe)
	}

	report := Report{
		Status:     StatusUp,
		Components: make(map[string]ComponentHealth, len(probes)),
		CheckedAt:  time.Now().UTC(),
	}
	for range probes {
		out := <-results
		report.Components[out.name] = out.health
		if out.health.Status == StatusDown {
			report.Status = StatusDown
		}
	}
	return report
}

// LiveHandler answers liveness probes. It reports only that the process is
// serving; dependency state belongs to readiness.
func (c *Checker) LiveHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
	}
}

// ReadyHandler answers readiness probes by running every registered probe
// under the configured timeout. 503 with the full report when anything is
// down.
func (c *Checker) ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), c.probeTimeout)
		defer cancel()
		report := c.Run(ctx)

		w.Header().Set("Content-Type", "application/json")
		if report.Status != StatusUp {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(report)
	}
}
