package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus metrics of the guidance pipeline.
// A nil *Collector is valid and records nothing, so components can run without one.
type Collector struct {
	registry *prometheus.Registry

	drops           *prometheus.CounterVec
	accepted        prometheus.Counter
	sessions        *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	fetchCandidates *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		drops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guide_events_dropped_total",
				Help:      "Streamed model events discarded by the protocol validator",
			},
			[]string{"reason"},
		),
		accepted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guide_suggestions_accepted_total",
				Help:      "Suggestions forwarded to callers",
			},
		),
		sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guide_sessions_total",
				Help:      "Streaming sessions by entrypoint and outcome",
			},
			[]string{"entrypoint", "outcome"},
		),
		fetchFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guide_fetcher_failures_total",
				Help:      "Candidate fetchers that failed and yielded an empty list",
			},
			[]string{"source"},
		),
		fetchCandidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guide_candidates_fetched_total",
				Help:      "Candidates produced per source before dedupe",
			},
			[]string{"source"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "guide_stage_duration_seconds",
				Help:      "Pipeline stage duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guide_cache_lookups_total",
				Help:      "Candidate cache lookups by result",
			},
			[]string{"cache", "result"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "llm_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}

	registry.MustRegister(
		c.drops,
		c.accepted,
		c.sessions,
		c.fetchFailures,
		c.fetchCandidates,
		c.stageDuration,
		c.cacheLookups,
		c.breakerState,
	)

	return c
}

// Registry exposes the collector's registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.registry
}

func (c *Collector) Drop(reason string) {
	if c == nil {
		return
	}
	c.drops.WithLabelValues(reason).Inc()
}

func (c *Collector) Accepted() {
	if c == nil {
		return
	}
	c.accepted.Inc()
}

func (c *Collector) Session(entrypoint, outcome string) {
	if c == nil {
		return
	}
	c.sessions.WithLabelValues(entrypoint, outcome).Inc()
}

func (c *Collector) FetchFailed(source string) {
	if c == nil {
		return
	}
	c.fetchFailures.WithLabelValues(source).Inc()
}

func (c *Collector) Fetched(source string, n int) {
	if c == nil {
		return
	}
	c.fetchCandidates.WithLabelValues(source).Add(float64(n))
}

func (c *Collector) ObserveStage(stage string, d time.Duration) {
	if c == nil {
		return
	}
	c.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (c *Collector) CacheLookup(cache string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(cache, result).Inc()
}

func (c *Collector) BreakerState(name string, state float64) {
	if c == nil {
		return
	}
	c.breakerState.WithLabelValues(name).Set(state)
}
