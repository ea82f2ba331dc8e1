// Package telemetry exposes Prometheus collectors for the search pipeline.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is a
// valid no-op receiver so headless runs can skip instrumentation.
type Metrics struct {
	searchesTotal    *prometheus.CounterVec
	searchDuration   prometheus.Histogram
	platformRequests *prometheus.CounterVec
	platformLatency  *prometheus.HistogramVec
	postsGathered    prometheus.Counter
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		searchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_searches_total",
			Help: "Completed searches by outcome.",
		}, []string{"outcome"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "civic_search_duration_seconds",
			Help:    "Wall-clock duration of the full search pipeline.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		platformRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civic_platform_requests_total",
			Help: "Provider search calls by platform and outcome.",
		}, []string{"platform", "outcome"}),
		platformLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "civic_platform_latency_seconds",
			Help:    "Provider search latency by platform.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}, []string{"platform"}),
		postsGathered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civic_posts_gathered_total",
			Help: "Normalized posts gathered across all platforms.",
		}),
	}
	reg.MustRegister(m.searchesTotal, m.searchDuration, m.platformRequests, m.platformLatency, m.postsGathered)
	return m
}

// ObserveSearch records one finished pipeline run.
func (m *Metrics) ObserveSearch(outcome string, d time.Duration, posts int) {
	if m == nil {
		return
	}
	m.searchesTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(d.Seconds())
	m.postsGathered.Add(float64(posts))
}

// ObservePlatform records one settled provider call.
func (m *Metrics) ObservePlatform(platform, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.platformRequests.WithLabelValues(platform, outcome).Inc()
	m.platformLatency.WithLabelValues(platform).Observe(d.Seconds())
}
