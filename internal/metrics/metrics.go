package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Review job metrics
	ReviewJobsTotal   *prometheus.CounterVec // outcome: succeeded, failed, retried
	ReviewJobDuration prometheus.Histogram

	// Vote metrics
	TagVotesTotal *prometheus.CounterVec // action: cast, switch, toggle_off

	// Leaderboard cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			ReviewJobsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "review_jobs_total",
					Help: "Review jobs processed by outcome",
				},
				[]string{"outcome"},
			),
			ReviewJobDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "review_job_duration_seconds",
					Help:    "Wall time spent processing one review job",
					Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
			),
			TagVotesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tag_votes_total",
					Help: "Tag votes applied by action",
				},
				[]string{"action"},
			),
			CacheHitsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it on first use
func Get() *Metrics {
	return Initialize()
}
