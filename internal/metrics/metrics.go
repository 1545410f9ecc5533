// Package metrics exposes Prometheus collectors for the techwatch service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	postsFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techwatch_posts_fetched_total",
		Help: "Posts returned by crawlers, per source.",
	}, []string{"source"})

	sourceFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techwatch_source_failures_total",
		Help: "Crawler invocations that ended in timeout or panic.",
	}, []string{"source", "reason"})

	fetchDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "techwatch_fetch_duration_seconds",
		Help:    "Wall time of one crawler invocation.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"source"})

	anomaliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techwatch_anomalies_total",
		Help: "Anomaly advisories raised, per source and kind.",
	}, []string{"source", "kind"})

	runDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "techwatch_run_duration_seconds",
		Help:    "Wall time of a full crawl run.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	newPostsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "techwatch_new_posts_total",
		Help: "Posts added to the dataset by merges.",
	})
)

// ObserveFetch records the outcome of one crawler invocation.
func ObserveFetch(source string, posts int, elapsed time.Duration) {
	postsFetchedTotal.WithLabelValues(source).Add(float64(posts))
	fetchDurationSeconds.WithLabelValues(source).Observe(elapsed.Seconds())
}

// IncSourceFailure counts a timeout or panic for a source.
func IncSourceFailure(source, reason string) {
	sourceFailuresTotal.WithLabelValues(source, reason).Inc()
}

// IncAnomaly counts one advisory.
func IncAnomaly(source, kind string) {
	anomaliesTotal.WithLabelValues(source, kind).Inc()
}

// ObserveRun records the wall time of a full run.
func ObserveRun(elapsed time.Duration) {
	runDurationSeconds.Observe(elapsed.Seconds())
}

// AddNewPosts counts posts a merge added to the dataset.
func AddNewPosts(n int) {
	if n > 0 {
		newPostsTotal.Add(float64(n))
	}
}
