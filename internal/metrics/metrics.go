// Package metrics exposes Prometheus collectors for the place-crawler service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlPagesTotal                prometheus.Counter
	placesProcessedTotal           *prometheus.CounterVec
	crawlJobsTotal                 *prometheus.CounterVec
	activeCrawlWorkers             prometheus.Gauge
	providerRequestsTotal          *prometheus.CounterVec
	providerRequestDurationSeconds *prometheus.HistogramVec
	matchQueriesTotal              prometheus.Counter
	matchCandidatesOpen            prometheus.Histogram
	httpRequestsTotal              *prometheus.CounterVec
	httpRequestDurationSeconds     *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "places_crawl_pages_total",
				Help: "Total number of nearby-search pages fetched.",
			},
		)

		placesProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "places_processed_total",
				Help: "Total number of place ids processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "places_crawl_jobs_total",
				Help: "Total number of crawl jobs processed, labeled by status.",
			},
			[]string{"status"},
		)

		activeCrawlWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "places_active_crawl_workers",
				Help: "Number of workers currently running a crawl job.",
			},
		)

		providerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "places_provider_requests_total",
				Help: "Total requests to the places provider, labeled by endpoint and status.",
			},
			[]string{"endpoint", "status"},
		)

		providerRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "places_provider_request_duration_seconds",
				Help:    "Histogram of provider request latencies, labeled by endpoint.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"endpoint"},
		)

		matchQueriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "places_match_queries_total",
				Help: "Total matching-engine queries served.",
			},
		)

		matchCandidatesOpen = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "places_match_open_candidates",
				Help:    "Histogram of open-candidate counts per match query.",
				Buckets: []float64{0, 1, 3, 5, 10, 25, 50, 100},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePageCrawled increments the fetched-page counter.
func ObservePageCrawled() {
	if crawlPagesTotal != nil {
		crawlPagesTotal.Inc()
	}
}

// ObserveOutcome increments the processed-places counter for an outcome bucket.
func ObserveOutcome(outcome string) {
	if placesProcessedTotal != nil {
		placesProcessedTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveJob increments the job counter for the given status.
func ObserveJob(status string) {
	if crawlJobsTotal != nil {
		crawlJobsTotal.WithLabelValues(status).Inc()
	}
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeCrawlWorkers != nil {
		activeCrawlWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeCrawlWorkers != nil {
		activeCrawlWorkers.Dec()
	}
}

// ObserveProviderRequest records one provider API call.
func ObserveProviderRequest(endpoint, status string, duration time.Duration) {
	if providerRequestsTotal == nil {
		return
	}
	providerRequestsTotal.WithLabelValues(endpoint, status).Inc()
	providerRequestDurationSeconds.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveMatchQuery records one matching-engine query and its open-set size.
func ObserveMatchQuery(openCandidates int) {
	if matchQueriesTotal == nil {
		return
	}
	matchQueriesTotal.Inc()
	matchCandidatesOpen.Observe(float64(openCandidates))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
