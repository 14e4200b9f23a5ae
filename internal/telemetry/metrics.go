// Package telemetry exposes Prometheus collectors for the scraper service.
package telemetry

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
	fetchesTotal            *prometheus.CounterVec
	extractionSeconds       *prometheus.HistogramVec
	scrapeItemsTotal        *prometheus.CounterVec
	catalogPagesTotal       *prometheus.CounterVec
	catalogVariantsTotal    *prometheus.CounterVec
	rateLimitDelaySeconds   *prometheus.HistogramVec
	scrapeBatchSizeObserved prometheus.Histogram

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skuscraper_fetches_total",
				Help: "Documents fetched, labeled by host and status code.",
			},
			[]string{"host", "status"},
		)
		extractionSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skuscraper_extraction_seconds",
				Help:    "Extraction latency per document, labeled by storefront family.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 5, 30},
			},
			[]string{"family"},
		)
		scrapeItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skuscraper_items_total",
				Help: "Batch items processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)
		catalogPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skuscraper_catalog_pages_total",
				Help: "Catalog feed pages indexed, labeled by origin host.",
			},
			[]string{"host"},
		)
		catalogVariantsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skuscraper_catalog_variants_total",
				Help: "Catalog variants indexed, labeled by origin host.",
			},
			[]string{"host"},
		)
		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "skuscraper_ratelimit_delay_seconds",
				Help:    "Delay introduced by the per-origin rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"host"},
		)
		scrapeBatchSizeObserved = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "skuscraper_batch_size",
				Help:    "Distribution of submitted batch sizes.",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
		)
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "API requests served, labeled by method and status code.",
			},
			[]string{"method", "code"},
		)
		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "API request latency, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// ObserveFetch records one fetched document.
func ObserveFetch(host string, status int) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(host, strconv.Itoa(status)).Inc()
}

// ObserveExtraction records extraction latency for a family.
func ObserveExtraction(family string, d time.Duration) {
	if extractionSeconds == nil {
		return
	}
	extractionSeconds.WithLabelValues(family).Observe(d.Seconds())
}

// ObserveItem records a finished batch item with its outcome ("ok"/"error").
func ObserveItem(outcome string) {
	if scrapeItemsTotal == nil {
		return
	}
	scrapeItemsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCatalogPage records one indexed feed page and its variant count.
func ObserveCatalogPage(host string, variants int) {
	if catalogPagesTotal == nil {
		return
	}
	catalogPagesTotal.WithLabelValues(host).Inc()
	catalogVariantsTotal.WithLabelValues(host).Add(float64(variants))
}

// ObserveRateLimitDelay records time spent waiting on the origin limiter.
func ObserveRateLimitDelay(host string, d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// ObserveBatchSize records the size of a submitted batch.
func ObserveBatchSize(n int) {
	if scrapeBatchSizeObserved == nil {
		return
	}
	scrapeBatchSizeObserved.Observe(float64(n))
}

// Handler returns the metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
