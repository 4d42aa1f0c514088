// Package metrics exposes Prometheus counters and histograms for the HTTP
// layer and the image upload pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hospital_directory"

// Collector holds every metric the server records. It is safe for concurrent use.
type Collector struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	imagesStored   *prometheus.CounterVec
	imagesOrphaned *prometheus.CounterVec
	loginsLimited  prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
// Tests pass prometheus.NewRegistry() so runs do not share state.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		imagesStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_stored_total",
			Help:      "Images stored and referenced by a record, by collection.",
		}, []string{"collection"}),
		imagesOrphaned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orphaned_images_total",
			Help:      "Replaced images that could not be deleted from storage, by collection.",
		}, []string{"collection"}),
		loginsLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_rate_limited_total",
			Help:      "Login attempts rejected by the per-IP rate limiter.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.duration,
		c.imagesStored,
		c.imagesOrphaned,
		c.loginsLimited,
	)
	return c
}

// ObserveRequest records one completed HTTP request. route is the chi route
// pattern, not the raw path, so ids do not explode label cardinality.
func (c *Collector) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ImageStored counts an upload whose reference swap succeeded.
func (c *Collector) ImageStored(collection string) {
	c.imagesStored.WithLabelValues(collection).Inc()
}

// ImageOrphaned counts a displaced image left behind in storage.
func (c *Collector) ImageOrphaned(collection string) {
	c.imagesOrphaned.WithLabelValues(collection).Inc()
}

// LoginRateLimited counts a login attempt rejected with 429.
func (c *Collector) LoginRateLimited() {
	c.loginsLimited.Inc()
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
