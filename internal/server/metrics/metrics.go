// Package metrics collects Prometheus metrics for the folio server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what services and middleware report to.
type Recorder interface {
	RecordHTTPRequest(method, route string, status int, d time.Duration)
	RecordRateLimited(route string)
	RecordImageIngest(result string, bytes int)
	RecordProfileWrite(result string, attempts int)
	RecordContentChange(collection, op string)
	RecordOrphan(result string)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	imageIngests    *prometheus.CounterVec
	imageBytes      prometheus.Histogram
	profileWrites   *prometheus.CounterVec
	profileAttempts prometheus.Histogram
	contentChanges  *prometheus.CounterVec
	orphans         *prometheus.CounterVec
}

// NewCollector builds a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "folio_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		imageIngests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_image_ingest_total",
			Help: "Image ingests by result.",
		}, []string{"result"}),
		imageBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_image_stored_bytes",
			Help:    "Size of stored images after compression.",
			Buckets: prometheus.ExponentialBuckets(16<<10, 2, 8),
		}),
		profileWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_profile_writes_total",
			Help: "Profile writes by result.",
		}, []string{"result"}),
		profileAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "folio_profile_write_attempts",
			Help:    "Attempts needed per profile write.",
			Buckets: []float64{1, 2, 3},
		}),
		contentChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_content_changes_total",
			Help: "Content record changes by collection and operation.",
		}, []string{"collection", "op"}),
		orphans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "folio_orphan_cleanup_total",
			Help: "Orphaned object cleanups by result.",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.rateLimited,
		c.imageIngests,
		c.imageBytes,
		c.profileWrites,
		c.profileAttempts,
		c.contentChanges,
		c.orphans,
	)

	return c
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	c.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (c *Collector) RecordRateLimited(route string) {
	c.rateLimited.WithLabelValues(route).Inc()
}

func (c *Collector) RecordImageIngest(result string, bytes int) {
	c.imageIngests.WithLabelValues(result).Inc()
	if bytes > 0 {
		c.imageBytes.Observe(float64(bytes))
	}
}

func (c *Collector) RecordProfileWrite(result string, attempts int) {
	c.profileWrites.WithLabelValues(result).Inc()
	c.profileAttempts.Observe(float64(attempts))
}

func (c *Collector) RecordContentChange(collection, op string) {
	c.contentChanges.WithLabelValues(collection, op).Inc()
}

func (c *Collector) RecordOrphan(result string) {
	c.orphans.WithLabelValues(result).Inc()
}

// Handler serves the registry for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordHTTPRequest(string, string, int, time.Duration) {}
func (Nop) RecordRateLimited(string)                             {}
func (Nop) RecordImageIngest(string, int)                        {}
func (Nop) RecordProfileWrite(string, int)                       {}
func (Nop) RecordContentChange(string, string)                   {}
func (Nop) RecordOrphan(string)                                  {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
