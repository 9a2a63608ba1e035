package monitor

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes the pipeline's operational metrics.
type Collector struct {
	downloadsSucceeded prometheus.Counter
	downloadsFailed    prometheus.Counter
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	rateLimited        prometheus.Counter

	activeDownloads prometheus.Gauge
	queueSize       prometheus.Gauge

	downloadDuration prometheus.Histogram
}

func NewCollector() *Collector {
	c := &Collector{
		downloadsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipqueue_downloads_succeeded_total",
			Help: "Total number of successfully delivered downloads.",
		}),
		downloadsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipqueue_downloads_failed_total",
			Help: "Total number of failed downloads.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipqueue_cache_hits_total",
			Help: "Artifact cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipqueue_cache_misses_total",
			Help: "Artifact cache misses.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clipqueue_admissions_denied_total",
			Help: "Submissions denied by the rate limiter.",
		}),
		activeDownloads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipqueue_downloads_active",
			Help: "Number of currently running downloads.",
		}),
		queueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "clipqueue_queue_size",
			Help: "Number of jobs waiting in the queue.",
		}),
		downloadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "clipqueue_download_duration_seconds",
			Help:    "Download duration distribution.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
	}

	prometheus.MustRegister(
		c.downloadsSucceeded,
		c.downloadsFailed,
		c.cacheHits,
		c.cacheMisses,
		c.rateLimited,
		c.activeDownloads,
		c.queueSize,
		c.downloadDuration,
	)
	return c
}

func (c *Collector) RecordSuccess()  { c.downloadsSucceeded.Inc() }
func (c *Collector) RecordFailure()  { c.downloadsFailed.Inc() }
func (c *Collector) RecordCacheHit() { c.cacheHits.Inc() }
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}
func (c *Collector) RecordRateLimited() { c.rateLimited.Inc() }

func (c *Collector) IncActiveDownloads() { c.activeDownloads.Inc() }
func (c *Collector) DecActiveDownloads() { c.activeDownloads.Dec() }
func (c *Collector) SetQueueSize(n int)  { c.queueSize.Set(float64(n)) }

func (c *Collector) ObserveDownloadDuration(d time.Duration) {
	c.downloadDuration.Observe(d.Seconds())
}

// Handler serves the metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.Handler()
}
