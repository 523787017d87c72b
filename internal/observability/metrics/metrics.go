// Package metrics exposes sync and read counters to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bakkerme/newsfeed/internal/core"
)

// Collector holds every metric of one process on its own registry.
type Collector struct {
	registry *prometheus.Registry

	Cycles         *prometheus.CounterVec
	CycleDuration  prometheus.Histogram
	ItemsFetched   prometheus.Counter
	ItemsAdded     prometheus.Counter
	ItemsEvicted   prometheus.Counter
	ItemsFiltered  prometheus.Counter
	StoreSize      prometheus.Gauge
	Watermark      prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	ReadsTruncated prometheus.Counter
}

func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()
	c := &Collector{
		registry: registry,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_cycles_total",
			Help:      "Sync cycles by final status and stop reason",
		}, []string{"status", "stop_reason"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_cycle_duration_seconds",
			Help:      "Wall time of a sync cycle",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		ItemsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_fetched_total",
			Help:      "Items received from upstream",
		}),
		ItemsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_added_total",
			Help:      "Items whose id was new to the store",
		}),
		ItemsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_evicted_total",
			Help:      "Items dropped for falling behind the retention horizon",
		}),
		ItemsFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_filtered_total",
			Help:      "Fetched items dropped by filter rules",
		}),
		StoreSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_items",
			Help:      "Items in the store after the last mutating cycle",
		}),
		Watermark: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watermark_timestamp_seconds",
			Help:      "Unix time of the stored watermark",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ReadsTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_truncated_total",
			Help:      "Read responses cut down to the newest items",
		}),
	}

	registry.MustRegister(
		c.Cycles,
		c.CycleDuration,
		c.ItemsFetched,
		c.ItemsAdded,
		c.ItemsEvicted,
		c.ItemsFiltered,
		c.StoreSize,
		c.Watermark,
		c.HTTPRequests,
		c.HTTPDuration,
		c.ReadsTruncated,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// RecordCycle implements ingest.Recorder.
func (c *Collector) RecordCycle(report *core.CycleReport) {
	if c == nil || report == nil {
		return
	}
	c.Cycles.WithLabelValues(string(report.Status), string(report.StopReason)).Inc()
	if report.CompletedAt != nil {
		c.CycleDuration.Observe(report.CompletedAt.Sub(report.StartedAt).Seconds())
	}
	c.ItemsFetched.Add(float64(report.Fetched))
	c.ItemsFiltered.Add(float64(report.Filtered))
	if report.Mutated {
		c.ItemsAdded.Add(float64(report.Added))
		c.ItemsEvicted.Add(float64(report.Evicted))
		c.StoreSize.Set(float64(report.StoreSize))
		c.Watermark.Set(float64(report.Watermark.Unix()))
	}
}

// RecordRequest counts one HTTP request.
func (c *Collector) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) RecordRead(truncated bool) {
	if c == nil || !truncated {
		return
	}
	c.ReadsTruncated.Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
