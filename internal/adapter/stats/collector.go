// Package stats centralises the fabric counters. Every dispatch, failover
// and task execution reports here so the node can expose a single
// system-wide view, both as a snapshot and through Prometheus.
package stats

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/thushan/ferry/internal/core/ports"
)

type destinationData struct {
	total    atomic.Int64
	success  atomic.Int64
	failed   atomic.Int64
	latency  atomic.Int64 // summed milliseconds
	lastUsed atomic.Int64 // unix nanos
}

// Collector tracks per-destination dispatch outcomes on lock-free maps and
// mirrors them into a Prometheus registry.
type Collector struct {
	destinations *xsync.Map[string, *destinationData]

	registry        *prometheus.Registry
	dispatchTotal   *prometheus.CounterVec
	failoverTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	taskPtime       *prometheus.HistogramVec
}

func NewCollector() *Collector {
	c := &Collector{
		destinations: xsync.NewMap[string, *destinationData](),
		registry:     prometheus.NewRegistry(),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ferry_dispatch_total",
			Help: "Lambda dispatches by destination and outcome.",
		}, []string{"lambda", "destination", "outcome"}),
		failoverTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ferry_failover_total",
			Help: "Destinations purged after a failed dispatch.",
		}, []string{"lambda", "destination"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ferry_dispatch_latency_seconds",
			Help:    "Wall-clock latency of successful dispatches.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"lambda", "destination"}),
		taskPtime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ferry_task_processing_seconds",
			Help:    "Server-side processing time of executed tasks.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		}, []string{"lambda"}),
	}
	c.registry.MustRegister(
		c.dispatchTotal, c.failoverTotal, c.dispatchLatency, c.taskPtime)
	return c
}

func (c *Collector) RecordDispatch(lambda, destination string, ok bool, elapsed time.Duration) {
	data, _ := c.destinations.LoadOrCompute(destination, func() (*destinationData, bool) {
		return &destinationData{}, false
	})
	data.total.Add(1)
	if ok {
		data.success.Add(1)
		data.latency.Add(elapsed.Milliseconds())
		c.dispatchLatency.WithLabelValues(lambda, destination).Observe(elapsed.Seconds())
		c.dispatchTotal.WithLabelValues(lambda, destination, "ok").Inc()
	} else {
		data.failed.Add(1)
		c.dispatchTotal.WithLabelValues(lambda, destination, "failed").Inc()
	}
	data.lastUsed.Store(time.Now().UnixNano())
}

func (c *Collector) RecordFailover(lambda, destination string) {
	c.failoverTotal.WithLabelValues(lambda, destination).Inc()
	if data, ok := c.destinations.Load(destination); ok {
		data.failed.Add(1)
	}
}

func (c *Collector) RecordTask(lambda string, ptime time.Duration) {
	c.taskPtime.WithLabelValues(lambda).Observe(ptime.Seconds())
}

// GetDispatchStats snapshots the per-destination counters.
func (c *Collector) GetDispatchStats() map[string]ports.DispatchStats {
	out := make(map[string]ports.DispatchStats)
	c.destinations.Range(func(destination string, data *destinationData) bool {
		stats := ports.DispatchStats{
			Destination:        destination,
			TotalRequests:      data.total.Load(),
			SuccessfulRequests: data.success.Load(),
			FailedRequests:     data.failed.Load(),
			LastUsed:           time.Unix(0, data.lastUsed.Load()),
		}
		if stats.SuccessfulRequests > 0 {
			stats.AverageLatency = data.latency.Load() / stats.SuccessfulRequests
		}
		out[destination] = stats
		return true
	})
	return out
}

// MetricsHandler serves the Prometheus exposition endpoint.
func (c *Collector) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

var _ ports.StatsCollector = (*Collector)(nil)
