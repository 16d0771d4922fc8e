package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	InFlightGauge   prometheus.Gauge

	BackendDuration *prometheus.HistogramVec

	PollsTotal         *prometheus.CounterVec
	StaleResponses     prometheus.Counter
	AlertsFired        prometheus.Counter
	ActivePollers      prometheus.Gauge
	LocationUpdates    prometheus.Counter
	PushReconnects     *prometheus.CounterVec
	NotifySinkFailures *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewCollector registers every dashboard metric on its own registry so tests
// can build as many collectors as they like.
func NewCollector(namespace string) *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"method", "path", "status"}),

		InFlightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),

		BackendDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "call_duration_seconds",
			Help:      "Marketplace API call latency by operation and outcome.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"operation", "outcome"}),

		PollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "polls_total",
			Help:      "Order fetches by trigger and outcome.",
		}, []string{"trigger", "outcome"}),

		StaleResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "stale_responses_total",
			Help:      "Order responses discarded because a newer fetch already landed.",
		}),

		AlertsFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "new_order_alerts_total",
			Help:      "New order alerts fired after deduplication.",
		}),

		ActivePollers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "active_pollers",
			Help:      "Manager sessions with a running order poller.",
		}),

		LocationUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "locations",
			Name:      "updates_total",
			Help:      "Delivery location updates received over the push channel.",
		}),

		PushReconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "push",
			Name:      "reconnects_total",
			Help:      "Push channel reconnect attempts by channel.",
		}, []string{"channel"}),

		NotifySinkFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sink_failures_total",
			Help:      "Alert deliveries that failed, by sink.",
		}, []string{"sink"}),
	}

	reg.MustRegister(
		c.RequestsTotal, c.RequestDuration, c.InFlightGauge,
		c.BackendDuration,
		c.PollsTotal, c.StaleResponses, c.AlertsFired, c.ActivePollers,
		c.LocationUpdates, c.PushReconnects, c.NotifySinkFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) Middleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		c.InFlightGauge.Inc()
		defer c.InFlightGauge.Dec()

		ctx.Next()

		path := ctx.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(ctx.Writer.Status())
		c.RequestsTotal.WithLabelValues(ctx.Request.Method, path, status).Inc()
		c.RequestDuration.WithLabelValues(ctx.Request.Method, path, status).Observe(time.Since(start).Seconds())
	}
}

// ObserveBackend records one marketplace API call.
func (c *Collector) ObserveBackend(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.BackendDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func (c *Collector) SinkFailed(sink string) {
	c.NotifySinkFailures.WithLabelValues(sink).Inc()
}

func (c *Collector) PollCompleted(trigger, outcome string) {
	c.PollsTotal.WithLabelValues(trigger, outcome).Inc()
}

func (c *Collector) StaleResponse() { c.StaleResponses.Inc() }

func (c *Collector) AlertFired() { c.AlertsFired.Inc() }

func (c *Collector) PollerRunning(delta float64) { c.ActivePollers.Add(delta) }

func (c *Collector) LocationUpdated() { c.LocationUpdates.Inc() }

func (c *Collector) Reconnected(channel string) {
	c.PushReconnects.WithLabelValues(channel).Inc()
}
