// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "propease"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	lifecycleEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Lifecycle events accepted for delivery, by type.",
		},
		[]string{"type"},
	)

	eventDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "deliveries_total",
			Help:      "Event deliveries to sinks, by sink and result.",
		},
		[]string{"sink", "result"},
	)

	eventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because the dispatch queue was full.",
		},
	)

	payments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "payments_total",
			Help:      "Recorded obligation payments, by transaction kind and lateness.",
		},
		[]string{"kind", "late"},
	)

	collectedMinorUnits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "collected_minor_units_total",
			Help:      "Amount collected through payments in minor currency units, including late fees.",
		},
		[]string{"kind"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweep_runs_total",
			Help:      "Expiry sweeps executed, by success.",
		},
		[]string{"success"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of expiry sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
	)

	expiredTenancies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "expired_tenancies_total",
			Help:      "Tenancies terminated by the expiry sweep.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		lifecycleEvents,
		eventDeliveries,
		eventsDropped,
		payments,
		collectedMinorUnits,
		sweepRuns,
		sweepDuration,
		expiredTenancies,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per matched gin route.
// Unmatched requests are grouped under "unmatched" to bound label cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		httpInFlight.Inc()
		defer httpInFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordEventPublished counts an event accepted by the dispatcher.
func RecordEventPublished(eventType string) {
	lifecycleEvents.WithLabelValues(eventType).Inc()
}

// RecordEventDelivery counts one delivery attempt outcome for a sink.
func RecordEventDelivery(sink string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventDeliveries.WithLabelValues(sink, result).Inc()
}

// RecordEventDropped counts an event discarded on a full queue.
func RecordEventDropped() {
	eventsDropped.Inc()
}

// RecordPayment counts a settled obligation and the amount collected.
func RecordPayment(kind string, late bool, totalMinorUnits int64) {
	payments.WithLabelValues(kind, strconv.FormatBool(late)).Inc()
	if totalMinorUnits > 0 {
		collectedMinorUnits.WithLabelValues(kind).Add(float64(totalMinorUnits))
	}
}

// RecordSweep records one expiry sweep.
func RecordSweep(duration time.Duration, expired int, err error) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	sweepRuns.WithLabelValues(strconv.FormatBool(err == nil)).Inc()
	sweepDuration.Observe(duration.Seconds())
	if expired > 0 {
		expiredTenancies.Add(float64(expired))
	}
}
