// Package metrics exposes Prometheus collectors for the event roster.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "eventroster"

// Registry is the registry every collector in this package is registered with.
var Registry = prometheus.NewRegistry()

// StoreWrites counts full-snapshot rewrites of a collection file.
var StoreWrites = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_writes_total",
		Help:      "Total number of collection snapshot writes",
	},
	[]string{"collection", "result"}, // result: ok|error
)

// StoreRecords tracks the number of records held per collection.
var StoreRecords = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "store_records",
		Help:      "Number of records currently held in a collection",
	},
	[]string{"collection"},
)

// Enrollments counts enrollment attempts by outcome.
var Enrollments = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "enrollments_total",
		Help:      "Total number of enrollment attempts",
	},
	[]string{"result"}, // result: enrolled|already_enrolled|capacity_exceeded
)

// NotificationsDispatched counts sink deliveries by outcome.
var NotificationsDispatched = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dispatched_total",
		Help:      "Total number of notifications handed to the sink",
	},
	[]string{"result"}, // result: sent|failed|dropped
)

// BroadcastFailures counts subscribers that failed to take a broadcast.
var BroadcastFailures = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcast_failures_total",
		Help:      "Total number of subscriber deliveries that failed during a broadcast",
	},
)

// IndexedEvents tracks the size of the in-memory event index.
var IndexedEvents = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "indexed_events",
		Help:      "Number of events held in the in-memory index",
	},
)

// HTTPRequestsTotal counts HTTP requests by method, route and status.
var HTTPRequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	},
	[]string{"method", "route", "status"},
)

// HTTPRequestDuration observes HTTP request latency.
var HTTPRequestDuration = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "route"},
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
