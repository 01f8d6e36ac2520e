// Package metrics holds the application's Prometheus collectors.
//
// Collectors live in a private registry served at /metrics. Services
// record domain events through the Record* functions; the HTTP middleware
// records request counts and latencies.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "microblog"

var (
	// Registry holds the application-specific collectors.
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
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)

	authAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Register and login attempts by outcome.",
		},
		[]string{"action", "result"},
	)

	postEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "post_events_total",
			Help:      "Posts created, edited and deleted.",
		},
		[]string{"action"},
	)

	commentsAdded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "comments_total",
			Help:      "Comments added.",
		},
	)

	reactions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "reactions_total",
			Help:      "Reaction requests; duplicate means the reaction already existed.",
		},
		[]string{"result"},
	)

	accessDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "content",
			Name:      "access_denied_total",
			Help:      "Operations refused by the authentication or ownership check.",
		},
		[]string{"operation", "reason"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		authAttempts,
		postEvents,
		commentsAdded,
		reactions,
		accessDenied,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted increments the in-flight gauge and returns the matching
// decrement.
func RequestStarted() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// ObserveRequest records one finished request. route is the router pattern
// (e.g. /api/posts/{id}), not the raw path.
func ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordAuth records a register/login/github attempt.
func RecordAuth(action string, ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	authAttempts.WithLabelValues(action, result).Inc()
}

// RecordPost records a post lifecycle event: "create", "edit" or "delete".
func RecordPost(action string) {
	postEvents.WithLabelValues(action).Inc()
}

func RecordComment() {
	commentsAdded.Inc()
}

func RecordReaction(created bool) {
	result := "duplicate"
	if created {
		result = "new"
	}
	reactions.WithLabelValues(result).Inc()
}

// RecordDenied records a refused operation; reason is "unauthenticated" or
// "forbidden".
func RecordDenied(operation, reason string) {
	accessDenied.WithLabelValues(operation, reason).Inc()
}
