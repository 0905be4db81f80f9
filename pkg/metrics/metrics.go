// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	transitions      *prometheus.CounterVec
	rejected         *prometheus.CounterVec
	reviewsSubmitted prometheus.Counter
}

// New creates and registers the collectors on a private registry.
func New(service string) *Metrics {
	labels := prometheus.Labels{"service": service}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests by method, route and status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "booking_transitions_total",
			Help:        "Applied booking transitions by action and resulting status.",
			ConstLabels: labels,
		}, []string{"action", "to"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "booking_transitions_rejected_total",
			Help:        "Rejected booking transitions by reason.",
			ConstLabels: labels,
		}, []string{"action", "reason"}),
		reviewsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "reviews_submitted_total",
			Help:        "Reviews accepted by the review gate.",
			ConstLabels: labels,
		}),
	}
	m.registry.MustRegister(
		m.httpRequests, m.httpDuration, m.transitions, m.rejected, m.reviewsSubmitted,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request count and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// TransitionApplied counts a successful transition. Safe on a nil receiver.
func (m *Metrics) TransitionApplied(action, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, to).Inc()
}

// TransitionRejected counts a refused transition. Safe on a nil receiver.
func (m *Metrics) TransitionRejected(action, reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(action, reason).Inc()
}

// ReviewSubmitted counts an accepted review. Safe on a nil receiver.
func (m *Metrics) ReviewSubmitted() {
	if m == nil {
		return
	}
	m.reviewsSubmitted.Inc()
}
