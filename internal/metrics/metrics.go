// Package metrics exposes Prometheus metrics for the HTTP API and the
// account lifecycle.
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

// Metrics holds the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	accounts        *prometheus.CounterVec
	mailFailures    *prometheus.CounterVec
}

// New creates a private registry with the Go and process collectors plus the
// service metrics.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_api_http_requests_total",
				Help: "Total number of HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "user_api_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		accounts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_api_account_operations_total",
				Help: "Total number of account operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		mailFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "user_api_mail_failures_total",
				Help: "Total number of notification mails that could not be dispatched",
			},
			[]string{"kind"},
		),
	}

	registry.MustRegister(m.requests, m.requestDuration, m.accounts, m.mailFailures)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Middleware records one observation per request, labelled by route template
// so path parameters do not explode cardinality.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordAccount counts one account operation.
func (m *Metrics) RecordAccount(operation, outcome string) {
	if m == nil {
		return
	}
	m.accounts.WithLabelValues(operation, outcome).Inc()
}

// RecordMailFailure counts a confirmation or reset mail that was not dispatched.
func (m *Metrics) RecordMailFailure(kind string) {
	if m == nil {
		return
	}
	m.mailFailures.WithLabelValues(kind).Inc()
}
