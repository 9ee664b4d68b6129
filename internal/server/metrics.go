package server

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pbRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pb_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	pbRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pb_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	pbSnapshotsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pb_snapshots_total",
		Help: "Total score snapshot captures by result.",
	}, []string{"result"})

	pbReportsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pb_reports_created_total",
		Help: "Total quarterly reports created.",
	})

	pbTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pb_report_transitions_total",
		Help: "Total report lifecycle transitions by target status.",
	}, []string{"to"})

	pbReportEmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pb_report_emails_total",
		Help: "Total report distribution emails by delivery status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		pbRequestsTotal.WithLabelValues(method, path, status).Inc()
		pbRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordSnapshot records a snapshot capture result.
func RecordSnapshot(success bool) {
	if success {
		pbSnapshotsTotal.WithLabelValues("success").Inc()
	} else {
		pbSnapshotsTotal.WithLabelValues("failure").Inc()
	}
}

// RecordReportCreated records a report creation.
func RecordReportCreated() {
	pbReportsCreatedTotal.Inc()
}

// RecordTransition records a lifecycle transition to the given status.
func RecordTransition(to string) {
	pbTransitionsTotal.WithLabelValues(to).Inc()
}

// RecordReportEmail records a distribution email delivery attempt.
func RecordReportEmail(success bool) {
	if success {
		pbReportEmailsTotal.WithLabelValues("success").Inc()
	} else {
		pbReportEmailsTotal.WithLabelValues("failure").Inc()
	}
}
