// Package metrics registers the Prometheus collectors of the file asset subsystem.
package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_file_operations_total",
			Help: "Bulk file operation items by operation and outcome",
		},
		[]string{"operation", "status", "dry_run"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_file_operation_duration_seconds",
			Help:    "Duration of bulk file operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	integrityIssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_file_integrity_issues_total",
			Help: "Integrity issues found by category",
		},
		[]string{"category"},
	)

	referenceScanFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lms_reference_scan_failures_total",
			Help: "Reference scans that failed and were treated as referenced",
		},
	)

	dispatchDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_dispatch_dropped_total",
			Help: "Background tasks dropped because the queue was full or stopped",
		},
		[]string{"task"},
	)

	freedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lms_file_freed_bytes_total",
			Help: "Bytes released by physical file deletion",
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lms_http_requests_total",
			Help: "HTTP requests served by the admin API",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lms_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// ObserveOperation records the item counters and duration of one finished operation.
func ObserveOperation(operation string, dryRun bool, processed, skipped, failed int, elapsed time.Duration) {
	dry := strconv.FormatBool(dryRun)
	operationsTotal.WithLabelValues(operation, "processed", dry).Add(float64(processed))
	operationsTotal.WithLabelValues(operation, "skipped", dry).Add(float64(skipped))
	operationsTotal.WithLabelValues(operation, "failed", dry).Add(float64(failed))
	operationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func IntegrityIssue(category string) {
	integrityIssuesTotal.WithLabelValues(category).Inc()
}

func ReferenceScanFailed() {
	referenceScanFailures.Inc()
}

func DispatchDropped(task string) {
	dispatchDropped.WithLabelValues(task).Inc()
}

func FreedBytes(n int64) {
	if n > 0 {
		freedBytesTotal.Add(float64(n))
	}
}

// Middleware counts requests per matched route so path parameters do not explode cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		route := c.Route().Path
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		httpRequestsTotal.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Method(), route).Observe(time.Since(start).Seconds())
		return err
	}
}
