package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backend labels.
const (
	backendFile   = "file"
	backendSQLite = "sqlite"
)

// Operation result labels.
const (
	resultOK       = "ok"
	resultMiss     = "miss"
	resultCanceled = "canceled"
	resultError    = "error"
)

// Prometheus metrics.
var (
	storeOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"backend", "operation", "result"},
	)

	storeOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storeMalformedLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_malformed_lines_total",
			Help: "Total number of record lines skipped because they could not be parsed",
		},
	)
)

// resultLabel classifies an operation error for metrics.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return resultOK
	case errors.Is(err, ErrNoMatch), errors.Is(err, ErrNotFound):
		return resultMiss
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resultCanceled
	default:
		return resultError
	}
}

// observe records the outcome and duration of a store operation.
func observe(backend, operation string, start time.Time, err error) {
	storeOperationsTotal.WithLabelValues(backend, operation, resultLabel(err)).Inc()
	storeOperationDuration.WithLabelValues(backend, operation).Observe(time.Since(start).Seconds())
}
