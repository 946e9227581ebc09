package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds idempotency-related Prometheus metrics.
type Metrics struct {
	// Hits counts cached responses replayed to retries.
	Hits *prometheus.CounterVec

	// Misses counts new requests processed under a fresh key.
	Misses *prometheus.CounterVec

	// ParameterMismatches counts retries whose body differed from the original.
	ParameterMismatches *prometheus.CounterVec

	// ConcurrentCollisions counts retries rejected while the original was in flight.
	ConcurrentCollisions *prometheus.CounterVec

	// LockAcquisitionDuration tracks time to acquire the key lock.
	LockAcquisitionDuration *prometheus.HistogramVec

	// StorageErrors counts storage failures by operation.
	StorageErrors *prometheus.CounterVec
}

// NewMetrics registers the idempotency metrics on the given registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		Hits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idempotency_hits_total",
				Help: "Total number of idempotency cache hits (cached response returned)",
			},
			[]string{"service", "endpoint", "method"},
		),
		Misses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idempotency_misses_total",
				Help: "Total number of idempotency cache misses (new request processed)",
			},
			[]string{"service", "endpoint", "method"},
		),
		ParameterMismatches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idempotency_parameter_mismatches_total",
				Help: "Total number of parameter mismatch errors (same key, different body)",
			},
			[]string{"service", "endpoint", "method"},
		),
		ConcurrentCollisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idempotency_concurrent_collisions_total",
				Help: "Total number of concurrent request collisions (409 Conflict)",
			},
			[]string{"service", "endpoint", "method"},
		),
		LockAcquisitionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "idempotency_lock_acquisition_duration_seconds",
				Help:    "Time taken to acquire idempotency lock",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "endpoint", "method"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "idempotency_storage_errors_total",
				Help: "Total number of idempotency storage errors",
			},
			[]string{"service", "operation"},
		),
	}
}

// RecordHit records an idempotency cache hit
func (m *Metrics) RecordHit(service, endpoint, method string) {
	if m.Hits != nil {
		m.Hits.WithLabelValues(service, endpoint, method).Inc()
	}
}

// RecordMiss records an idempotency cache miss
func (m *Metrics) RecordMiss(service, endpoint, method string) {
	if m.Misses != nil {
		m.Misses.WithLabelValues(service, endpoint, method).Inc()
	}
}

// RecordParameterMismatch records a parameter mismatch error
func (m *Metrics) RecordParameterMismatch(service, endpoint, method string) {
	if m.ParameterMismatches != nil {
		m.ParameterMismatches.WithLabelValues(service, endpoint, method).Inc()
	}
}

// RecordConcurrentCollision records a concurrent request collision
func (m *Metrics) RecordConcurrentCollision(service, endpoint, method string) {
	if m.ConcurrentCollisions != nil {
		m.ConcurrentCollisions.WithLabelValues(service, endpoint, method).Inc()
	}
}

// RecordLockAcquisitionDuration records the time taken to acquire a lock
func (m *Metrics) RecordLockAcquisitionDuration(service, endpoint, method string, duration float64) {
	if m.LockAcquisitionDuration != nil {
		m.LockAcquisitionDuration.WithLabelValues(service, endpoint, method).Observe(duration)
	}
}

// RecordStorageError records a storage error
func (m *Metrics) RecordStorageError(service, operation string) {
	if m.StorageErrors != nil {
		m.StorageErrors.WithLabelValues(service, operation).Inc()
	}
}
