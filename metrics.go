package netguard

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the request pipeline. It
// is safe for concurrent use and every Record method is a no-op on nil.
type MetricsCollector struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec

	retriesTotal *prometheus.CounterVec

	throttledTotal     *prometheus.CounterVec
	throttleLedgerSize prometheus.Gauge

	errorsTotal *prometheus.CounterVec

	statusRulesFired *prometheus.CounterVec

	uploadBytes *prometheus.CounterVec

	registerer prometheus.Registerer
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using supplied registerer.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	factory := promauto.With(registry)
	return &MetricsCollector{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netguard_requests_total",
				Help: "Total number of logical requests completed",
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "netguard_request_duration_seconds",
				Help:    "Duration of logical requests in seconds, retries included",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "status_code", "endpoint"},
		),
		requestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "netguard_requests_in_flight",
				Help: "Number of requests currently in flight",
			},
			[]string{"method", "endpoint"},
		),
		retriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netguard_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"method", "endpoint", "attempt"},
		),
		throttledTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netguard_throttled_total",
				Help: "Total number of requests denied by the throttle guard",
			},
			[]string{"method", "endpoint"},
		),
		throttleLedgerSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "netguard_throttle_ledger_size",
				Help: "Number of fingerprints held by the throttle guard",
			},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netguard_errors_total",
				Help: "Total number of failed requests by error kind",
			},
			[]string{"kind", "method", "endpoint"},
		),
		statusRulesFired: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netguard_status_rules_fired_total",
				Help: "Total number of status rule handlers invoked",
			},
			[]string{"status_code"},
		),
		uploadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "netguard_upload_bytes_total",
				Help: "Total multipart bytes prepared for upload",
			},
			[]string{"endpoint"},
		),
		registerer: registry,
	}
}

// RecordRequest records request count and duration.
func (mc *MetricsCollector) RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if mc == nil {
		return
	}

	statusCodeStr := strconv.Itoa(statusCode)
	mc.requestsTotal.WithLabelValues(method, statusCodeStr, endpoint).Inc()
	mc.requestDuration.WithLabelValues(method, statusCodeStr, endpoint).Observe(duration.Seconds())
}

// RecordRequestStart increments in-flight gauge.
func (mc *MetricsCollector) RecordRequestStart(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Inc()
}

// RecordRequestEnd decrements in-flight gauge.
func (mc *MetricsCollector) RecordRequestEnd(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.requestsInFlight.WithLabelValues(method, endpoint).Dec()
}

// RecordRetry increments retry counter for an attempt.
func (mc *MetricsCollector) RecordRetry(method, endpoint string, attempt int) {
	if mc == nil {
		return
	}

	mc.retriesTotal.WithLabelValues(method, endpoint, strconv.Itoa(attempt)).Inc()
}

// RecordThrottled increments the throttle denial counter.
func (mc *MetricsCollector) RecordThrottled(method, endpoint string) {
	if mc == nil {
		return
	}

	mc.throttledTotal.WithLabelValues(method, endpoint).Inc()
}

// RecordThrottleLedgerSize sets the ledger size gauge.
func (mc *MetricsCollector) RecordThrottleLedgerSize(size int) {
	if mc == nil {
		return
	}

	mc.throttleLedgerSize.Set(float64(size))
}

// RecordError increments error counter by kind.
func (mc *MetricsCollector) RecordError(kind ErrorKind, method, endpoint string) {
	if mc == nil {
		return
	}

	mc.errorsTotal.WithLabelValues(kind.String(), method, endpoint).Inc()
}

// RecordStatusRuleFired increments the rule counter for a status code.
func (mc *MetricsCollector) RecordStatusRuleFired(statusCode int) {
	if mc == nil {
		return
	}

	mc.statusRulesFired.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordUploadBytes adds n to the upload byte counter.
func (mc *MetricsCollector) RecordUploadBytes(endpoint string, n int) {
	if mc == nil {
		return
	}

	mc.uploadBytes.WithLabelValues(endpoint).Add(float64(n))
}

// Registerer exposes the registerer the metrics were created on.
func (mc *MetricsCollector) Registerer() prometheus.Registerer {
	return mc.registerer
}
