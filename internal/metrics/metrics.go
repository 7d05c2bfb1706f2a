// Package metrics provides Prometheus metrics for the marketplace.
//
// Key metrics:
//   - Ledger operation outcomes and latencies, labelled by error code
//   - Purchase volume and withdrawn proceeds
//   - Event deliveries per publisher
//   - HTTP request rates and latencies per route
package metrics

import (
	"errors"
	"net/http"
	"time"

	"nft-marketplace/pkg/apperror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "nft_marketplace"

	ResultOK = "ok"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	purchaseVolume    prometheus.Counter
	withdrawn         prometheus.Counter
	deliveries        *prometheus.CounterVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates the collectors and registers them on a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Ledger operations by operation and result (ok or error code).",
		}, []string{"operation", "result"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency including guard wait and external calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		purchaseVolume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "purchase_volume_total",
			Help:      "Sum of amounts paid for purchased items, in the smallest unit.",
		}),
		withdrawn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "proceeds_withdrawn_total",
			Help:      "Sum of proceeds paid out to sellers, in the smallest unit.",
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "deliveries_total",
			Help:      "Event deliveries by publisher and result.",
		}, []string{"publisher", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations,
		m.operationDuration,
		m.purchaseVolume,
		m.withdrawn,
		m.deliveries,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry exposes the underlying registry (tests gather from it).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveOperation records one ledger operation that started at start.
func (m *Metrics) ObserveOperation(op string, start time.Time, err error) {
	m.operations.WithLabelValues(op, ResultOf(err)).Inc()
	m.operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddPurchase(paid int64) {
	m.purchaseVolume.Add(float64(paid))
}

func (m *Metrics) AddWithdrawal(amount int64) {
	m.withdrawn.Add(float64(amount))
}

// ObserveDelivery records one event delivery attempt outcome.
func (m *Metrics) ObserveDelivery(publisher string, err error) {
	result := ResultOK
	if err != nil {
		result = "error"
	}
	m.deliveries.WithLabelValues(publisher, result).Inc()
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ResultOf maps an error to a low-cardinality label: "ok", the AppError
// code, or "unknown".
func ResultOf(err error) string {
	if err == nil {
		return ResultOK
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "unknown"
}
