// Package metrics exposes Prometheus instruments for the ledger service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const namespace = "wallet_ledger"

// Operation results.
const (
	ResultOK       = "ok"
	ResultReplayed = "replayed"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// LedgerMetrics records ledger operations. A nil *LedgerMetrics is a no-op.
type LedgerMetrics struct {
	gatherer   prometheus.Gatherer
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lockWait   prometheus.Histogram
	moved      *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger instruments on reg.
// A nil reg yields a recorder that drops everything.
func NewLedgerMetrics(reg *prometheus.Registry) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	factory := promauto.With(reg)
	return &LedgerMetrics{
		gatherer: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Ledger operations partitioned by operation and result.",
		}, []string{"operation", "result"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "End-to-end duration of ledger operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		lockWait: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time spent waiting for wallet locks.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		moved: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moved_amount_total",
			Help:      "Sum of committed movement amounts per operation.",
		}, []string{"operation"}),
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests partitioned by route and status.",
		}, []string{"method", "route", "status"}),
	}
}

// ObserveOperation records one finished ledger call.
func (m *LedgerMetrics) ObserveOperation(op, result string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(op, result).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveLockWait records how long a caller waited for its wallet locks.
func (m *LedgerMetrics) ObserveLockWait(d time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

// AddMoved adds a committed amount to the volume counter.
func (m *LedgerMetrics) AddMoved(op string, amount decimal.Decimal) {
	if m == nil || m.moved == nil {
		return
	}
	m.moved.WithLabelValues(op).Add(amount.InexactFloat64())
}

// ObserveRequest records one HTTP request.
func (m *LedgerMetrics) ObserveRequest(method, route string, status int) {
	if m == nil || m.requests == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *LedgerMetrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
