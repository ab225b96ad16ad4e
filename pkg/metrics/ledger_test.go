package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetrics_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)

	m.ObserveOperation("transfer", ResultOK, 20*time.Millisecond)
	m.ObserveOperation("transfer", ResultOK, 10*time.Millisecond)
	m.ObserveOperation("transfer", ResultRejected, time.Millisecond)
	m.ObserveLockWait(time.Millisecond)
	m.AddMoved("transfer", decimal.RequireFromString("12.50"))
	m.AddMoved("transfer", decimal.RequireFromString("7.50"))
	m.ObserveRequest(http.MethodPost, "/api/v1/transfers", 201)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.operations.WithLabelValues("transfer", ResultOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("transfer", ResultRejected)))
	assert.Equal(t, float64(20), testutil.ToFloat64(m.moved.WithLabelValues("transfer")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("POST", "/api/v1/transfers", "201")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.lockWait))
}

func TestLedgerMetrics_NilIsNoop(t *testing.T) {
	var m *LedgerMetrics
	m.ObserveOperation("recharge", ResultOK, time.Second)
	m.ObserveLockWait(time.Second)
	m.AddMoved("recharge", decimal.NewFromInt(1))
	m.ObserveRequest("GET", "", 200)

	empty := NewLedgerMetrics(nil)
	empty.ObserveOperation("recharge", ResultOK, time.Second)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLedgerMetrics_Handler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	m.ObserveOperation("debit", ResultError, time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `wallet_ledger_operations_total{operation="debit",result="error"} 1`)
}
