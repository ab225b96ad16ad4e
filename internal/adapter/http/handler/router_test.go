package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-ledger/internal/adapter/http/handler"
	"wallet-ledger/internal/adapter/lock"
	"wallet-ledger/internal/adapter/storage/memory"
	redisStore "wallet-ledger/internal/adapter/storage/redis"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/service"
	"wallet-ledger/pkg/metrics"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret-at-least-32-bytes!"

type apiHarness struct {
	router *gin.Engine
	tokens *service.JWTTokenService
}

// newAPI wires the full stack over an in-memory store.
func newAPI(t *testing.T, mutate ...func(*handler.RouterDeps)) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	wallets := memory.NewWalletRepo(store)
	txRepo := memory.NewTransactionRepo(store)
	auditRepo := memory.NewAuditRepo(store)
	m := metrics.NewLedgerMetrics(prometheus.NewRegistry())

	engine := service.NewLedgerEngine(service.LedgerEngineDeps{
		Wallets:      wallets,
		Transactions: txRepo,
		Idempotency:  memory.NewIdempotencyRepo(store),
		Transactor:   store,
		Locker:       lock.NewLocal(time.Second),
		Audit:        service.NewAuditTrail(auditRepo, zerolog.Nop()),
		Metrics:      m,
		Policy:       domain.DefaultAmountPolicy(),
		Log:          zerolog.Nop(),
	})
	query := service.NewQueryService(wallets, txRepo, auditRepo, store,
		service.Paging{DefaultSize: 20, MaxSize: 100}, zerolog.Nop())
	tokens := service.NewJWTTokenService(testSecret, time.Hour, "wallet-ledger-test")

	deps := handler.RouterDeps{
		Ledger:      engine,
		Query:       query,
		TokenSvc:    tokens,
		Metrics:     m,
		AmountScale: domain.DefaultAmountPolicy().Scale,
		PageSize:    20,
		MaxPageSize: 100,
		Logger:      zerolog.Nop(),
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	return &apiHarness{router: handler.SetupRouter(deps), tokens: tokens}
}

func (h *apiHarness) token(t *testing.T, staffID, centreID int64) string {
	t.Helper()
	tok, _, err := h.tokens.Generate(staffID, centreID)
	require.NoError(t, err)
	return tok
}

func (h *apiHarness) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	var resp map[string]interface{}
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func (h *apiHarness) createWallet(t *testing.T, token, name, initial string) int64 {
	t.Helper()
	w, resp := h.do(t, http.MethodPost, "/api/v1/wallets", token, map[string]interface{}{
		"name":            name,
		"kind":            "cash",
		"ownership":       "shared",
		"initial_balance": initial,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return int64(resp["data"].(map[string]interface{})["id"].(float64))
}

func data(resp map[string]interface{}) map[string]interface{} {
	return resp["data"].(map[string]interface{})
}

func TestRouter_LedgerFlow(t *testing.T) {
	api := newAPI(t)
	tok := api.token(t, 7, 3)

	till := api.createWallet(t, tok, "Front desk till", "100")
	safe := api.createWallet(t, tok, "Back office safe", "0")

	w, resp := api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/wallets/%d/debit", till), tok,
		map[string]string{"amount": "30", "category": "supplies"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "70.00", data(resp)["transaction"].(map[string]interface{})["balance_after"])

	transfer := map[string]interface{}{"from_wallet_id": till, "to_wallet_id": safe, "amount": "20.5"}
	w, first := api.do(t, http.MethodPost, "/api/v1/transfers", tok, transfer, "Idempotency-Key", "close-out-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, replay := api.do(t, http.MethodPost, "/api/v1/transfers", tok, transfer, "Idempotency-Key", "close-out-1")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t,
		data(first)["debit"].(map[string]interface{})["id"],
		data(replay)["debit"].(map[string]interface{})["id"],
		"a retried transfer returns the original legs")

	w, resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%d", till), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "49.50", data(resp)["balance"])

	w, resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%d/transactions?page_size=2", till), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	meta := resp["meta"].(map[string]interface{})
	assert.Equal(t, float64(3), meta["total"], "opening balance, debit and one transfer leg")
	assert.Equal(t, float64(2), meta["total_pages"])
	assert.Len(t, data(resp)["transactions"], 2)

	w, resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%d/reconciliation", safe), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, data(resp)["consistent"])
	assert.Equal(t, "20.50", data(resp)["stored_balance"])

	w, resp = api.do(t, http.MethodGet, "/api/v1/reports/centre-summary", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "70.00", data(resp)["total_balance"])
	assert.Equal(t, float64(2), data(resp)["wallet_count"])

	w, resp = api.do(t, http.MethodGet, "/api/v1/audit-logs", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), resp["meta"].(map[string]interface{})["total"], "two creates, one debit, one transfer")
}

func TestRouter_FreeTextRoundTrips(t *testing.T) {
	api := newAPI(t)
	tok := api.token(t, 7, 3)
	till := api.createWallet(t, tok, "Tea & Coffee", "0")

	w, resp := api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/wallets/%d/recharge", till), tok,
		map[string]string{"amount": "12.5", "category": "A & <B>", "description": "cash <deposit> & change"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tx := data(resp)["transaction"].(map[string]interface{})
	assert.Equal(t, "A & <B>", tx["category"])
	assert.Equal(t, "cash <deposit> & change", tx["description"])
	assert.Equal(t, "12.50", tx["amount"])
	assert.Equal(t, "Tea & Coffee", data(resp)["wallet"].(map[string]interface{})["name"])

	long := strings.Repeat("&", 200)
	w, resp = api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/wallets/%d/recharge", till), tok,
		map[string]string{"amount": "1", "description": long})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, long, data(resp)["transaction"].(map[string]interface{})["description"])

	w, resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%d/transactions", till), tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var descriptions []interface{}
	for _, item := range data(resp)["transactions"].([]interface{}) {
		descriptions = append(descriptions, item.(map[string]interface{})["description"])
	}
	assert.Contains(t, descriptions, "cash <deposit> & change")
	assert.Contains(t, descriptions, long)
}

func TestRouter_InsufficientFundsLeavesBalance(t *testing.T) {
	api := newAPI(t)
	tok := api.token(t, 7, 3)
	till := api.createWallet(t, tok, "Till", "5")

	w, resp := api.do(t, http.MethodPost, fmt.Sprintf("/api/v1/wallets/%d/debit", till), tok,
		map[string]string{"amount": "5.01", "category": "refund"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "WAL_004", resp["error_code"])

	_, resp = api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%d", till), tok, nil)
	assert.Equal(t, "5.00", data(resp)["balance"])
}

func TestRouter_CentreIsolation(t *testing.T) {
	api := newAPI(t)
	till := api.createWallet(t, api.token(t, 7, 3), "Till", "10")

	w, resp := api.do(t, http.MethodGet, fmt.Sprintf("/api/v1/wallets/%d", till), api.token(t, 8, 4), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "AUTH_002", resp["error_code"])
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	api := newAPI(t)

	w, resp := api.do(t, http.MethodGet, "/api/v1/wallets", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", resp["error_code"])

	w, _ = api.do(t, http.MethodGet, "/api/v1/wallets", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_HealthMetricsAndNotFound(t *testing.T) {
	api := newAPI(t)

	w, resp := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", resp["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, resp = api.do(t, http.MethodGet, "/api/v2/nothing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SYS_404", resp["error_code"])

	w, _ = api.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `wallet_ledger_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestRouter_RateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	api := newAPI(t, func(d *handler.RouterDeps) {
		d.RateLimitStore = redisStore.NewRateLimitStore(client)
		d.RateLimit = 1
	})
	tok := api.token(t, 7, 3)

	api.createWallet(t, tok, "Till", "0")

	w, resp := api.do(t, http.MethodPost, "/api/v1/wallets", tok, map[string]interface{}{
		"name": "Second", "kind": "cash", "ownership": "shared",
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_001", resp["error_code"])
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	w, _ = api.do(t, http.MethodGet, "/api/v1/wallets", tok, nil)
	assert.Equal(t, http.StatusOK, w.Code, "reads have their own budget")
}
