package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/cashsession"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/quota"
	"github.com/odyssey-erp/odyssey-ledger/internal/receivable"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
)

func newTestRouter() (http.Handler, *observability.Metrics) {
	store := memstore.New()
	metrics := observability.NewMetrics()
	entries := ledger.NewService(store, nil, nil, nil).WithMetrics(metrics)
	sessions := cashsession.NewService(store, shared.NoopLocker{}, nil, nil).WithMetrics(metrics)
	tracker := quota.NewTracker(store, nil)
	return NewRouter(RouterParams{
		Config:             &Config{AppEnv: "test"},
		Metrics:            metrics,
		LedgerHandler:      ledger.NewHandler(nil, entries),
		CashSessionHandler: cashsession.NewHandler(nil, sessions),
		QuotaHandler:       quota.NewHandler(nil, tracker),
		ReceivableHandler:  receivable.NewHandler(nil, receivable.NewService(tracker)),
		InventoryHandler:   inventory.NewHandler(nil, store),
		JobHandler:         jobs.NewHandler(nil, nil),
	}), metrics
}

func TestRouterHealthAndSecurityHeaders(t *testing.T) {
	router, _ := newTestRouter()
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRouterOpensSessionAndExportsMetrics(t *testing.T) {
	router, _ := newTestRouter()
	pos := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/cash-sessions", strings.NewReader(`{"point_of_sale_id":"`+pos.String()+`","opening_amount":"150"}`))
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/points-of-sale/"+pos.String()+"/cash-session", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "ledger_cash_sessions_opened_total 1")
	assert.Contains(t, body, `ledger_http_requests_total{code="201"`)
}

func TestRouterMountsReadEndpoints(t *testing.T) {
	router, _ := newTestRouter()
	for _, path := range []string{
		"/entries",
		"/cash-sessions",
		"/customers/" + uuid.NewString() + "/quotas",
		"/receivables",
		"/receivables/aging",
		"/jobs/health",
		"/storages/" + uuid.NewString() + "/stock",
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/receptions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
