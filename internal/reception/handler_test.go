package reception

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func newRouter(f fixture) http.Handler {
	r := chi.NewRouter()
	r.Route("/receptions", NewHandler(nil, f.service).MountRoutes)
	return r
}

func TestHandlerReceiveAndCancel(t *testing.T) {
	f := newFixture()
	router := newRouter(f)

	body := `{
		"supplier_id": "` + "6f1c2a9e-6a53-4a4e-9f55-0c7f1f0b5e11" + `",
		"storage_id": "` + f.storage.String() + `",
		"purchase_order_number": "PO-77",
		"lines": [{"product_id": "` + f.product.String() + `", "ordered_quantity": "100", "received_quantity": "100", "unit_cost": "800"}]
	}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/receptions", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created shared.Result[View]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)
	require.NotNil(t, created.Data)
	assert.Equal(t, ledger.StatusReceived, created.Data.Status)
	assert.Equal(t, "80000", created.Data.Total.String())

	id := created.Data.ID.String()
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/receptions/"+id+"/cancel", strings.NewReader(`{"reason":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/receptions/"+id+"/cancel", strings.NewReader(`{"reason":"duplicate entry"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var cancelled shared.Result[ledger.Reversal]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	require.True(t, cancelled.Success)
	assert.Equal(t, ledger.EntryTypePurchaseReturn, cancelled.Data.Reversal.EntryType)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/receptions/"+id+"/cancel", strings.NewReader(`{"reason":"duplicate entry"}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)
	var again shared.Result[ledger.Reversal]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
	assert.False(t, again.Success)
	assert.Contains(t, again.Error, "already cancelled")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/receptions/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"cancelled_by_document_number":"PURCHASE_RETURN-00000001"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/receptions?status=cancelled", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Receptions, 1)
}

func TestHandlerReceiveRejectsEmptyLines(t *testing.T) {
	f := newFixture()
	rec := httptest.NewRecorder()
	newRouter(f).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/receptions", strings.NewReader(`{"lines":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
