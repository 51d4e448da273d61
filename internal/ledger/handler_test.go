package ledger_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

type entryBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		ID             uuid.UUID     `json:"id"`
		Status         ledger.Status `json:"status"`
		DocumentNumber string        `json:"document_number"`
	} `json:"data"`
}

func entriesRouter(f fixture) http.Handler {
	r := chi.NewRouter()
	r.Route("/entries", ledger.NewHandler(nil, f.svc).MountRoutes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	req.Header.Set("X-User-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerCreateConfirmReverse(t *testing.T) {
	f := newFixture(t)
	router := entriesRouter(f)
	pos := uuid.NewString()

	rec := doJSON(t, router, http.MethodPost, "/entries", `{
		"entry_type": "SALE",
		"payment_method": "CASH",
		"point_of_sale_id": "`+pos+`",
		"subtotal": "25", "total": "25", "amount_paid": "25"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created entryBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.True(t, created.Success)
	assert.Equal(t, ledger.StatusDraft, created.Data.Status)

	id := created.Data.ID.String()
	rec = doJSON(t, router, http.MethodPost, "/entries/"+id+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var confirmed entryBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	assert.Equal(t, "SALE-00000001", confirmed.Data.DocumentNumber)

	rec = doJSON(t, router, http.MethodPost, "/entries/"+id+"/confirm", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/entries/"+id+"/reverse", `{"reason":"customer changed mind"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/entries/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"CANCELLED"`)
	assert.Contains(t, rec.Body.String(), `"cancelled_by_document_number"`)

	rec = doJSON(t, router, http.MethodGet, "/entries?type=sale&status=cancelled", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list ledger.ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Entries, 1)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	router := entriesRouter(f)

	rec := doJSON(t, router, http.MethodPost, "/entries", `{"entry_type":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/entries", `{"entry_type":"SALE","payment_method":"CASH","subtotal":"10","total":"11"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var body entryBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.NotEmpty(t, body.Error)

	rec = doJSON(t, router, http.MethodGet, "/entries/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/entries/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/entries?customer_id=nope", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
