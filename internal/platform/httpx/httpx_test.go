package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		fmt.Errorf("entry: %w", shared.ErrNotFound):    http.StatusNotFound,
		shared.NewValidationError("total is required"): http.StatusBadRequest,
		shared.ErrInvalidState:                         http.StatusConflict,
		shared.ErrConflict:                             http.StatusConflict,
		shared.ErrPersistence:                          http.StatusServiceUnavailable,
		errors.New("boom"):                             http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}

func TestRespondErrorListsProblems(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, shared.NewValidationError("subtotal must not be negative", "lines are required"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var p ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	assert.Equal(t, "Validation Failed", p.Title)
	assert.Len(t, p.Problems, 2)
}

type bindTarget struct {
	Reason string `json:"reason" validate:"required,min=3"`
}

func TestBindCollectsFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x"}`))
	err := Bind(req, &bindTarget{})
	require.ErrorIs(t, err, shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	require.ErrorIs(t, Bind(req, &bindTarget{}), shared.ErrValidation)

	var target bindTarget
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"damaged"}`))
	require.NoError(t, Bind(req, &target))
	assert.Equal(t, "damaged", target.Reason)
}

func TestQueryTimeEndOfDay(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?to=2024-03-01&from=bad", nil)
	to, err := QueryTime(req, "to", true)
	require.NoError(t, err)
	assert.Equal(t, 23, to.Hour())

	_, err = QueryTime(req, "from", false)
	assert.ErrorIs(t, err, shared.ErrValidation)
}
