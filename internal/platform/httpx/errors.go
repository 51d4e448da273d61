// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// StatusFor maps the shared error taxonomy to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrInvalidState), errors.Is(err, shared.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, shared.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	var title string
	switch {
	case errors.Is(err, shared.ErrNotFound):
		title = "Not Found"
	case errors.Is(err, shared.ErrValidation):
		title = "Validation Failed"
	case errors.Is(err, shared.ErrInvalidState):
		title = "Invalid State"
	case errors.Is(err, shared.ErrConflict):
		title = "Conflict"
	case errors.Is(err, shared.ErrPersistence):
		title = "Storage Unavailable"
	default:
		title = "Internal Error"
	}
	p := ProblemDetail{Title: title, Status: status, Detail: shared.UserSafeMessage(err)}
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		p.Problems = verr.Problems
	}
	JSON(w, status, p)
}

// RespondResult writes the mutation envelope. Failures keep the RFC7807 status code.
func RespondResult[T any](w http.ResponseWriter, status int, data T, err error) {
	if err != nil {
		JSON(w, StatusFor(err), shared.Result[T]{Success: false, Error: shared.UserSafeMessage(err)})
		return
	}
	JSON(w, status, shared.ResultOf(data, nil))
}
