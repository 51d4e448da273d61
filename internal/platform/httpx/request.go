package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Validator is the process-wide struct validator.
var Validator = validator.New()

// Bind decodes a JSON body into target and runs its validate tags. Failures are
// reported as one shared.ValidationError listing every field.
func Bind(r *http.Request, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return shared.NewValidationError("malformed JSON body: " + err.Error())
	}
	if err := Validator.Struct(target); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return shared.NewValidationError(err.Error())
		}
		verr := shared.NewValidationError()
		for _, fe := range fieldErrs {
			verr.Add(fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return verr
	}
	return nil
}

// PathUUID parses a chi URL parameter as a UUID.
func PathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, shared.NewValidationError(fmt.Sprintf("%s must be a UUID", name))
	}
	return id, nil
}

// QueryUUID parses an optional query parameter as a UUID.
func QueryUUID(r *http.Request, name string) (uuid.NullUUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.NullUUID{}, shared.NewValidationError(fmt.Sprintf("%s must be a UUID", name))
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

// QueryInt parses an optional integer query parameter.
func QueryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return fallback
	}
	return v
}

// QueryBool parses an optional boolean query parameter.
func QueryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

// QueryTime parses an optional date or RFC3339 query parameter. A bare date used as an
// upper bound covers the whole day.
func QueryTime(r *http.Request, name string, endOfDay bool) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, shared.NewValidationError(fmt.Sprintf("%s must be a date", name))
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

// ActorID reads the acting user from the X-User-ID header.
func ActorID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		return uuid.Nil
	}
	return id
}
