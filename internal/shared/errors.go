package shared

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks input that failed a structural or business-rule check.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState marks an operation attempted from a state that does not permit it.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrConflict marks a uniqueness or singleton violation.
	ErrConflict = errors.New("conflict")
	// ErrPersistence marks a failure of the underlying store.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError lists every violated constraint of a rejected input.
type ValidationError struct {
	Problems []string
}

// NewValidationError builds a ValidationError from the collected problems.
func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: append([]string(nil), problems...)}
}

// Add appends a problem.
func (e *ValidationError) Add(problem string) {
	e.Problems = append(e.Problems, problem)
}

// Empty reports whether no problem has been recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Problems) == 0
}

// Err returns nil when no problem was collected.
func (e *ValidationError) Err() error {
	if e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return ErrValidation.Error()
	}
	return ErrValidation.Error() + ": " + strings.Join(e.Problems, "; ")
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps a store failure while keeping the cause reachable.
func PersistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) || errors.Is(err, ErrPersistence) {
		return err
	}
	return &persistenceError{op: op, err: err}
}

type persistenceError struct {
	op  string
	err error
}

func (e *persistenceError) Error() string {
	return ErrPersistence.Error() + ": " + e.op + ": " + e.err.Error()
}

func (e *persistenceError) Unwrap() []error {
	return []error{ErrPersistence, e.err}
}

// UserSafeMessage returns the message for known taxonomy errors and a generic one otherwise.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrNotFound):
		return err.Error()
	case errors.Is(err, ErrPersistence):
		return "storage temporarily unavailable"
	default:
		return "internal error"
	}
}
