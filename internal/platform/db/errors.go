package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const (
	codeUniqueViolation = "23505"
	codeSerialization   = "40001"
)

// IsUniqueViolation reports whether err carries SQLSTATE 23505.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// ConstraintName returns the violated constraint, if any.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

// MapError translates driver errors into the shared taxonomy.
func MapError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, shared.ErrNotFound)
	case IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %s", op, shared.ErrConflict, ConstraintName(err))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeSerialization {
		return fmt.Errorf("%s: %w: serialization failure", op, shared.ErrConflict)
	}
	return shared.PersistenceError(op, err)
}
