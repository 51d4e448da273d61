// Package numbering assigns human-readable document numbers of the form
// <PREFIX><entryType>-<8 digit sequence>.
package numbering

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SequenceWidth is the zero-padded width of the numeric suffix.
const SequenceWidth = 8

// ErrMalformed is returned when a document number does not follow the format.
var ErrMalformed = errors.New("numbering: malformed document number")

// Source hands out the next sequence value for an entry type. Implementations run
// inside the caller's unit of work so the value commits or rolls back with the entry.
type Source interface {
	NextSequence(ctx context.Context, entryType string) (int64, error)
}

// Format renders a document number.
func Format(prefix, entryType string, seq int64) string {
	return fmt.Sprintf("%s%s-%0*d", prefix, entryType, SequenceWidth, seq)
}

// Parse extracts the sequence of a document number issued for entryType under any
// deployment prefix.
func Parse(entryType, number string) (int64, error) {
	head := entryType + "-"
	idx := strings.LastIndex(number, head)
	if entryType == "" || idx < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	digits := number[idx+len(head):]
	if len(digits) < SequenceWidth {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || seq <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, number)
	}
	return seq, nil
}

// Assigner issues document numbers for a deployment prefix.
type Assigner struct {
	prefix string
}

// NewAssigner builds an Assigner.
func NewAssigner(prefix string) *Assigner {
	return &Assigner{prefix: strings.TrimSpace(prefix)}
}

// Prefix returns the deployment prefix.
func (a *Assigner) Prefix() string {
	if a == nil {
		return ""
	}
	return a.prefix
}

// Next draws a sequence value from src and formats it.
func (a *Assigner) Next(ctx context.Context, src Source, entryType string) (string, error) {
	if src == nil {
		return "", errors.New("numbering: source not configured")
	}
	if entryType == "" {
		return "", errors.New("numbering: entry type required")
	}
	seq, err := src.NextSequence(ctx, entryType)
	if err != nil {
		return "", err
	}
	if seq <= 0 {
		return "", fmt.Errorf("numbering: invalid sequence %d for %s", seq, entryType)
	}
	return Format(a.Prefix(), entryType, seq), nil
}

// RetryOnConflict runs fn and, when it fails with an error accepted by isConflict,
// runs it exactly once more so the second attempt recomputes the number.
func RetryOnConflict(ctx context.Context, fn func(context.Context) error, isConflict func(error) bool, onRetry func(error)) error {
	err := fn(ctx)
	if err == nil || isConflict == nil || !isConflict(err) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return err
	}
	if onRetry != nil {
		onRetry(err)
	}
	return fn(ctx)
}
