package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionStatus is the cash session state machine value.
type SessionStatus string

const (
	SessionOpen       SessionStatus = "OPEN"
	SessionClosed     SessionStatus = "CLOSED"
	SessionReconciled SessionStatus = "RECONCILED"
)

// CashSession is the open/close lifecycle of a physical register.
type CashSession struct {
	ID             uuid.UUID           `json:"id"`
	PointOfSaleID  uuid.UUID           `json:"point_of_sale_id"`
	Status         SessionStatus       `json:"status"`
	OpenedByID     uuid.UUID           `json:"opened_by_id"`
	ClosedByID     uuid.NullUUID       `json:"closed_by_id"`
	ReconciledByID uuid.NullUUID       `json:"reconciled_by_id"`
	OpeningAmount  decimal.Decimal     `json:"opening_amount"`
	ClosingAmount  decimal.NullDecimal `json:"closing_amount"`
	ExpectedAmount decimal.NullDecimal `json:"expected_amount"`
	Difference     decimal.NullDecimal `json:"difference"`
	OpenedAt       time.Time           `json:"opened_at"`
	ClosedAt       *time.Time          `json:"closed_at,omitempty"`
	ReconciledAt   *time.Time          `json:"reconciled_at,omitempty"`
	Notes          string              `json:"notes"`
}

// AcceptsEntries reports whether new entries may be attached to the session.
func (s CashSession) AcceptsEntries() bool {
	return s.Status == SessionOpen
}
