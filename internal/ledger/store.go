package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/numbering"
)

// EntryFilter narrows ListEntries. A zero PerPage returns every matching row.
type EntryFilter struct {
	Types           []EntryType
	Statuses        []Status
	ExcludeStatuses []Status
	CustomerID      uuid.NullUUID
	SupplierID      uuid.NullUUID
	PointOfSaleID   uuid.NullUUID
	CashSessionID   uuid.NullUUID
	From            time.Time
	To              time.Time
	// Search matches document number, customer name or amount.
	Search string
	// CreditBearing restricts to entries accepted by IsCreditBearing.
	CreditBearing bool
	// HasPaidQuota restricts to payments whose metadata.paidQuotaId is set.
	HasPaidQuota bool
	Page         int
	PerPage      int
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	PointOfSaleID uuid.NullUUID
	Statuses      []SessionStatus
	From          time.Time
	To            time.Time
	Page          int
	PerPage       int
}

// Reader is the read side of the persistence collaborator. Results are ordered by
// created_at (opened_at for sessions) descending.
type Reader interface {
	GetEntry(ctx context.Context, id uuid.UUID) (Entry, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, int, error)
	FindReversal(ctx context.Context, originalID uuid.UUID) (Entry, error)
	GetSession(ctx context.Context, id uuid.UUID) (CashSession, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]CashSession, int, error)
}

// Tx is one atomic unit of work with at least read-committed isolation. Lock* methods
// hold a row lock until the unit of work ends.
type Tx interface {
	Reader
	numbering.Source
	inventory.TxRepository

	InsertEntry(ctx context.Context, entry Entry) error
	UpdateEntry(ctx context.Context, entry Entry) error
	LockEntry(ctx context.Context, id uuid.UUID) (Entry, error)

	InsertSession(ctx context.Context, session CashSession) error
	UpdateSession(ctx context.Context, session CashSession) error
	LockSession(ctx context.Context, id uuid.UUID) (CashSession, error)
	FindOpenSession(ctx context.Context, pointOfSaleID uuid.UUID) (CashSession, error)
}

// Store is the persistence collaborator.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(context.Context, Tx) error) error
}
