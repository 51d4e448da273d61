// Package cashsession manages the open/close/reconcile lifecycle of point-of-sale cash
// registers and the expected drawer balance derived from their ledger entries.
package cashsession

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// ReconciledMarker prefixes notes appended on reconciliation.
const ReconciledMarker = "[RECONCILED]"

// OpenInput starts a session.
type OpenInput struct {
	PointOfSaleID uuid.UUID
	OpenedByID    uuid.UUID
	OpeningAmount decimal.Decimal
	Notes         string
}

// Validate checks the input and reports every problem.
func (in OpenInput) Validate() error {
	verr := shared.NewValidationError()
	if in.PointOfSaleID == uuid.Nil {
		verr.Add("pointOfSaleId is required")
	}
	if in.OpenedByID == uuid.Nil {
		verr.Add("userId is required")
	}
	if in.OpeningAmount.IsNegative() {
		verr.Add("openingAmount must not be negative")
	}
	return verr.Err()
}

// CloseInput closes a session with the counted drawer amount.
type CloseInput struct {
	SessionID     uuid.UUID
	ClosedByID    uuid.UUID
	ClosingAmount decimal.Decimal
	Notes         string
}

// Validate checks the input.
func (in CloseInput) Validate() error {
	verr := shared.NewValidationError()
	if in.SessionID == uuid.Nil {
		verr.Add("sessionId is required")
	}
	if in.ClosedByID == uuid.Nil {
		verr.Add("userId is required")
	}
	if in.ClosingAmount.IsNegative() {
		verr.Add("closingAmount must not be negative")
	}
	return verr.Err()
}

// ReconcileInput settles a closed session.
type ReconcileInput struct {
	SessionID uuid.UUID
	ActorID   uuid.UUID
	// AdjustedAmount replaces the counted closing amount when valid.
	AdjustedAmount decimal.NullDecimal
	Notes          string
}

// Validate checks the input.
func (in ReconcileInput) Validate() error {
	verr := shared.NewValidationError()
	if in.SessionID == uuid.Nil {
		verr.Add("sessionId is required")
	}
	if in.AdjustedAmount.Valid && in.AdjustedAmount.Decimal.IsNegative() {
		verr.Add("adjustedBalance must not be negative")
	}
	return verr.Err()
}

// TypeTotal is the sum of one entry type within a session.
type TypeTotal struct {
	EntryType ledger.EntryType `json:"entry_type"`
	Count     int              `json:"count"`
	Total     decimal.Decimal  `json:"total"`
}

// Summary is the drawer position of a session.
type Summary struct {
	SessionID       uuid.UUID       `json:"session_id"`
	OpeningAmount   decimal.Decimal `json:"opening_amount"`
	CashIn          decimal.Decimal `json:"cash_in"`
	CashOut         decimal.Decimal `json:"cash_out"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	EntryCount      int             `json:"entry_count"`
	ByType          []TypeTotal     `json:"by_type"`
}

// View is a session with its live summary.
type View struct {
	ledger.CashSession
	Summary Summary `json:"summary"`
}

// Summarize folds the entries attached to session. Entries of other sessions and drafts
// are ignored, so the result depends only on the session's own posted entries.
func Summarize(session ledger.CashSession, entries []ledger.Entry) Summary {
	sum := Summary{
		SessionID:     session.ID,
		OpeningAmount: session.OpeningAmount,
		CashIn:        decimal.Zero,
		CashOut:       decimal.Zero,
	}
	byType := make(map[ledger.EntryType]*TypeTotal)
	for _, e := range entries {
		if !e.CashSessionID.Valid || e.CashSessionID.UUID != session.ID || !e.Status.Posted() {
			continue
		}
		sum.EntryCount++
		tt, ok := byType[e.EntryType]
		if !ok {
			tt = &TypeTotal{EntryType: e.EntryType, Total: decimal.Zero}
			byType[e.EntryType] = tt
		}
		tt.Count++
		tt.Total = tt.Total.Add(e.Total)

		switch e.EntryType {
		case ledger.EntryTypeSale, ledger.EntryTypePaymentIn:
			sum.CashIn = sum.CashIn.Add(e.Total)
		case ledger.EntryTypeSaleReturn, ledger.EntryTypePaymentOut:
			sum.CashOut = sum.CashOut.Add(e.Total)
		}
	}
	sum.ExpectedBalance = sum.OpeningAmount.Add(sum.CashIn).Sub(sum.CashOut)
	sum.ByType = make([]TypeTotal, 0, len(byType))
	for _, tt := range byType {
		sum.ByType = append(sum.ByType, *tt)
	}
	sort.Slice(sum.ByType, func(i, j int) bool { return sum.ByType[i].EntryType < sum.ByType[j].EntryType })
	return sum
}
