// Package quota derives credit installments ("quotas") from ledger entries. Nothing is
// stored: every status is recomputed from the credit schedule of the source entry and the
// payments that reference its quota ids.
package quota

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Status of a derived quota.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusOverdue Status = "OVERDUE"
	StatusPaid    Status = "PAID"
)

// Quota is one installment of a credit-bearing entry.
type Quota struct {
	ID             string           `json:"id"`
	EntryID        uuid.UUID        `json:"entry_id"`
	EntryType      ledger.EntryType `json:"entry_type"`
	DocumentNumber string           `json:"document_number"`
	CustomerID     uuid.NullUUID    `json:"customer_id"`
	QuotaNumber    int              `json:"quota_number"`
	TotalQuotas    int              `json:"total_quotas"`
	Amount         decimal.Decimal  `json:"amount"`
	DueDate        time.Time        `json:"due_date"`
	Status         Status           `json:"status"`
	EntryCreatedAt time.Time        `json:"entry_created_at"`
}

// IsCandidate reports whether e produces quotas: a posted, non-cancelled credit sale or
// legacy internal-credit payment.
func IsCandidate(e ledger.Entry) bool {
	if e.Status == ledger.StatusDraft || e.Status == ledger.StatusCancelled {
		return false
	}
	return ledger.IsCreditBearing(e)
}

// PaidSet holds the quota ids settled by payments.
type PaidSet map[string]struct{}

// NewPaidSet collects metadata.paidQuotaId of every non-cancelled PAYMENT_IN.
func NewPaidSet(payments []ledger.Entry) PaidSet {
	set := make(PaidSet)
	for _, p := range payments {
		if p.EntryType != ledger.EntryTypePaymentIn || p.Status == ledger.StatusCancelled {
			continue
		}
		if id := p.PaidQuotaID(); id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// Has reports whether id was paid.
func (s PaidSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Schedule returns the installments of e. An entry without a schedule owes its whole total
// on the day it was created.
func Schedule(e ledger.Entry) []ledger.ScheduledQuota {
	quotas := e.Schedule().Quotas()
	if len(quotas) > 0 {
		return quotas
	}
	return []ledger.ScheduledQuota{{
		Amount:  e.Total,
		DueDate: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}}
}

// DeriveEntry expands one candidate into its quotas.
func DeriveEntry(e ledger.Entry, paid PaidSet, now time.Time) []Quota {
	schedule := Schedule(e)
	out := make([]Quota, 0, len(schedule))
	for i, sq := range schedule {
		id := sq.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", e.ID, i+1)
		}
		due, err := sq.Due()
		if err != nil {
			// Stored before schedules were validated; treat as due on creation.
			due = e.CreatedAt
		}
		q := Quota{
			ID:             id,
			EntryID:        e.ID,
			EntryType:      e.EntryType,
			DocumentNumber: e.DocumentNumber,
			CustomerID:     e.CustomerID,
			QuotaNumber:    i + 1,
			TotalQuotas:    len(schedule),
			Amount:         sq.Amount,
			DueDate:        due,
			EntryCreatedAt: e.CreatedAt,
		}
		switch {
		case paid.Has(id):
			q.Status = StatusPaid
		case due.Before(now):
			q.Status = StatusOverdue
		default:
			q.Status = StatusPending
		}
		out = append(out, q)
	}
	return out
}

// Derive expands every candidate in entries, preserving their order. Non-candidates are
// skipped.
func Derive(entries []ledger.Entry, paid PaidSet, now time.Time) []Quota {
	var out []Quota
	for _, e := range entries {
		if !IsCandidate(e) {
			continue
		}
		out = append(out, DeriveEntry(e, paid, now)...)
	}
	return out
}

// Totals sums quota amounts per status.
type Totals struct {
	Pending decimal.Decimal `json:"pending"`
	Overdue decimal.Decimal `json:"overdue"`
	Paid    decimal.Decimal `json:"paid"`
	// Outstanding is Pending + Overdue.
	Outstanding decimal.Decimal `json:"outstanding"`
	Count       int             `json:"count"`
}

// Sum folds quotas into Totals.
func Sum(quotas []Quota) Totals {
	t := Totals{Pending: decimal.Zero, Overdue: decimal.Zero, Paid: decimal.Zero}
	for _, q := range quotas {
		t.Count++
		switch q.Status {
		case StatusPaid:
			t.Paid = t.Paid.Add(q.Amount)
		case StatusOverdue:
			t.Overdue = t.Overdue.Add(q.Amount)
		default:
			t.Pending = t.Pending.Add(q.Amount)
		}
	}
	t.Outstanding = t.Pending.Add(t.Overdue)
	return t
}
