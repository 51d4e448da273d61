// Package receivable projects derived credit quotas into an accounts-receivable listing,
// aging buckets and a spreadsheet export.
package receivable

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/quota"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// Query selects the candidate entries of a projection.
type Query struct {
	CustomerID uuid.NullUUID
	From       time.Time
	To         time.Time
	// Search matches document number, customer name or amount.
	Search  string
	Page    int
	PerPage int
	// IncludePaid keeps PAID quotas in the flattened rows.
	IncludePaid bool
}

// Filter translates q into a ledger filter over candidate entries.
func (q Query) Filter() ledger.EntryFilter {
	return quota.CandidateFilter(ledger.EntryFilter{
		CustomerID: q.CustomerID,
		From:       q.From,
		To:         q.To,
		Search:     q.Search,
		Page:       q.Page,
		PerPage:    q.PerPage,
	})
}

// Projection is one page of receivable rows. Pagination counts source entries, not quotas,
// because each entry expands into a variable number of rows.
type Projection struct {
	Rows       []quota.Quota     `json:"rows"`
	Totals     quota.Totals      `json:"totals"`
	Pagination shared.Pagination `json:"pagination"`
}

// Flatten expands candidates into rows and drops PAID rows unless includePaid is set.
func Flatten(candidates []ledger.Entry, paid quota.PaidSet, now time.Time, includePaid bool) []quota.Quota {
	rows := make([]quota.Quota, 0, len(candidates))
	for _, q := range quota.Derive(candidates, paid, now) {
		if !includePaid && q.Status == quota.StatusPaid {
			continue
		}
		rows = append(rows, q)
	}
	return rows
}

// Aging buckets outstanding quotas by days past due.
type Aging struct {
	AsOf      time.Time       `json:"as_of"`
	Current   decimal.Decimal `json:"current"`
	Bucket30  decimal.Decimal `json:"bucket_30"`
	Bucket60  decimal.Decimal `json:"bucket_60"`
	Bucket90  decimal.Decimal `json:"bucket_90"`
	Bucket120 decimal.Decimal `json:"bucket_120"`
	Total     decimal.Decimal `json:"total"`
}

// BuildAging groups unpaid quotas by due date distance from asOf.
func BuildAging(quotas []quota.Quota, asOf time.Time) Aging {
	a := Aging{
		AsOf:      asOf,
		Current:   decimal.Zero,
		Bucket30:  decimal.Zero,
		Bucket60:  decimal.Zero,
		Bucket90:  decimal.Zero,
		Bucket120: decimal.Zero,
		Total:     decimal.Zero,
	}
	for _, q := range quotas {
		if q.Status == quota.StatusPaid {
			continue
		}
		days := int(math.Ceil(asOf.Sub(q.DueDate).Hours() / 24))
		if q.Status == quota.StatusOverdue && days < 1 {
			days = 1
		}
		switch {
		case days <= 0:
			a.Current = a.Current.Add(q.Amount)
		case days <= 30:
			a.Bucket30 = a.Bucket30.Add(q.Amount)
		case days <= 60:
			a.Bucket60 = a.Bucket60.Add(q.Amount)
		case days <= 90:
			a.Bucket90 = a.Bucket90.Add(q.Amount)
		default:
			a.Bucket120 = a.Bucket120.Add(q.Amount)
		}
		a.Total = a.Total.Add(q.Amount)
	}
	return a
}
