package quota

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// Tracker loads candidate entries and payments and derives quotas from them.
type Tracker struct {
	store  ledger.Reader
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker builds Tracker.
func NewTracker(store ledger.Reader, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock, used by tests.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	if now != nil {
		t.now = now
	}
	return t
}

// Now returns the tracker clock.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// CandidateFilter narrows filter to quota-producing entries. Pagination and the search,
// customer and date criteria are kept.
func CandidateFilter(filter ledger.EntryFilter) ledger.EntryFilter {
	filter.Types = nil
	filter.Statuses = nil
	filter.CreditBearing = true
	filter.HasPaidQuota = false
	filter.ExcludeStatuses = []ledger.Status{ledger.StatusDraft, ledger.StatusCancelled}
	return filter
}

// Snapshot is one consistent input to Derive.
type Snapshot struct {
	Candidates []ledger.Entry
	// Total counts candidate entries matching the filter, ignoring pagination.
	Total int
	Paid  PaidSet
}

// Load fetches candidates matching filter and the paid set concurrently.
func (t *Tracker) Load(ctx context.Context, filter ledger.EntryFilter) (Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		entries, total, err := t.store.ListEntries(ctx, CandidateFilter(filter))
		if err != nil {
			return err
		}
		snap.Candidates = entries
		snap.Total = total
		return nil
	})

	g.Go(func() error {
		paid, err := t.PaidSet(ctx)
		if err != nil {
			return err
		}
		snap.Paid = paid
		return nil
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// PaidSet loads every non-cancelled payment that references a quota.
func (t *Tracker) PaidSet(ctx context.Context) (PaidSet, error) {
	payments, _, err := t.store.ListEntries(ctx, ledger.EntryFilter{
		Types:           []ledger.EntryType{ledger.EntryTypePaymentIn},
		ExcludeStatuses: []ledger.Status{ledger.StatusCancelled},
		HasPaidQuota:    true,
	})
	if err != nil {
		return nil, err
	}
	return NewPaidSet(payments), nil
}

// CustomerQuotas is the quota view of one customer.
type CustomerQuotas struct {
	CustomerID uuid.UUID `json:"customer_id"`
	Quotas     []Quota   `json:"quotas"`
	Totals     Totals    `json:"totals"`
}

// ForCustomer derives every quota of a customer, newest entry first.
func (t *Tracker) ForCustomer(ctx context.Context, customerID uuid.UUID) (CustomerQuotas, error) {
	snap, err := t.Load(ctx, ledger.EntryFilter{CustomerID: ledger.ID(customerID)})
	if err != nil {
		return CustomerQuotas{}, err
	}
	quotas := Derive(snap.Candidates, snap.Paid, t.now())
	if quotas == nil {
		quotas = []Quota{}
	}
	return CustomerQuotas{CustomerID: customerID, Quotas: quotas, Totals: Sum(quotas)}, nil
}

// Overdue returns every overdue quota across customers.
func (t *Tracker) Overdue(ctx context.Context) ([]Quota, error) {
	snap, err := t.Load(ctx, ledger.EntryFilter{})
	if err != nil {
		return nil, err
	}
	var out []Quota
	for _, q := range Derive(snap.Candidates, snap.Paid, t.now()) {
		if q.Status == StatusOverdue {
			out = append(out, q)
		}
	}
	t.logger.Debug("overdue quotas derived", slog.Int("candidates", len(snap.Candidates)), slog.Int("overdue", len(out)))
	return out, nil
}
