package quota

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

var march = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func creditSale(total string, quotas ...ledger.ScheduledQuota) ledger.Entry {
	return ledger.Entry{
		ID:             uuid.New(),
		EntryType:      ledger.EntryTypeSale,
		Status:         ledger.StatusConfirmed,
		DocumentNumber: "SALE-00000001",
		PaymentMethod:  ledger.PaymentMethodInternalCredit,
		Total:          decimal.RequireFromString(total),
		CustomerID:     ledger.ID(uuid.New()),
		Metadata: ledger.NewMetadata(&ledger.CreditTerms{Schedule: ledger.Schedule{
			InternalCreditQuotas: quotas,
		}}),
		CreatedAt: time.Date(2023, 12, 1, 10, 0, 0, 0, time.UTC),
	}
}

func sq(id, amount, due string) ledger.ScheduledQuota {
	return ledger.ScheduledQuota{ID: id, Amount: decimal.RequireFromString(amount), DueDate: due}
}

func payment(quotaID string, status ledger.Status) ledger.Entry {
	return ledger.Entry{
		ID:        uuid.New(),
		EntryType: ledger.EntryTypePaymentIn,
		Status:    status,
		Metadata:  ledger.NewMetadata(&ledger.PaymentDetails{PaidQuotaID: quotaID}),
	}
}

func TestDeriveOverdueSchedule(t *testing.T) {
	sale := creditSale("60000", sq("q1", "30000", "2024-01-01"), sq("q2", "30000", "2024-02-01"))

	quotas := Derive([]ledger.Entry{sale}, NewPaidSet(nil), march)
	require.Len(t, quotas, 2)
	sum := decimal.Zero
	for i, q := range quotas {
		assert.Equal(t, StatusOverdue, q.Status)
		assert.Equal(t, i+1, q.QuotaNumber)
		assert.Equal(t, 2, q.TotalQuotas)
		assert.Equal(t, sale.ID, q.EntryID)
		sum = sum.Add(q.Amount)
	}
	assert.True(t, sum.Equal(sale.Total))
	assert.Equal(t, "q1", quotas[0].ID)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), quotas[1].DueDate)
}

func TestDeriveStatuses(t *testing.T) {
	sale := creditSale("300", sq("a", "100", "2024-02-01"), sq("b", "100", "2024-02-15"), sq("c", "100", "2024-04-01"))
	paid := NewPaidSet([]ledger.Entry{
		payment("a", ledger.StatusConfirmed),
		payment("b", ledger.StatusCancelled),
	})

	quotas := DeriveEntry(sale, paid, march)
	require.Len(t, quotas, 3)
	assert.Equal(t, StatusPaid, quotas[0].Status)
	assert.Equal(t, StatusOverdue, quotas[1].Status)
	assert.Equal(t, StatusPending, quotas[2].Status)

	totals := Sum(quotas)
	assert.True(t, totals.Paid.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.Overdue.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.Pending.Equal(decimal.NewFromInt(100)))
	assert.True(t, totals.Outstanding.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, 3, totals.Count)
}

func TestDeriveSynthesizesSingleQuota(t *testing.T) {
	sale := creditSale("250.75")

	quotas := DeriveEntry(sale, nil, march)
	require.Len(t, quotas, 1)
	q := quotas[0]
	assert.Equal(t, sale.ID.String()+"-1", q.ID)
	assert.True(t, q.Amount.Equal(sale.Total))
	assert.True(t, q.DueDate.Equal(sale.CreatedAt))
	assert.Equal(t, 1, q.TotalQuotas)
	assert.Equal(t, StatusOverdue, q.Status)

	future := DeriveEntry(sale, nil, sale.CreatedAt.Add(-time.Hour))
	assert.Equal(t, StatusPending, future[0].Status)

	paid := DeriveEntry(sale, NewPaidSet([]ledger.Entry{payment(sale.ID.String()+"-1", ledger.StatusConfirmed)}), march)
	assert.Equal(t, StatusPaid, paid[0].Status)
}

func TestDeriveGeneratesPositionalIDs(t *testing.T) {
	sale := creditSale("100", sq("", "40", "2024-05-01"), sq("", "60", "2024-06-01"))
	quotas := DeriveEntry(sale, nil, march)
	require.Len(t, quotas, 2)
	assert.Equal(t, sale.ID.String()+"-1", quotas[0].ID)
	assert.Equal(t, sale.ID.String()+"-2", quotas[1].ID)
}

func TestSubPaymentsWinOverInternalCreditQuotas(t *testing.T) {
	sale := creditSale("100")
	sale.Metadata = ledger.NewMetadata(&ledger.CreditTerms{Schedule: ledger.Schedule{
		SubPayments:          []ledger.ScheduledQuota{sq("s1", "100", "2024-05-01")},
		InternalCreditQuotas: []ledger.ScheduledQuota{sq("i1", "50", "2024-05-01"), sq("i2", "50", "2024-06-01")},
	}})
	quotas := DeriveEntry(sale, nil, march)
	require.Len(t, quotas, 1)
	assert.Equal(t, "s1", quotas[0].ID)
}

func TestDuplicateIDsAcrossEntriesAreIndependent(t *testing.T) {
	first := creditSale("10", sq("q1", "10", "2024-01-01"))
	second := creditSale("20", sq("q1", "20", "2024-06-01"))

	quotas := Derive([]ledger.Entry{first, second}, nil, march)
	require.Len(t, quotas, 2)
	assert.Equal(t, StatusOverdue, quotas[0].Status)
	assert.Equal(t, StatusPending, quotas[1].Status)
	assert.NotEqual(t, quotas[0].EntryID, quotas[1].EntryID)
}

func TestIsCandidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*ledger.Entry)
		want   bool
	}{
		{"credit sale", func(*ledger.Entry) {}, true},
		{"mixed sale", func(e *ledger.Entry) { e.PaymentMethod = ledger.PaymentMethodMixed }, true},
		{"cash sale", func(e *ledger.Entry) { e.PaymentMethod = ledger.PaymentMethodCash }, false},
		{"draft", func(e *ledger.Entry) { e.Status = ledger.StatusDraft }, false},
		{"cancelled", func(e *ledger.Entry) { e.Status = ledger.StatusCancelled }, false},
		{"legacy payment", func(e *ledger.Entry) { e.EntryType = ledger.EntryTypePaymentIn }, true},
		{"card payment", func(e *ledger.Entry) {
			e.EntryType = ledger.EntryTypePaymentIn
			e.PaymentMethod = ledger.PaymentMethodCard
		}, false},
		{"purchase", func(e *ledger.Entry) { e.EntryType = ledger.EntryTypePurchase }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := creditSale("1")
			tc.mutate(&e)
			assert.Equal(t, tc.want, IsCandidate(e))
		})
	}
}

func TestCompletenessWithUnparseableDueDate(t *testing.T) {
	sale := creditSale("90", sq("x", "45", "not-a-date"), sq("y", "45", "2024-12-01"))
	quotas := DeriveEntry(sale, nil, march)
	require.Len(t, quotas, 2)
	assert.True(t, quotas[0].DueDate.Equal(sale.CreatedAt))
	assert.True(t, Sum(quotas).Outstanding.Equal(sale.Total))
}
