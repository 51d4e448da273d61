package quota

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type trackerEnv struct {
	store   *memstore.Store
	ledger  *ledger.Service
	tracker *Tracker
}

func newTrackerEnv() trackerEnv {
	store := memstore.New()
	clock := func() time.Time { return march }
	return trackerEnv{
		store:   store,
		ledger:  ledger.NewService(store, nil, nil, nil).WithNow(func() time.Time { return march.AddDate(0, -3, 0) }),
		tracker: NewTracker(store, nil).WithNow(clock),
	}
}

func (e trackerEnv) sell(t *testing.T, customer uuid.UUID, total string, quotas ...ledger.ScheduledQuota) ledger.Entry {
	t.Helper()
	entry, err := e.ledger.Create(context.Background(), ledger.CreateInput{
		EntryType:     ledger.EntryTypeSale,
		PaymentMethod: ledger.PaymentMethodInternalCredit,
		Confirm:       true,
		PointOfSaleID: ledger.ID(uuid.New()),
		CustomerID:    ledger.ID(customer),
		Subtotal:      decimal.RequireFromString(total),
		Total:         decimal.RequireFromString(total),
		Payload:       &ledger.CreditTerms{Schedule: ledger.Schedule{InternalCreditQuotas: quotas}},
	})
	require.NoError(t, err)
	return entry
}

func (e trackerEnv) pay(t *testing.T, customer uuid.UUID, amount, quotaID string) ledger.Entry {
	t.Helper()
	entry, err := e.ledger.Create(context.Background(), ledger.CreateInput{
		EntryType:     ledger.EntryTypePaymentIn,
		PaymentMethod: ledger.PaymentMethodCash,
		Confirm:       true,
		CustomerID:    ledger.ID(customer),
		Subtotal:      decimal.RequireFromString(amount),
		Total:         decimal.RequireFromString(amount),
		Payload:       &ledger.PaymentDetails{PaidQuotaID: quotaID},
	})
	require.NoError(t, err)
	return entry
}

func TestForCustomerAppliesPayments(t *testing.T) {
	e := newTrackerEnv()
	ctx := context.Background()
	customer := uuid.New()
	e.sell(t, customer, "60000", sq("q1", "30000", "2024-01-01"), sq("q2", "30000", "2024-04-01"))
	e.sell(t, uuid.New(), "500")
	e.pay(t, customer, "30000", "q1")

	out, err := e.tracker.ForCustomer(ctx, customer)
	require.NoError(t, err)
	require.Len(t, out.Quotas, 2)
	assert.Equal(t, StatusPaid, out.Quotas[0].Status)
	assert.Equal(t, StatusPending, out.Quotas[1].Status)
	assert.True(t, out.Totals.Outstanding.Equal(decimal.NewFromInt(30000)))
}

func TestCancelledPaymentReopensQuota(t *testing.T) {
	e := newTrackerEnv()
	ctx := context.Background()
	customer := uuid.New()
	e.sell(t, customer, "100", sq("only", "100", "2024-01-15"))
	payment := e.pay(t, customer, "100", "only")

	out, err := e.tracker.ForCustomer(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, out.Quotas[0].Status)

	_, err = e.ledger.Reverse(ctx, ledger.ReverseInput{EntryID: payment.ID, Reason: "bounced"})
	require.NoError(t, err)

	out, err = e.tracker.ForCustomer(ctx, customer)
	require.NoError(t, err)
	assert.Equal(t, StatusOverdue, out.Quotas[0].Status)
}

func TestCancelledSaleLeavesNoQuotas(t *testing.T) {
	e := newTrackerEnv()
	ctx := context.Background()
	customer := uuid.New()
	sale := e.sell(t, customer, "80")
	_, err := e.ledger.Reverse(ctx, ledger.ReverseInput{EntryID: sale.ID, Reason: "returned"})
	require.NoError(t, err)

	out, err := e.tracker.ForCustomer(ctx, customer)
	require.NoError(t, err)
	assert.Empty(t, out.Quotas)
	assert.True(t, out.Totals.Outstanding.IsZero())
}

func TestOverdueAcrossCustomers(t *testing.T) {
	e := newTrackerEnv()
	e.sell(t, uuid.New(), "10", sq("a", "10", "2024-01-01"))
	e.sell(t, uuid.New(), "20", sq("b", "20", "2024-09-01"))
	e.sell(t, uuid.New(), "30")

	overdue, err := e.tracker.Overdue(context.Background())
	require.NoError(t, err)
	require.Len(t, overdue, 2)
	assert.True(t, Sum(overdue).Overdue.Equal(decimal.NewFromInt(40)))
}

func TestLoadPropagatesStoreFailure(t *testing.T) {
	tracker := NewTracker(failingReader{err: shared.PersistenceError("list", errors.New("timeout"))}, nil)
	_, err := tracker.ForCustomer(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrPersistence)
}

func TestHandlerForCustomer(t *testing.T) {
	e := newTrackerEnv()
	customer := uuid.New()
	e.sell(t, customer, "60000", sq("q1", "30000", "2024-01-01"), sq("q2", "30000", "2024-02-01"))

	r := chi.NewRouter()
	r.Route("/customers", NewHandler(nil, e.tracker).MountCustomerRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/"+customer.String()+"/quotas", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body CustomerQuotas
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Quotas, 2)
	assert.Equal(t, StatusOverdue, body.Quotas[0].Status)
	assert.True(t, body.Totals.Overdue.Equal(decimal.NewFromInt(60000)))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/nope/quotas", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type failingReader struct {
	ledger.Reader
	err error
}

func (f failingReader) ListEntries(context.Context, ledger.EntryFilter) ([]ledger.Entry, int, error) {
	return nil, 0, f.err
}
