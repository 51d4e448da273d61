package cashsession

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/memstore"
	"github.com/odyssey-erp/odyssey-ledger/internal/numbering"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

var now = time.Date(2024, 5, 10, 18, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type env struct {
	store    *memstore.Store
	ledger   *ledger.Service
	sessions *Service
}

func newEnv(t *testing.T) env {
	t.Helper()
	store := memstore.New()
	clock := func() time.Time { return now }
	return env{
		store:    store,
		ledger:   ledger.NewService(store, numbering.NewAssigner(""), nil, nil).WithNow(clock),
		sessions: NewService(store, nil, nil, nil).WithNow(clock),
	}
}

func (e env) open(t *testing.T, pos uuid.UUID, amount string) ledger.CashSession {
	t.Helper()
	session, err := e.sessions.Open(context.Background(), OpenInput{
		PointOfSaleID: pos,
		OpenedByID:    uuid.New(),
		OpeningAmount: dec(amount),
	})
	require.NoError(t, err)
	return session
}

func (e env) post(t *testing.T, session ledger.CashSession, typ ledger.EntryType, total string, confirm bool) ledger.Entry {
	t.Helper()
	in := ledger.CreateInput{
		EntryType:     typ,
		PaymentMethod: ledger.PaymentMethodCash,
		Confirm:       confirm,
		PointOfSaleID: ledger.ID(session.PointOfSaleID),
		CashSessionID: ledger.ID(session.ID),
		Subtotal:      dec(total),
		Total:         dec(total),
	}
	entry, err := e.ledger.Create(context.Background(), in)
	require.NoError(t, err)
	return entry
}

func TestOpenSaleSummarize(t *testing.T) {
	e := newEnv(t)
	session := e.open(t, uuid.New(), "10000")
	e.post(t, session, ledger.EntryTypeSale, "5000", true)

	summary, err := e.sessions.Summary(context.Background(), session.ID)
	require.NoError(t, err)
	assert.True(t, summary.ExpectedBalance.Equal(dec("15000")))
	assert.True(t, summary.CashIn.Equal(dec("5000")))
	assert.True(t, summary.CashOut.IsZero())
	assert.Equal(t, 1, summary.EntryCount)
}

func TestCloseTwiceKeepsFirstResult(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "10000")
	e.post(t, session, ledger.EntryTypeSale, "5000", true)

	closed, err := e.sessions.Close(ctx, CloseInput{SessionID: session.ID, ClosedByID: uuid.New(), ClosingAmount: dec("15000")})
	require.NoError(t, err)
	assert.Equal(t, ledger.SessionClosed, closed.Status)
	assert.True(t, closed.Difference.Decimal.IsZero())
	assert.True(t, closed.ExpectedAmount.Decimal.Equal(dec("15000")))
	require.NotNil(t, closed.ClosedAt)

	_, err = e.sessions.Close(ctx, CloseInput{SessionID: session.ID, ClosedByID: uuid.New(), ClosingAmount: dec("1")})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	stored, err := e.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, stored.ClosingAmount.Decimal.Equal(dec("15000")))
	assert.True(t, stored.Difference.Decimal.IsZero())
}

func TestSecondOpenIsConflict(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pos := uuid.New()
	first := e.open(t, pos, "100")

	_, err := e.sessions.Open(ctx, OpenInput{PointOfSaleID: pos, OpenedByID: uuid.New(), OpeningAmount: dec("50")})
	require.ErrorIs(t, err, shared.ErrConflict)

	stored, err := e.store.GetSession(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.SessionOpen, stored.Status)
	assert.True(t, stored.OpeningAmount.Equal(dec("100")))

	other := e.open(t, uuid.New(), "0")
	assert.NotEqual(t, first.ID, other.ID)
}

func TestOpenValidatesInput(t *testing.T) {
	e := newEnv(t)
	_, err := e.sessions.Open(context.Background(), OpenInput{OpeningAmount: dec("-1")})
	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 3)
}

func TestSummaryIgnoresDraftsAndOtherSessions(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "200")
	e.post(t, session, ledger.EntryTypeSale, "100", true)
	e.post(t, session, ledger.EntryTypePaymentIn, "40", true)
	e.post(t, session, ledger.EntryTypeSale, "999", false)

	refund := ledger.CreateInput{
		EntryType: ledger.EntryTypePaymentOut, Confirm: true,
		PaymentMethod: ledger.PaymentMethodCash,
		CashSessionID: ledger.ID(session.ID), Subtotal: dec("15"), Total: dec("15"),
	}
	_, err := e.ledger.Create(ctx, refund)
	require.NoError(t, err)

	before, err := e.sessions.Summary(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, before.ExpectedBalance.Equal(dec("325")))
	assert.Equal(t, 3, before.EntryCount)

	other := e.open(t, uuid.New(), "0")
	e.post(t, other, ledger.EntryTypeSale, "70", true)

	after, err := e.sessions.Summary(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSummaryCountsReversalOfSessionSale(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "0")
	sale := e.post(t, session, ledger.EntryTypeSale, "80", true)

	_, err := e.ledger.Reverse(ctx, ledger.ReverseInput{EntryID: sale.ID, Reason: "refund", CashSessionID: ledger.ID(session.ID)})
	require.NoError(t, err)

	summary, err := e.sessions.Summary(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, summary.ExpectedBalance.IsZero())
	assert.True(t, summary.CashOut.Equal(dec("80")))
	require.Len(t, summary.ByType, 2)
	assert.Equal(t, ledger.EntryTypeSale, summary.ByType[0].EntryType)
	assert.Equal(t, ledger.EntryTypeSaleReturn, summary.ByType[1].EntryType)
}

func TestReversalDefaultsToOpenSessionOfOriginal(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "20")
	sale := e.post(t, session, ledger.EntryTypeSale, "50", true)

	result, err := e.ledger.Reverse(ctx, ledger.ReverseInput{EntryID: sale.ID, Reason: "wrong item"})
	require.NoError(t, err)
	assert.Equal(t, ledger.ID(session.ID), result.Reversal.CashSessionID)

	summary, err := e.sessions.Summary(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, summary.ExpectedBalance.Equal(dec("20")))
}

func TestReversalAfterCloseStaysOffTheClosedSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "0")
	sale := e.post(t, session, ledger.EntryTypeSale, "30", true)
	_, err := e.sessions.Close(ctx, CloseInput{SessionID: session.ID, ClosedByID: uuid.New(), ClosingAmount: dec("30")})
	require.NoError(t, err)

	result, err := e.ledger.Reverse(ctx, ledger.ReverseInput{EntryID: sale.ID, Reason: "late return"})
	require.NoError(t, err)
	assert.False(t, result.Reversal.CashSessionID.Valid)
}

func TestCloseRollsBackOnPersistenceFailure(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "10")

	e.store.InjectFailure("UpdateSession", errors.New("connection reset"))
	_, err := e.sessions.Close(ctx, CloseInput{SessionID: session.ID, ClosedByID: uuid.New(), ClosingAmount: dec("10")})
	require.ErrorIs(t, err, shared.ErrPersistence)

	stored, err := e.store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.SessionOpen, stored.Status)
	assert.False(t, stored.ExpectedAmount.Valid)
}

func TestClosedSessionRejectsNewEntries(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "10")
	_, err := e.sessions.Close(ctx, CloseInput{SessionID: session.ID, ClosedByID: uuid.New(), ClosingAmount: dec("10")})
	require.NoError(t, err)

	_, err = e.ledger.Create(ctx, ledger.CreateInput{
		EntryType: ledger.EntryTypeSale, PaymentMethod: ledger.PaymentMethodCash,
		PointOfSaleID: ledger.ID(session.PointOfSaleID), CashSessionID: ledger.ID(session.ID),
		Subtotal: dec("1"), Total: dec("1"),
	})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestReconcileUsesFrozenExpectedAmount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "100")
	e.post(t, session, ledger.EntryTypeSale, "50", true)

	_, err := e.sessions.Reconcile(ctx, ReconcileInput{SessionID: session.ID, Notes: "early"})
	require.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = e.sessions.Close(ctx, CloseInput{SessionID: session.ID, ClosedByID: uuid.New(), ClosingAmount: dec("140"), Notes: "drawer short"})
	require.NoError(t, err)

	actor := uuid.New()
	reconciled, err := e.sessions.Reconcile(ctx, ReconcileInput{
		SessionID:      session.ID,
		ActorID:        actor,
		AdjustedAmount: decimal.NewNullDecimal(dec("150")),
		Notes:          "found 10 in safe",
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.SessionReconciled, reconciled.Status)
	assert.True(t, reconciled.ExpectedAmount.Decimal.Equal(dec("150")))
	assert.True(t, reconciled.ClosingAmount.Decimal.Equal(dec("150")))
	assert.True(t, reconciled.Difference.Decimal.IsZero())
	assert.Equal(t, "drawer short\n[RECONCILED] found 10 in safe", reconciled.Notes)
	assert.Equal(t, ledger.ID(actor), reconciled.ReconciledByID)
	require.NotNil(t, reconciled.ReconciledAt)

	_, err = e.sessions.Reconcile(ctx, ReconcileInput{SessionID: session.ID})
	assert.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCurrentAndList(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	pos := uuid.New()
	_, err := e.sessions.Current(ctx, pos)
	require.ErrorIs(t, err, shared.ErrNotFound)

	session := e.open(t, pos, "25")
	current, err := e.sessions.Current(ctx, pos)
	require.NoError(t, err)
	assert.Equal(t, session.ID, current.ID)
	assert.True(t, current.Summary.ExpectedBalance.Equal(dec("25")))

	e.open(t, uuid.New(), "0")
	views, page, err := e.sessions.List(ctx, ledger.SessionFilter{PointOfSaleID: ledger.ID(pos)})
	require.NoError(t, err)
	assert.Len(t, views, 1)
	assert.Equal(t, 1, page.Total)
}

func TestOpenBusyLockIsConflict(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memstore.New()
	locker := shared.NewRedisLocker(rdb, time.Minute, nil)
	svc := NewService(store, locker, nil, nil)
	pos := uuid.New()

	release, err := locker.Acquire(context.Background(), shared.CashSessionLockKey(pos))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err = svc.Open(ctx, OpenInput{PointOfSaleID: pos, OpenedByID: uuid.New(), OpeningAmount: dec("1")})
	require.ErrorIs(t, err, shared.ErrConflict)

	release(context.Background())
	_, err = svc.Open(context.Background(), OpenInput{PointOfSaleID: pos, OpenedByID: uuid.New(), OpeningAmount: dec("1")})
	require.NoError(t, err)
}

func TestReportRendersPDF(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	session := e.open(t, uuid.New(), "1000")
	e.post(t, session, ledger.EntryTypeSale, "2500.5", true)

	body, err := e.sessions.Report(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
	assert.Equal(t, "3,500.50", formatAmount(dec("3500.5")))
}
