package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryTx struct {
	balances map[[2]uuid.UUID]Balance
	postings []Posting
}

func newMemoryTx() *memoryTx {
	return &memoryTx{balances: make(map[[2]uuid.UUID]Balance)}
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, storageID, productID uuid.UUID) (Balance, error) {
	if bal, ok := tx.balances[[2]uuid.UUID{storageID, productID}]; ok {
		return bal, nil
	}
	return Balance{}, ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance Balance) error {
	tx.balances[[2]uuid.UUID{balance.StorageID, balance.ProductID}] = balance
	return nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, posting Posting) error {
	tx.postings = append(tx.postings, posting)
	return nil
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestAverageMovingCost(t *testing.T) {
	svc := NewService(ServiceConfig{})
	tx := newMemoryTx()
	ctx := context.Background()
	storage, product := uuid.New(), uuid.New()

	postings, err := svc.Post(ctx, tx, uuid.New(), []Movement{
		{StorageID: storage, ProductID: product, Qty: d("10"), UnitCost: d("100")},
		{StorageID: storage, ProductID: product, Qty: d("10"), UnitCost: d("200")},
	})
	require.NoError(t, err)
	require.Len(t, postings, 2)
	require.True(t, postings[1].BalanceQty.Equal(d("20")))
	require.True(t, postings[1].AvgCost.Equal(d("150")), postings[1].AvgCost.String())

	out, err := svc.Post(ctx, tx, uuid.New(), []Movement{{StorageID: storage, ProductID: product, Qty: d("-5")}})
	require.NoError(t, err)
	require.True(t, out[0].UnitCost.Equal(d("150")))
	require.True(t, out[0].BalanceQty.Equal(d("15")))
	require.Len(t, tx.postings, 3)
}

func TestNegativeStockRejected(t *testing.T) {
	svc := NewService(ServiceConfig{})
	tx := newMemoryTx()
	_, err := svc.Post(context.Background(), tx, uuid.New(), []Movement{{StorageID: uuid.New(), ProductID: uuid.New(), Qty: d("-1")}})
	require.ErrorIs(t, err, ErrNegativeStock)

	allowing := NewService(ServiceConfig{AllowNegativeStock: true})
	postings, err := allowing.Post(context.Background(), tx, uuid.New(), []Movement{{StorageID: uuid.New(), ProductID: uuid.New(), Qty: d("-1")}})
	require.NoError(t, err)
	require.True(t, postings[0].BalanceQty.Equal(d("-1")))
}

func TestInvertRestoresBalance(t *testing.T) {
	svc := NewService(ServiceConfig{})
	tx := newMemoryTx()
	ctx := context.Background()
	storage, product := uuid.New(), uuid.New()
	moves := []Movement{{StorageID: storage, ProductID: product, Qty: d("4"), UnitCost: d("25")}}

	_, err := svc.Post(ctx, tx, uuid.New(), moves)
	require.NoError(t, err)
	_, err = svc.Post(ctx, tx, uuid.New(), Invert(moves))
	require.NoError(t, err)

	bal := tx.balances[[2]uuid.UUID{storage, product}]
	require.True(t, bal.Qty.IsZero())
	require.True(t, bal.AvgCost.IsZero())
}

func TestPostRejectsZeroQuantity(t *testing.T) {
	svc := NewService(ServiceConfig{})
	_, err := svc.Post(context.Background(), newMemoryTx(), uuid.New(), []Movement{{StorageID: uuid.New(), ProductID: uuid.New()}})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}
