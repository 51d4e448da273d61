package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const costPrecision = 4

// TxRepository exposes the stock operations a unit of work must provide.
type TxRepository interface {
	GetBalanceForUpdate(ctx context.Context, storageID, productID uuid.UUID) (Balance, error)
	UpsertBalance(ctx context.Context, balance Balance) error
	InsertMovement(ctx context.Context, posting Posting) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service applies stock movements inside a caller-owned transaction.
type Service struct {
	allowNeg bool
	now      func() time.Time
}

// NewService builds Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{allowNeg: cfg.AllowNegativeStock, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock, used by tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Post applies every movement against tx using moving average cost. The first failing
// movement aborts the batch; the caller rolls the transaction back.
func (s *Service) Post(ctx context.Context, tx TxRepository, entryID uuid.UUID, movements []Movement) ([]Posting, error) {
	if tx == nil {
		return nil, errors.New("inventory: transaction required")
	}
	postings := make([]Posting, 0, len(movements))
	for _, m := range movements {
		posting, err := s.postMovement(ctx, tx, entryID, m)
		if err != nil {
			return nil, err
		}
		postings = append(postings, posting)
	}
	return postings, nil
}

func (s *Service) postMovement(ctx context.Context, tx TxRepository, entryID uuid.UUID, m Movement) (Posting, error) {
	if m.StorageID == uuid.Nil || m.ProductID == uuid.Nil {
		return Posting{}, errors.New("inventory: storage and product required")
	}
	if m.Qty.IsZero() {
		return Posting{}, ErrInvalidQuantity
	}
	if m.UnitCost.IsNegative() {
		return Posting{}, ErrInvalidUnitCost
	}
	balance, err := tx.GetBalanceForUpdate(ctx, m.StorageID, m.ProductID)
	if err != nil && !errors.Is(err, ErrBalanceNotFound) {
		return Posting{}, err
	}
	if errors.Is(err, ErrBalanceNotFound) {
		balance = Balance{StorageID: m.StorageID, ProductID: m.ProductID}
	}

	newQty := balance.Qty.Add(m.Qty)
	if !s.allowNeg && newQty.IsNegative() {
		return Posting{}, fmt.Errorf("%w: product %s in storage %s", ErrNegativeStock, m.ProductID, m.StorageID)
	}

	var unitCost, newAvg decimal.Decimal
	if m.Direction() == DirectionIn {
		unitCost = m.UnitCost
		totalCost := balance.Qty.Mul(balance.AvgCost).Add(m.Qty.Mul(unitCost))
		if !newQty.IsZero() {
			newAvg = totalCost.Div(newQty).Round(costPrecision)
		}
	} else {
		unitCost = balance.AvgCost
		if newQty.IsPositive() {
			newAvg = balance.AvgCost
		}
	}

	now := s.now()
	balance.Qty = newQty
	balance.AvgCost = newAvg
	balance.UpdatedAt = now
	if err := tx.UpsertBalance(ctx, balance); err != nil {
		return Posting{}, err
	}
	posting := Posting{
		EntryID:    entryID,
		StorageID:  m.StorageID,
		ProductID:  m.ProductID,
		QtyChange:  m.Qty,
		UnitCost:   unitCost,
		BalanceQty: newQty,
		AvgCost:    newAvg,
		PostedAt:   now,
	}
	if err := tx.InsertMovement(ctx, posting); err != nil {
		return Posting{}, err
	}
	return posting, nil
}
