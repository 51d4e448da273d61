package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction tells whether a movement adds or removes stock.
type Direction string

const (
	// DirectionIn represents an inbound movement.
	DirectionIn Direction = "IN"
	// DirectionOut represents an outbound movement.
	DirectionOut Direction = "OUT"
)

// Movement is a signed quantity change of one product in one storage.
type Movement struct {
	StorageID uuid.UUID
	ProductID uuid.UUID
	Qty       decimal.Decimal
	UnitCost  decimal.Decimal
}

// Direction derives the movement direction from the sign of Qty.
func (m Movement) Direction() Direction {
	if m.Qty.IsNegative() {
		return DirectionOut
	}
	return DirectionIn
}

// Balance summarises stock in storage per product.
type Balance struct {
	StorageID uuid.UUID       `json:"storage_id"`
	ProductID uuid.UUID       `json:"product_id"`
	Qty       decimal.Decimal `json:"qty"`
	AvgCost   decimal.Decimal `json:"avg_cost"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Posting records the outcome of one applied movement.
type Posting struct {
	EntryID    uuid.UUID       `json:"entry_id"`
	StorageID  uuid.UUID       `json:"storage_id"`
	ProductID  uuid.UUID       `json:"product_id"`
	QtyChange  decimal.Decimal `json:"qty_change"`
	UnitCost   decimal.Decimal `json:"unit_cost"`
	BalanceQty decimal.Decimal `json:"balance_qty"`
	AvgCost    decimal.Decimal `json:"avg_cost"`
	PostedAt   time.Time       `json:"posted_at"`
}

var (
	// ErrNegativeStock triggered when movement would result negative qty.
	ErrNegativeStock = errors.New("inventory: negative stock not allowed")
	// ErrBalanceNotFound indicates missing balance row.
	ErrBalanceNotFound = errors.New("inventory: balance not found")
	// ErrInvalidQuantity indicates a zero quantity change.
	ErrInvalidQuantity = errors.New("inventory: quantity must be non-zero")
	// ErrInvalidUnitCost indicates a negative unit cost.
	ErrInvalidUnitCost = errors.New("inventory: unit cost must not be negative")
)

// Invert returns movements with the opposite sign, in reverse order.
func Invert(movements []Movement) []Movement {
	out := make([]Movement, 0, len(movements))
	for i := len(movements) - 1; i >= 0; i-- {
		m := movements[i]
		m.Qty = m.Qty.Neg()
		out = append(out, m)
	}
	return out
}
