package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
)

// StockPoster applies stock movements inside a ledger unit of work.
type StockPoster interface {
	Post(ctx context.Context, tx inventory.TxRepository, entryID uuid.UUID, movements []inventory.Movement) ([]inventory.Posting, error)
}

// stockSign returns +1 for types that bring goods in, -1 for types that take them out.
func stockSign(t EntryType) int {
	switch t {
	case EntryTypePurchase, EntryTypeSaleReturn:
		return 1
	case EntryTypeSale, EntryTypePurchaseReturn:
		return -1
	}
	return 0
}

// Movements derives the stock movements a confirmed entry causes. Lines with a zero
// quantity, such as unreceived order lines, move nothing.
func Movements(e Entry) []inventory.Movement {
	sign := stockSign(e.EntryType)
	if sign == 0 || !e.StorageID.Valid {
		return nil
	}
	out := make([]inventory.Movement, 0, len(e.Lines))
	for _, line := range e.Lines {
		if line.Quantity.IsZero() {
			continue
		}
		qty := line.Quantity
		if sign < 0 {
			qty = qty.Neg()
		}
		out = append(out, inventory.Movement{
			StorageID: e.StorageID.UUID,
			ProductID: line.ProductID,
			Qty:       qty,
			UnitCost:  line.UnitCost,
		})
	}
	return out
}

// postStock applies the entry's movements and returns the entry with outbound line costs
// set to the average cost they left the storage at, so a later reversal restores them at
// the same cost.
func (s *Service) postStock(ctx context.Context, tx Tx, entry Entry) (Entry, error) {
	if s.stock == nil {
		return entry, nil
	}
	movements := Movements(entry)
	if len(movements) == 0 {
		return entry, nil
	}
	postings, err := s.stock.Post(ctx, tx, entry.ID, movements)
	if err != nil {
		return Entry{}, err
	}
	if stockSign(entry.EntryType) > 0 {
		return entry, nil
	}
	lines := make([]Line, len(entry.Lines))
	copy(lines, entry.Lines)
	next := 0
	for i := range lines {
		if lines[i].Quantity.IsZero() || next >= len(postings) {
			continue
		}
		lines[i].UnitCost = postings[next].UnitCost
		next++
	}
	entry.Lines = lines
	return entry, nil
}
