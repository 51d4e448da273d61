package ledger

import (
	"context"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// ListBalances returns the stock balances of a storage ordered by product.
func (r queries) ListBalances(ctx context.Context, storageID uuid.UUID) ([]inventory.Balance, error) {
	rows, err := r.q.Query(ctx, `
		SELECT storage_id, product_id, qty, avg_cost, updated_at
		FROM stock_balances
		WHERE storage_id = $1
		ORDER BY product_id`, storageID)
	if err != nil {
		return nil, db.MapError("list stock balances", err)
	}
	defer rows.Close()
	var out []inventory.Balance
	for rows.Next() {
		var b inventory.Balance
		if err := rows.Scan(&b.StorageID, &b.ProductID, &b.Qty, &b.AvgCost, &b.UpdatedAt); err != nil {
			return nil, db.MapError("scan stock balance", err)
		}
		out = append(out, b)
	}
	return out, db.MapError("list stock balances", rows.Err())
}

// StockCard returns the movements of a product in a storage in posting order.
func (r queries) StockCard(ctx context.Context, storageID, productID uuid.UUID) ([]inventory.Posting, error) {
	rows, err := r.q.Query(ctx, `
		SELECT entry_id, storage_id, product_id, qty_change, unit_cost, balance_qty, avg_cost, posted_at
		FROM stock_movements
		WHERE storage_id = $1 AND product_id = $2
		ORDER BY id`, storageID, productID)
	if err != nil {
		return nil, db.MapError("stock card", err)
	}
	defer rows.Close()
	var out []inventory.Posting
	for rows.Next() {
		var p inventory.Posting
		if err := rows.Scan(&p.EntryID, &p.StorageID, &p.ProductID, &p.QtyChange, &p.UnitCost, &p.BalanceQty, &p.AvgCost, &p.PostedAt); err != nil {
			return nil, db.MapError("scan stock movement", err)
		}
		out = append(out, p)
	}
	return out, db.MapError("stock card", rows.Err())
}
