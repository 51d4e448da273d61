package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// txRepository implements Tx.
type txRepository struct {
	queries
}

// InsertEntry persists an entry and its lines.
func (t *txRepository) InsertEntry(ctx context.Context, e Entry) error {
	meta, err := EncodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO ledger_entries (
			id, entry_type, status, document_number, payment_method,
			subtotal, discount_amount, tax_amount, total, amount_paid,
			branch_id, point_of_sale_id, cash_session_id, storage_id, target_storage_id,
			customer_id, supplier_id, user_id, cost_center_id, expense_category_id,
			related_entry_id, notes, metadata, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25
		)`
	_, err = t.q.Exec(ctx, query,
		e.ID, string(e.EntryType), string(e.Status), nullableNumber(e.DocumentNumber), string(e.PaymentMethod),
		e.Subtotal, e.DiscountAmount, e.TaxAmount, e.Total, e.AmountPaid,
		e.BranchID, e.PointOfSaleID, e.CashSessionID, e.StorageID, e.TargetStorageID,
		e.CustomerID, e.SupplierID, e.UserID, e.CostCenterID, e.ExpenseCategoryID,
		e.RelatedEntryID, e.Notes, meta, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert ledger entry", err)
	}
	return t.insertLines(ctx, e)
}

func (t *txRepository) insertLines(ctx context.Context, e Entry) error {
	for i, line := range e.Lines {
		_, err := t.q.Exec(ctx, `
			INSERT INTO ledger_entry_lines (entry_id, line_no, product_id, quantity, ordered_quantity, unit_cost)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			e.ID, i+1, line.ProductID, line.Quantity, line.OrderedQuantity, line.UnitCost)
		if err != nil {
			return db.MapError("insert entry line", err)
		}
	}
	return nil
}

// UpdateEntry writes the mutable columns of an entry and replaces its lines.
func (t *txRepository) UpdateEntry(ctx context.Context, e Entry) error {
	meta, err := EncodeMetadata(e.Metadata)
	if err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx, `
		UPDATE ledger_entries
		SET status = $1, document_number = $2, notes = $3, metadata = $4, updated_at = $5
		WHERE id = $6`,
		string(e.Status), nullableNumber(e.DocumentNumber), e.Notes, meta, e.UpdatedAt, e.ID)
	if err != nil {
		return mapWriteError("update ledger entry", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update ledger entry %s: %w", e.ID, shared.ErrNotFound)
	}
	if _, err := t.q.Exec(ctx, `DELETE FROM ledger_entry_lines WHERE entry_id = $1`, e.ID); err != nil {
		return db.MapError("replace entry lines", err)
	}
	return t.insertLines(ctx, e)
}

// LockEntry fetches an entry with SELECT ... FOR UPDATE.
func (t *txRepository) LockEntry(ctx context.Context, id uuid.UUID) (Entry, error) {
	return t.getEntry(ctx, id, true)
}

// NextSequence bumps the per-type counter. The first call for a type seeds it from the
// highest number already issued.
func (t *txRepository) NextSequence(ctx context.Context, entryType string) (int64, error) {
	var next int64
	err := t.q.QueryRow(ctx, `
		INSERT INTO document_sequences (entry_type, last_value)
		VALUES ($1, COALESCE((
			SELECT MAX(CAST(substring(document_number FROM '([0-9]+)$') AS BIGINT))
			FROM ledger_entries
			WHERE entry_type = $1 AND document_number IS NOT NULL
		), 0) + 1)
		ON CONFLICT (entry_type) DO UPDATE SET last_value = document_sequences.last_value + 1
		RETURNING last_value`, entryType).Scan(&next)
	if err != nil {
		return 0, db.MapError("next document sequence", err)
	}
	return next, nil
}

// InsertSession persists a new cash session.
func (t *txRepository) InsertSession(ctx context.Context, s CashSession) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO cash_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		s.ID, s.PointOfSaleID, string(s.Status), s.OpenedByID, s.ClosedByID, s.ReconciledByID,
		s.OpeningAmount, s.ClosingAmount, s.ExpectedAmount, s.Difference,
		s.OpenedAt, s.ClosedAt, s.ReconciledAt, s.Notes)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("point of sale %s already has an open cash session: %w", s.PointOfSaleID, shared.ErrConflict)
		}
		return db.MapError("insert cash session", err)
	}
	return nil
}

// UpdateSession writes the lifecycle columns of a session.
func (t *txRepository) UpdateSession(ctx context.Context, s CashSession) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE cash_sessions
		SET status = $1, closed_by_id = $2, reconciled_by_id = $3, closing_amount = $4,
		    expected_amount = $5, difference = $6, closed_at = $7, reconciled_at = $8, notes = $9
		WHERE id = $10`,
		string(s.Status), s.ClosedByID, s.ReconciledByID, s.ClosingAmount,
		s.ExpectedAmount, s.Difference, s.ClosedAt, s.ReconciledAt, s.Notes, s.ID)
	if err != nil {
		return db.MapError("update cash session", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update cash session %s: %w", s.ID, shared.ErrNotFound)
	}
	return nil
}

// LockSession fetches a session with SELECT ... FOR UPDATE.
func (t *txRepository) LockSession(ctx context.Context, id uuid.UUID) (CashSession, error) {
	s, err := scanSession(t.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_sessions WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return CashSession{}, db.MapError("lock cash session", err)
	}
	return s, nil
}

// FindOpenSession returns the OPEN session of a point of sale.
func (t *txRepository) FindOpenSession(ctx context.Context, pointOfSaleID uuid.UUID) (CashSession, error) {
	s, err := scanSession(t.q.QueryRow(ctx, `
		SELECT `+sessionColumns+` FROM cash_sessions
		WHERE point_of_sale_id = $1 AND status = 'OPEN'
		FOR UPDATE`, pointOfSaleID))
	if err != nil {
		return CashSession{}, db.MapError("find open cash session", err)
	}
	return s, nil
}

// GetBalanceForUpdate locks the stock balance row.
func (t *txRepository) GetBalanceForUpdate(ctx context.Context, storageID, productID uuid.UUID) (inventory.Balance, error) {
	var b inventory.Balance
	err := t.q.QueryRow(ctx, `
		SELECT storage_id, product_id, qty, avg_cost, updated_at
		FROM stock_balances
		WHERE storage_id = $1 AND product_id = $2
		FOR UPDATE`, storageID, productID).Scan(&b.StorageID, &b.ProductID, &b.Qty, &b.AvgCost, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return inventory.Balance{}, inventory.ErrBalanceNotFound
	}
	if err != nil {
		return inventory.Balance{}, db.MapError("lock stock balance", err)
	}
	return b, nil
}

// UpsertBalance writes the balance row.
func (t *txRepository) UpsertBalance(ctx context.Context, b inventory.Balance) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stock_balances (storage_id, product_id, qty, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (storage_id, product_id)
		DO UPDATE SET qty = EXCLUDED.qty, avg_cost = EXCLUDED.avg_cost, updated_at = EXCLUDED.updated_at`,
		b.StorageID, b.ProductID, b.Qty, b.AvgCost, b.UpdatedAt)
	return db.MapError("upsert stock balance", err)
}

// InsertMovement appends to the stock card.
func (t *txRepository) InsertMovement(ctx context.Context, p inventory.Posting) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO stock_movements (entry_id, storage_id, product_id, qty_change, unit_cost, balance_qty, avg_cost, posted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.EntryID, p.StorageID, p.ProductID, p.QtyChange, p.UnitCost, p.BalanceQty, p.AvgCost, p.PostedAt)
	return db.MapError("insert stock movement", err)
}

var _ Tx = (*txRepository)(nil)
