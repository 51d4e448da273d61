package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

const numberConstraint = "ledger_entries_type_number_key"

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements Store on PostgreSQL.
type Repository struct {
	queries
	pool *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{queries: queries{q: pool}, pool: pool}
}

// WithTx wraps fn in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{queries: queries{q: tx}})
	})
}

// queries holds the read side shared by the pool and a transaction.
type queries struct {
	q querier
}

const entryColumns = `
	e.id, e.entry_type, e.status, COALESCE(e.document_number, ''), e.payment_method,
	e.subtotal, e.discount_amount, e.tax_amount, e.total, e.amount_paid,
	e.branch_id, e.point_of_sale_id, e.cash_session_id, e.storage_id, e.target_storage_id,
	e.customer_id, e.supplier_id, e.user_id, e.cost_center_id, e.expense_category_id,
	e.related_entry_id, e.notes, e.metadata, e.created_at, e.updated_at`

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var meta []byte
	err := row.Scan(
		&e.ID, &e.EntryType, &e.Status, &e.DocumentNumber, &e.PaymentMethod,
		&e.Subtotal, &e.DiscountAmount, &e.TaxAmount, &e.Total, &e.AmountPaid,
		&e.BranchID, &e.PointOfSaleID, &e.CashSessionID, &e.StorageID, &e.TargetStorageID,
		&e.CustomerID, &e.SupplierID, &e.UserID, &e.CostCenterID, &e.ExpenseCategoryID,
		&e.RelatedEntryID, &e.Notes, &meta, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	e.Metadata, err = DecodeMetadata(e.EntryType, meta)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// GetEntry fetches one entry with its lines.
func (r queries) GetEntry(ctx context.Context, id uuid.UUID) (Entry, error) {
	return r.getEntry(ctx, id, false)
}

func (r queries) getEntry(ctx context.Context, id uuid.UUID, lock bool) (Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries e WHERE e.id = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	entry, err := scanEntry(r.q.QueryRow(ctx, query, id))
	if err != nil {
		return Entry{}, db.MapError("get ledger entry", err)
	}
	if err := r.attachLines(ctx, []*Entry{&entry}); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// FindReversal returns the entry whose related_entry_id points at originalID.
func (r queries) FindReversal(ctx context.Context, originalID uuid.UUID) (Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries e WHERE e.related_entry_id = $1`
	entry, err := scanEntry(r.q.QueryRow(ctx, query, originalID))
	if err != nil {
		return Entry{}, db.MapError("find reversal", err)
	}
	if err := r.attachLines(ctx, []*Entry{&entry}); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ListEntries returns entries matching filter and the total count before paging.
func (r queries) ListEntries(ctx context.Context, filter EntryFilter) ([]Entry, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	argPos := 1
	add := func(format string, value any) {
		conditions = append(conditions, fmt.Sprintf(format, argPos))
		args = append(args, value)
		argPos++
	}

	if len(filter.Types) > 0 {
		add("e.entry_type = ANY($%d)", typeStrings(filter.Types))
	}
	if len(filter.Statuses) > 0 {
		add("e.status = ANY($%d)", statusStrings(filter.Statuses))
	}
	if len(filter.ExcludeStatuses) > 0 {
		add("NOT (e.status = ANY($%d))", statusStrings(filter.ExcludeStatuses))
	}
	if filter.CustomerID.Valid {
		add("e.customer_id = $%d", filter.CustomerID.UUID)
	}
	if filter.SupplierID.Valid {
		add("e.supplier_id = $%d", filter.SupplierID.UUID)
	}
	if filter.PointOfSaleID.Valid {
		add("e.point_of_sale_id = $%d", filter.PointOfSaleID.UUID)
	}
	if filter.CashSessionID.Valid {
		add("e.cash_session_id = $%d", filter.CashSessionID.UUID)
	}
	if !filter.From.IsZero() {
		add("e.created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("e.created_at <= $%d", filter.To)
	}
	if filter.CreditBearing {
		conditions = append(conditions, `((e.entry_type = 'SALE' AND e.payment_method IN ('INTERNAL_CREDIT', 'MIXED'))
			OR (e.entry_type = 'PAYMENT_IN' AND e.payment_method = 'INTERNAL_CREDIT'))`)
	}
	if filter.HasPaidQuota {
		conditions = append(conditions, `COALESCE(e.metadata->>'paidQuotaId', '') <> ''`)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(e.document_number ILIKE $%d OR c.name ILIKE $%d OR e.total::text LIKE $%d)", argPos, argPos, argPos+1))
		args = append(args, "%"+search+"%", search+"%")
		argPos += 2
	}

	where := strings.Join(conditions, " AND ")
	from := ` FROM ledger_entries e LEFT JOIN customers c ON c.id = e.customer_id WHERE ` + where

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError("count ledger entries", err)
	}

	query := `SELECT ` + entryColumns + from + ` ORDER BY e.created_at DESC, e.id DESC`
	if filter.PerPage > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, filter.PerPage, shared.Offset(filter.Page, filter.PerPage))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.MapError("list ledger entries", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, db.MapError("scan ledger entry", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, db.MapError("list ledger entries", err)
	}
	rows.Close()

	ptrs := make([]*Entry, len(entries))
	for i := range entries {
		ptrs[i] = &entries[i]
	}
	if err := r.attachLines(ctx, ptrs); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r queries) attachLines(ctx context.Context, entries []*Entry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(entries))
	byID := make(map[uuid.UUID]*Entry, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		byID[e.ID] = e
	}
	rows, err := r.q.Query(ctx, `
		SELECT entry_id, product_id, quantity, ordered_quantity, unit_cost
		FROM ledger_entry_lines
		WHERE entry_id = ANY($1)
		ORDER BY entry_id, line_no`, ids)
	if err != nil {
		return db.MapError("list entry lines", err)
	}
	defer rows.Close()
	for rows.Next() {
		var entryID uuid.UUID
		var line Line
		if err := rows.Scan(&entryID, &line.ProductID, &line.Quantity, &line.OrderedQuantity, &line.UnitCost); err != nil {
			return db.MapError("scan entry line", err)
		}
		if e, ok := byID[entryID]; ok {
			e.Lines = append(e.Lines, line)
		}
	}
	return db.MapError("list entry lines", rows.Err())
}

const sessionColumns = `
	id, point_of_sale_id, status, opened_by_id, closed_by_id, reconciled_by_id,
	opening_amount, closing_amount, expected_amount, difference,
	opened_at, closed_at, reconciled_at, notes`

func scanSession(row pgx.Row) (CashSession, error) {
	var s CashSession
	err := row.Scan(
		&s.ID, &s.PointOfSaleID, &s.Status, &s.OpenedByID, &s.ClosedByID, &s.ReconciledByID,
		&s.OpeningAmount, &s.ClosingAmount, &s.ExpectedAmount, &s.Difference,
		&s.OpenedAt, &s.ClosedAt, &s.ReconciledAt, &s.Notes,
	)
	return s, err
}

// GetSession fetches one cash session.
func (r queries) GetSession(ctx context.Context, id uuid.UUID) (CashSession, error) {
	s, err := scanSession(r.q.QueryRow(ctx, `SELECT `+sessionColumns+` FROM cash_sessions WHERE id = $1`, id))
	if err != nil {
		return CashSession{}, db.MapError("get cash session", err)
	}
	return s, nil
}

// ListSessions returns sessions matching filter, newest first.
func (r queries) ListSessions(ctx context.Context, filter SessionFilter) ([]CashSession, int, error) {
	conditions := []string{"1=1"}
	args := []any{}
	argPos := 1

	if filter.PointOfSaleID.Valid {
		conditions = append(conditions, fmt.Sprintf("point_of_sale_id = $%d", argPos))
		args = append(args, filter.PointOfSaleID.UUID)
		argPos++
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", argPos))
		args = append(args, statuses)
		argPos++
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, fmt.Sprintf("opened_at >= $%d", argPos))
		args = append(args, filter.From)
		argPos++
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, fmt.Sprintf("opened_at <= $%d", argPos))
		args = append(args, filter.To)
		argPos++
	}
	where := strings.Join(conditions, " AND ")

	var total int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM cash_sessions WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, db.MapError("count cash sessions", err)
	}
	query := `SELECT ` + sessionColumns + ` FROM cash_sessions WHERE ` + where + ` ORDER BY opened_at DESC, id DESC`
	if filter.PerPage > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argPos, argPos+1)
		args = append(args, filter.PerPage, shared.Offset(filter.Page, filter.PerPage))
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.MapError("list cash sessions", err)
	}
	defer rows.Close()
	var sessions []CashSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, 0, db.MapError("scan cash session", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, total, db.MapError("list cash sessions", rows.Err())
}

func typeStrings(types []EntryType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullableNumber(number string) *string {
	if number == "" {
		return nil
	}
	return &number
}

func mapWriteError(op string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err) && db.ConstraintName(err) == numberConstraint {
		return fmt.Errorf("%s: %w", op, ErrDuplicateDocumentNumber)
	}
	return db.MapError(op, err)
}

var _ Store = (*Repository)(nil)
