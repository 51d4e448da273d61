// Package memstore is an in-memory ledger.Store. Each transaction works on a private
// copy of the data that replaces the committed copy only when the callback succeeds, so
// a failing unit of work leaves nothing behind.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

type stockKey struct {
	storage uuid.UUID
	product uuid.UUID
}

type entryRow struct {
	entry ledger.Entry
	seq   int64
}

type state struct {
	entries   map[uuid.UUID]entryRow
	sessions  map[uuid.UUID]ledger.CashSession
	sequences map[string]int64
	balances  map[stockKey]inventory.Balance
	movements []inventory.Posting
	customers map[uuid.UUID]string
	nextSeq   int64
}

func newState() *state {
	return &state{
		entries:   make(map[uuid.UUID]entryRow),
		sessions:  make(map[uuid.UUID]ledger.CashSession),
		sequences: make(map[string]int64),
		balances:  make(map[stockKey]inventory.Balance),
		customers: make(map[uuid.UUID]string),
	}
}

func (s *state) clone() *state {
	out := &state{
		entries:   make(map[uuid.UUID]entryRow, len(s.entries)),
		sessions:  make(map[uuid.UUID]ledger.CashSession, len(s.sessions)),
		sequences: make(map[string]int64, len(s.sequences)),
		balances:  make(map[stockKey]inventory.Balance, len(s.balances)),
		movements: append([]inventory.Posting(nil), s.movements...),
		customers: make(map[uuid.UUID]string, len(s.customers)),
		nextSeq:   s.nextSeq,
	}
	for id, row := range s.entries {
		out.entries[id] = entryRow{entry: cloneEntry(row.entry), seq: row.seq}
	}
	for id, session := range s.sessions {
		out.sessions[id] = cloneSession(session)
	}
	for k, v := range s.sequences {
		out.sequences[k] = v
	}
	for k, v := range s.balances {
		out.balances[k] = v
	}
	for k, v := range s.customers {
		out.customers[k] = v
	}
	return out
}

// Store implements ledger.Store in memory.
type Store struct {
	txMu     sync.Mutex
	mu       sync.RWMutex
	data     *state
	failures map[string]error
}

// New returns an empty store.
func New() *Store {
	return &Store{data: newState(), failures: make(map[string]error)}
}

// InjectFailure makes the next call of the named Tx method return err.
func (s *Store) InjectFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) takeFailure(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err, ok := s.failures[op]
	if !ok {
		return nil
	}
	delete(s.failures, op)
	return err
}

// SetCustomerName registers a customer name for search.
func (s *Store) SetCustomerName(id uuid.UUID, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.customers[id] = name
}

// Balance returns the committed stock balance of a product in a storage.
func (s *Store) Balance(storageID, productID uuid.UUID) (inventory.Balance, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.data.balances[stockKey{storageID, productID}]
	return b, ok
}

// Postings returns every committed stock movement in posting order.
func (s *Store) Postings() []inventory.Posting {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]inventory.Posting(nil), s.data.movements...)
}

// WithTx runs fn on a private copy and publishes it when fn succeeds. Transactions run
// one at a time.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, ledger.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	tx := &txStore{view: view{data: work}, store: s}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := s.takeFailure("Commit"); err != nil {
		return shared.PersistenceError("commit", err)
	}
	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

// GetEntry implements ledger.Reader.
func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{data: s.data}.GetEntry(ctx, id)
}

// ListEntries implements ledger.Reader.
func (s *Store) ListEntries(ctx context.Context, filter ledger.EntryFilter) ([]ledger.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{data: s.data}.ListEntries(ctx, filter)
}

// FindReversal implements ledger.Reader.
func (s *Store) FindReversal(ctx context.Context, originalID uuid.UUID) (ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{data: s.data}.FindReversal(ctx, originalID)
}

// GetSession implements ledger.Reader.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (ledger.CashSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{data: s.data}.GetSession(ctx, id)
}

// ListSessions implements ledger.Reader.
func (s *Store) ListSessions(ctx context.Context, filter ledger.SessionFilter) ([]ledger.CashSession, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{data: s.data}.ListSessions(ctx, filter)
}

// view answers reads against one state.
type view struct {
	data *state
}

func (v view) GetEntry(_ context.Context, id uuid.UUID) (ledger.Entry, error) {
	row, ok := v.data.entries[id]
	if !ok {
		return ledger.Entry{}, fmt.Errorf("ledger entry %s: %w", id, shared.ErrNotFound)
	}
	return cloneEntry(row.entry), nil
}

func (v view) FindReversal(_ context.Context, originalID uuid.UUID) (ledger.Entry, error) {
	for _, row := range v.data.entries {
		if row.entry.RelatedEntryID.Valid && row.entry.RelatedEntryID.UUID == originalID {
			return cloneEntry(row.entry), nil
		}
	}
	return ledger.Entry{}, fmt.Errorf("reversal of %s: %w", originalID, shared.ErrNotFound)
}

func (v view) ListEntries(_ context.Context, filter ledger.EntryFilter) ([]ledger.Entry, int, error) {
	rows := make([]entryRow, 0, len(v.data.entries))
	for _, row := range v.data.entries {
		if v.matches(row.entry, filter) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.entry.CreatedAt.Equal(b.entry.CreatedAt) {
			return a.entry.CreatedAt.After(b.entry.CreatedAt)
		}
		return a.seq > b.seq
	})
	total := len(rows)
	rows = paginate(rows, filter.Page, filter.PerPage)
	out := make([]ledger.Entry, len(rows))
	for i, row := range rows {
		out[i] = cloneEntry(row.entry)
	}
	return out, total, nil
}

func (v view) matches(e ledger.Entry, f ledger.EntryFilter) bool {
	if len(f.Types) > 0 && !containsType(f.Types, e.EntryType) {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, e.Status) {
		return false
	}
	if len(f.ExcludeStatuses) > 0 && containsStatus(f.ExcludeStatuses, e.Status) {
		return false
	}
	if !sameID(f.CustomerID, e.CustomerID) || !sameID(f.SupplierID, e.SupplierID) ||
		!sameID(f.PointOfSaleID, e.PointOfSaleID) || !sameID(f.CashSessionID, e.CashSessionID) {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	if f.CreditBearing && !ledger.IsCreditBearing(e) {
		return false
	}
	if f.HasPaidQuota && e.PaidQuotaID() == "" {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		name := ""
		if e.CustomerID.Valid {
			name = v.data.customers[e.CustomerID.UUID]
		}
		hit := strings.Contains(strings.ToLower(e.DocumentNumber), search) ||
			strings.Contains(strings.ToLower(name), search) ||
			strings.HasPrefix(e.Total.StringFixed(ledger.CurrencyPrecision), search)
		if !hit {
			return false
		}
	}
	return true
}

func (v view) GetSession(_ context.Context, id uuid.UUID) (ledger.CashSession, error) {
	session, ok := v.data.sessions[id]
	if !ok {
		return ledger.CashSession{}, fmt.Errorf("cash session %s: %w", id, shared.ErrNotFound)
	}
	return cloneSession(session), nil
}

func (v view) ListSessions(_ context.Context, f ledger.SessionFilter) ([]ledger.CashSession, int, error) {
	var out []ledger.CashSession
	for _, session := range v.data.sessions {
		if f.PointOfSaleID.Valid && session.PointOfSaleID != f.PointOfSaleID.UUID {
			continue
		}
		if len(f.Statuses) > 0 && !containsSessionStatus(f.Statuses, session.Status) {
			continue
		}
		if !f.From.IsZero() && session.OpenedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && session.OpenedAt.After(f.To) {
			continue
		}
		out = append(out, cloneSession(session))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.After(out[j].OpenedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	total := len(out)
	return paginate(out, f.Page, f.PerPage), total, nil
}

func paginate[T any](rows []T, page, perPage int) []T {
	if perPage <= 0 {
		return rows
	}
	start := shared.Offset(page, perPage)
	if start >= len(rows) {
		return nil
	}
	end := start + perPage
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func sameID(filter, value uuid.NullUUID) bool {
	if !filter.Valid {
		return true
	}
	return value.Valid && value.UUID == filter.UUID
}

func containsType(types []ledger.EntryType, t ledger.EntryType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

func containsStatus(statuses []ledger.Status, s ledger.Status) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func containsSessionStatus(statuses []ledger.SessionStatus, s ledger.SessionStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func cloneEntry(e ledger.Entry) ledger.Entry {
	if e.Lines != nil {
		e.Lines = append([]ledger.Line(nil), e.Lines...)
	}
	if meta, err := ledger.CloneMetadata(e.EntryType, e.Metadata); err == nil {
		e.Metadata = meta
	}
	return e
}

func cloneSession(s ledger.CashSession) ledger.CashSession {
	if s.ClosedAt != nil {
		at := *s.ClosedAt
		s.ClosedAt = &at
	}
	if s.ReconciledAt != nil {
		at := *s.ReconciledAt
		s.ReconciledAt = &at
	}
	return s
}

var _ ledger.Store = (*Store)(nil)
