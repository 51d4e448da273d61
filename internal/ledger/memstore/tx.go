package memstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/numbering"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

// txStore implements ledger.Tx over the private copy of one transaction.
type txStore struct {
	view
	store *Store
}

func (t *txStore) fail(op string) error {
	if err := t.store.takeFailure(op); err != nil {
		return shared.PersistenceError(op, err)
	}
	return nil
}

func (t *txStore) InsertEntry(_ context.Context, e ledger.Entry) error {
	if err := t.fail("InsertEntry"); err != nil {
		return err
	}
	if _, exists := t.data.entries[e.ID]; exists {
		return fmt.Errorf("ledger entry %s: %w", e.ID, shared.ErrConflict)
	}
	if err := t.checkUnique(e); err != nil {
		return err
	}
	t.data.nextSeq++
	t.data.entries[e.ID] = entryRow{entry: cloneEntry(e), seq: t.data.nextSeq}
	return nil
}

func (t *txStore) UpdateEntry(_ context.Context, e ledger.Entry) error {
	if err := t.fail("UpdateEntry"); err != nil {
		return err
	}
	row, ok := t.data.entries[e.ID]
	if !ok {
		return fmt.Errorf("update ledger entry %s: %w", e.ID, shared.ErrNotFound)
	}
	if err := t.checkUnique(e); err != nil {
		return err
	}
	stored := row.entry
	stored.Status = e.Status
	stored.DocumentNumber = e.DocumentNumber
	stored.Notes = e.Notes
	stored.Metadata = e.Metadata
	stored.UpdatedAt = e.UpdatedAt
	stored.Lines = e.Lines
	t.data.entries[e.ID] = entryRow{entry: cloneEntry(stored), seq: row.seq}
	return nil
}

func (t *txStore) checkUnique(e ledger.Entry) error {
	for id, row := range t.data.entries {
		if id == e.ID {
			continue
		}
		other := row.entry
		if e.DocumentNumber != "" && other.EntryType == e.EntryType && other.DocumentNumber == e.DocumentNumber {
			return fmt.Errorf("%s %s: %w", e.EntryType, e.DocumentNumber, ledger.ErrDuplicateDocumentNumber)
		}
		if e.RelatedEntryID.Valid && other.RelatedEntryID.Valid && other.RelatedEntryID.UUID == e.RelatedEntryID.UUID {
			return fmt.Errorf("entry %s already reversed: %w", e.RelatedEntryID.UUID, shared.ErrConflict)
		}
	}
	return nil
}

func (t *txStore) LockEntry(ctx context.Context, id uuid.UUID) (ledger.Entry, error) {
	return t.GetEntry(ctx, id)
}

func (t *txStore) NextSequence(_ context.Context, entryType string) (int64, error) {
	if err := t.fail("NextSequence"); err != nil {
		return 0, err
	}
	last, ok := t.data.sequences[entryType]
	if !ok {
		for _, row := range t.data.entries {
			if string(row.entry.EntryType) != entryType {
				continue
			}
			if row.entry.DocumentNumber == "" {
				continue
			}
			seq, err := numbering.Parse(entryType, row.entry.DocumentNumber)
			if err != nil {
				return 0, fmt.Errorf("seed %s sequence: %w", entryType, err)
			}
			if seq > last {
				last = seq
			}
		}
	}
	last++
	t.data.sequences[entryType] = last
	return last, nil
}

func (t *txStore) InsertSession(_ context.Context, s ledger.CashSession) error {
	if err := t.fail("InsertSession"); err != nil {
		return err
	}
	for _, other := range t.data.sessions {
		if other.ID == s.ID {
			return fmt.Errorf("cash session %s: %w", s.ID, shared.ErrConflict)
		}
		if s.Status == ledger.SessionOpen && other.Status == ledger.SessionOpen && other.PointOfSaleID == s.PointOfSaleID {
			return fmt.Errorf("point of sale %s already has an open cash session: %w", s.PointOfSaleID, shared.ErrConflict)
		}
	}
	t.data.sessions[s.ID] = cloneSession(s)
	return nil
}

func (t *txStore) UpdateSession(_ context.Context, s ledger.CashSession) error {
	if err := t.fail("UpdateSession"); err != nil {
		return err
	}
	if _, ok := t.data.sessions[s.ID]; !ok {
		return fmt.Errorf("update cash session %s: %w", s.ID, shared.ErrNotFound)
	}
	t.data.sessions[s.ID] = cloneSession(s)
	return nil
}

func (t *txStore) LockSession(ctx context.Context, id uuid.UUID) (ledger.CashSession, error) {
	return t.GetSession(ctx, id)
}

func (t *txStore) FindOpenSession(_ context.Context, pointOfSaleID uuid.UUID) (ledger.CashSession, error) {
	for _, s := range t.data.sessions {
		if s.PointOfSaleID == pointOfSaleID && s.Status == ledger.SessionOpen {
			return cloneSession(s), nil
		}
	}
	return ledger.CashSession{}, fmt.Errorf("open cash session for %s: %w", pointOfSaleID, shared.ErrNotFound)
}

func (t *txStore) GetBalanceForUpdate(_ context.Context, storageID, productID uuid.UUID) (inventory.Balance, error) {
	b, ok := t.data.balances[stockKey{storageID, productID}]
	if !ok {
		return inventory.Balance{}, inventory.ErrBalanceNotFound
	}
	return b, nil
}

func (t *txStore) UpsertBalance(_ context.Context, b inventory.Balance) error {
	if err := t.fail("UpsertBalance"); err != nil {
		return err
	}
	t.data.balances[stockKey{b.StorageID, b.ProductID}] = b
	return nil
}

func (t *txStore) InsertMovement(_ context.Context, p inventory.Posting) error {
	if err := t.fail("InsertMovement"); err != nil {
		return err
	}
	t.data.movements = append(t.data.movements, p)
	return nil
}

var _ ledger.Tx = (*txStore)(nil)
