package memstore

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
)

// ListBalances implements inventory.BalanceReader.
func (s *Store) ListBalances(_ context.Context, storageID uuid.UUID) ([]inventory.Balance, error) {
	if err := s.takeFailure("ListBalances"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []inventory.Balance
	for k, b := range s.data.balances {
		if k.storage == storageID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out, nil
}

// StockCard implements inventory.BalanceReader.
func (s *Store) StockCard(_ context.Context, storageID, productID uuid.UUID) ([]inventory.Posting, error) {
	if err := s.takeFailure("StockCard"); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []inventory.Posting
	for _, p := range s.data.movements {
		if p.StorageID == storageID && p.ProductID == productID {
			out = append(out, p)
		}
	}
	return out, nil
}
