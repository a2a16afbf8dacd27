package store

import (
	"context"
	"sync"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/portfolio"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu           sync.RWMutex
	orders       map[string]book.Snapshot
	transactions []ledger.Transaction
	positions    map[posKey]portfolio.Snapshot
}

type posKey struct {
	ownerID      string
	instrumentID string
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]book.Snapshot),
		positions: make(map[posKey]portfolio.Snapshot),
	}
}

func (s *MemoryStore) SaveOrder(_ context.Context, snap book.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[snap.ID] = snap
	return nil
}

func (s *MemoryStore) GetOrder(_ context.Context, id string) (*book.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := snap
	return &copy, nil
}

func (s *MemoryStore) GetOrdersByOwner(_ context.Context, ownerID string) ([]book.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []book.Snapshot
	for _, snap := range s.orders {
		if snap.OwnerID == ownerID {
			result = append(result, snap)
		}
	}
	return result, nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, *tx)
	return nil
}

func (s *MemoryStore) GetTransactionsByAccount(_ context.Context, accountID string) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []ledger.Transaction
	for _, tx := range s.transactions {
		if tx.SourceAccount == accountID || tx.DestAccount == accountID {
			result = append(result, tx)
		}
	}
	return result, nil
}

func (s *MemoryStore) SavePosition(_ context.Context, snap portfolio.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := posKey{snap.OwnerID, snap.InstrumentID}
	if snap.Quantity.IsZero() {
		delete(s.positions, key)
		return nil
	}
	s.positions[key] = snap
	return nil
}

func (s *MemoryStore) GetPositionsByOwner(_ context.Context, ownerID string) ([]portfolio.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []portfolio.Snapshot
	for key, snap := range s.positions {
		if key.ownerID == ownerID {
			result = append(result, snap)
		}
	}
	return result, nil
}
