package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/portfolio"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for order and position lookups. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back.
//
// Transaction queries always hit the primary: they are audit reads, rare
// and required to be exact.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) SaveOrder(ctx context.Context, snap book.Snapshot) error {
	if err := s.primary.SaveOrder(ctx, snap); err != nil {
		return err
	}
	s.cacheOrder(ctx, snap)
	return nil
}

func (s *CachedStore) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	return s.primary.InsertTransaction(ctx, tx)
}

func (s *CachedStore) SavePosition(ctx context.Context, snap portfolio.Snapshot) error {
	if err := s.primary.SavePosition(ctx, snap); err != nil {
		return err
	}
	// Invalidate the owner's position list; next read re-populates.
	s.rdb.Del(ctx, positionsKey(snap.OwnerID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetOrder(ctx context.Context, id string) (*book.Snapshot, error) {
	data, err := s.rdb.Get(ctx, orderKey(id)).Bytes()
	if err == nil {
		var snap book.Snapshot
		if json.Unmarshal(data, &snap) == nil {
			return &snap, nil
		}
	}

	snap, err := s.primary.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cacheOrder(ctx, *snap)
	return snap, nil
}

func (s *CachedStore) GetOrdersByOwner(ctx context.Context, ownerID string) ([]book.Snapshot, error) {
	return s.primary.GetOrdersByOwner(ctx, ownerID)
}

func (s *CachedStore) GetTransactionsByAccount(ctx context.Context, accountID string) ([]ledger.Transaction, error) {
	return s.primary.GetTransactionsByAccount(ctx, accountID)
}

func (s *CachedStore) GetPositionsByOwner(ctx context.Context, ownerID string) ([]portfolio.Snapshot, error) {
	data, err := s.rdb.Get(ctx, positionsKey(ownerID)).Bytes()
	if err == nil {
		var snaps []portfolio.Snapshot
		if json.Unmarshal(data, &snaps) == nil {
			return snaps, nil
		}
	}

	snaps, err := s.primary.GetPositionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(snaps); err == nil {
		s.rdb.Set(ctx, positionsKey(ownerID), payload, s.ttl)
	}
	return snaps, nil
}

func (s *CachedStore) cacheOrder(ctx context.Context, snap book.Snapshot) {
	if payload, err := json.Marshal(snap); err == nil {
		s.rdb.Set(ctx, orderKey(snap.ID), payload, s.ttl)
	}
}

func orderKey(id string) string          { return "order:" + id }
func positionsKey(ownerID string) string { return "positions:" + ownerID }
