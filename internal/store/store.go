// Package store defines the persistence sink for the trading engine.
// The engine operates on in-memory representations and hands finalized
// state (terminal orders, resolved transactions, position snapshots)
// to a Store for durable storage. Implementations include PostgreSQL
// (source of truth), Redis (read-through cache), and in-memory (for
// testing).
package store

import (
	"context"
	"errors"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/portfolio"
)

// ErrNotFound is returned for lookups of records the store does not hold.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface. Store failures never roll back a
// settlement; the engine logs and continues.
type Store interface {
	// --- Orders (terminal and historical) ---

	// SaveOrder upserts an order snapshot. Called when an order reaches
	// a terminal state, and for audit snapshots of partial fills.
	SaveOrder(ctx context.Context, snap book.Snapshot) error

	// GetOrder retrieves an order snapshot by id.
	GetOrder(ctx context.Context, id string) (*book.Snapshot, error)

	// GetOrdersByOwner returns all stored orders for an owner.
	GetOrdersByOwner(ctx context.Context, ownerID string) ([]book.Snapshot, error)

	// --- Immutable transaction ledger ---

	// InsertTransaction appends a resolved transaction record.
	InsertTransaction(ctx context.Context, tx *ledger.Transaction) error

	// GetTransactionsByAccount returns all transactions touching an account.
	GetTransactionsByAccount(ctx context.Context, accountID string) ([]ledger.Transaction, error)

	// --- Position snapshots ---

	// SavePosition upserts the latest position snapshot for
	// (owner, instrument). A zero-quantity snapshot deletes the record.
	SavePosition(ctx context.Context, snap portfolio.Snapshot) error

	// GetPositionsByOwner returns the stored positions for an owner.
	GetPositionsByOwner(ctx context.Context, ownerID string) ([]portfolio.Snapshot, error)
}
