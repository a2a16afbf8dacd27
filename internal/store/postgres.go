package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/portfolio"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Quantities are stored as NUMERIC for exact decimal precision; rendered
// monetary amounts ("100.00 EUR") are stored as TEXT.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SaveOrder(ctx context.Context, snap book.Snapshot) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, owner_id, instrument_id, side, quantity, limit_price, remaining, fee, status, submitted_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7::NUMERIC, $8, $9, $10)
		 ON CONFLICT (id) DO UPDATE SET remaining = EXCLUDED.remaining, status = EXCLUDED.status`,
		snap.ID, snap.OwnerID, snap.InstrumentID, string(snap.Side),
		snap.Quantity.String(), snap.LimitPrice, snap.Remaining.String(), snap.Fee,
		string(snap.Status), snap.SubmittedAt,
	)
	return err
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*book.Snapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, instrument_id, side, quantity::TEXT, limit_price, remaining::TEXT, fee, status, submitted_at
		 FROM orders WHERE id = $1`, id)

	snap, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return snap, nil
}

func (s *PostgresStore) GetOrdersByOwner(ctx context.Context, ownerID string) ([]book.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, instrument_id, side, quantity::TEXT, limit_price, remaining::TEXT, fee, status, submitted_at
		 FROM orders WHERE owner_id = $1 ORDER BY submitted_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []book.Snapshot
	for rows.Next() {
		snap, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, *snap)
	}
	return snaps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*book.Snapshot, error) {
	var snap book.Snapshot
	var side, status, quantity, remaining string

	if err := row.Scan(&snap.ID, &snap.OwnerID, &snap.InstrumentID, &side,
		&quantity, &snap.LimitPrice, &remaining, &snap.Fee,
		&status, &snap.SubmittedAt); err != nil {
		return nil, err
	}
	snap.Side = book.Side(side)
	snap.Status = book.Status(status)
	snap.Quantity, _ = decimal.NewFromString(quantity)
	snap.Remaining, _ = decimal.NewFromString(remaining)
	return &snap, nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *ledger.Transaction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, source_account, dest_account, amount, kind, status, description, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tx.ID, tx.SourceAccount, tx.DestAccount, tx.AmountStr,
		string(tx.Kind), string(tx.Status), tx.Description, tx.CreatedAt, tx.ResolvedAt,
	)
	return err
}

func (s *PostgresStore) GetTransactionsByAccount(ctx context.Context, accountID string) ([]ledger.Transaction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_account, dest_account, amount, kind, status, description, created_at, resolved_at
		 FROM transactions
		 WHERE source_account = $1 OR dest_account = $1
		 ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		var tx ledger.Transaction
		var kind, status string
		if err := rows.Scan(&tx.ID, &tx.SourceAccount, &tx.DestAccount, &tx.AmountStr,
			&kind, &status, &tx.Description, &tx.CreatedAt, &tx.ResolvedAt); err != nil {
			return nil, err
		}
		tx.Kind = ledger.TransactionKind(kind)
		tx.Status = ledger.TransactionStatus(status)
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (s *PostgresStore) SavePosition(ctx context.Context, snap portfolio.Snapshot) error {
	if snap.Quantity.IsZero() {
		_, err := s.pool.Exec(ctx,
			`DELETE FROM positions WHERE owner_id = $1 AND instrument_id = $2`,
			snap.OwnerID, snap.InstrumentID)
		return err
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (owner_id, instrument_id, quantity, avg_cost, updated_at)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5)
		 ON CONFLICT (owner_id, instrument_id)
		 DO UPDATE SET quantity = EXCLUDED.quantity, avg_cost = EXCLUDED.avg_cost, updated_at = EXCLUDED.updated_at`,
		snap.OwnerID, snap.InstrumentID, snap.Quantity.String(), snap.AvgCost, snap.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) GetPositionsByOwner(ctx context.Context, ownerID string) ([]portfolio.Snapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT owner_id, instrument_id, quantity::TEXT, avg_cost, updated_at
		 FROM positions WHERE owner_id = $1`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []portfolio.Snapshot
	for rows.Next() {
		var snap portfolio.Snapshot
		var quantity string
		if err := rows.Scan(&snap.OwnerID, &snap.InstrumentID, &quantity, &snap.AvgCost, &snap.UpdatedAt); err != nil {
			return nil, err
		}
		snap.Quantity, _ = decimal.NewFromString(quantity)
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
