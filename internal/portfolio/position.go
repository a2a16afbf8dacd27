// Package portfolio tracks per-user, per-instrument share holdings with a
// quantity-weighted average cost basis. Positions are mutated only through
// Acquire and Dispose, which preserve the non-negative quantity invariant.
package portfolio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/money"
)

var (
	// ErrInsufficientShares is returned when a disposal exceeds the held
	// quantity. During settlement this indicates corrupted book state and
	// is escalated by the caller, not retried.
	ErrInsufficientShares = errors.New("portfolio: insufficient shares")

	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("portfolio: quantity must be positive")
)

// Position is one user's holding in one instrument.
type Position struct {
	ownerID      string
	instrumentID string

	mu        sync.Mutex
	quantity  decimal.Decimal
	avgCost   money.Money
	updatedAt time.Time
}

// Snapshot is a read-only copy of a position's state.
type Snapshot struct {
	OwnerID      string          `json:"owner_id"`
	InstrumentID string          `json:"instrument_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	AvgCost      string          `json:"avg_cost"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewPosition creates an empty position. The currency fixes the cost
// basis currency for the life of the position.
func NewPosition(ownerID, instrumentID, currency string) *Position {
	return &Position{
		ownerID:      ownerID,
		instrumentID: instrumentID,
		quantity:     decimal.Zero,
		avgCost:      money.Zero(currency),
		updatedAt:    time.Now().UTC(),
	}
}

// OwnerID returns the owning user's id.
func (p *Position) OwnerID() string { return p.ownerID }

// InstrumentID returns the instrument id.
func (p *Position) InstrumentID() string { return p.instrumentID }

// Quantity returns the held quantity.
func (p *Position) Quantity() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quantity
}

// AvgCost returns the weighted-average acquisition cost per share.
func (p *Position) AvgCost() money.Money {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.avgCost
}

// Snapshot returns a read-only copy of the position.
func (p *Position) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		OwnerID:      p.ownerID,
		InstrumentID: p.instrumentID,
		Quantity:     p.quantity,
		AvgCost:      p.avgCost.String(),
		UpdatedAt:    p.updatedAt,
	}
}

// Acquire adds quantity shares bought at pricePerUnit and recomputes the
// average cost as the quantity-weighted mean:
//
//	(heldQty*heldAvg + qty*price) / (heldQty + qty)
func (p *Position) Acquire(quantity decimal.Decimal, pricePerUnit money.Money) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	heldValue, err := p.avgCost.MulQuantity(p.quantity)
	if err != nil {
		return err
	}
	addedValue, err := pricePerUnit.MulQuantity(quantity)
	if err != nil {
		return err
	}
	totalValue, err := heldValue.Add(addedValue)
	if err != nil {
		return err
	}
	newQty := p.quantity.Add(quantity)
	newAvg, err := totalValue.Div(newQty)
	if err != nil {
		return err
	}

	p.quantity = newQty
	p.avgCost = newAvg
	p.updatedAt = time.Now().UTC()
	return nil
}

// Dispose removes quantity shares. The average cost is unchanged:
// realized gain/loss is computed by the caller from the pre-disposal
// average, not stored here.
func (p *Position) Dispose(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidQuantity, quantity)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if quantity.GreaterThan(p.quantity) {
		return fmt.Errorf("%w: held %s, disposing %s", ErrInsufficientShares, p.quantity, quantity)
	}
	p.quantity = p.quantity.Sub(quantity)
	p.updatedAt = time.Now().UTC()
	return nil
}

// IsFlat reports whether the position holds no shares.
func (p *Position) IsFlat() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.quantity.IsZero()
}
