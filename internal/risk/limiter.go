// Package risk enforces admission-time limits on order flow: how many
// orders one owner may have resting, and how much notional value those
// orders may represent per instrument. Limits apply before an order is
// admitted; they never touch resting liquidity.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/money"
)

var (
	// ErrOpenOrderLimitExceeded is returned when an owner already has the
	// maximum number of resting orders on the instrument.
	ErrOpenOrderLimitExceeded = errors.New("risk: open order limit exceeded")

	// ErrNotionalLimitExceeded is returned when admitting an order would
	// push the owner's resting notional on the instrument past the cap.
	ErrNotionalLimitExceeded = errors.New("risk: notional exposure limit exceeded")
)

// Limiter validates order admissions against per-owner limits.
type Limiter struct {
	// MaxOpenOrders is the maximum resting orders per owner per
	// instrument. Zero disables the check.
	MaxOpenOrders int

	// MaxNotional is the maximum resting notional (Σ remaining × limit)
	// per owner per instrument. A zero amount disables the check.
	MaxNotional money.Money
}

// NewLimiter creates a limiter with the given caps.
func NewLimiter(maxOpenOrders int, maxNotional money.Money) *Limiter {
	return &Limiter{MaxOpenOrders: maxOpenOrders, MaxNotional: maxNotional}
}

// CheckAdmission validates whether the incoming order respects the
// owner's limits, given the owner's orders already resting on the book.
func (l *Limiter) CheckAdmission(incoming *book.Order, resting []*book.Order) error {
	ownerResting := 0
	notional := decimal.Zero
	for _, o := range resting {
		if o.OwnerID != incoming.OwnerID {
			continue
		}
		ownerResting++
		notional = notional.Add(o.Remaining.Mul(o.LimitPrice.Amount()))
	}

	if l.MaxOpenOrders > 0 && ownerResting >= l.MaxOpenOrders {
		return ErrOpenOrderLimitExceeded
	}

	if l.MaxNotional.IsPositive() {
		incomingNotional := incoming.Remaining.Mul(incoming.LimitPrice.Amount())
		if notional.Add(incomingNotional).GreaterThan(l.MaxNotional.Amount()) {
			return ErrNotionalLimitExceeded
		}
	}

	return nil
}
