// Package book contains the order state machine and the per-instrument
// order book that holds resting buy and sell interest.
package book

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/money"
)

var (
	// ErrInvalidOrder is returned when an order fails admission
	// validation (non-positive quantity or limit price).
	ErrInvalidOrder = errors.New("book: invalid order")

	// ErrInvalidTransition is returned for an illegal order state change,
	// e.g. cancelling or filling a FILLED order.
	ErrInvalidTransition = errors.New("book: invalid state transition")
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the lifecycle state of an order.
//
//	PENDING → PARTIALLY_FILLED ⇄ (further fills) → FILLED
//	PENDING | PARTIALLY_FILLED → CANCELLED
//
// FILLED and CANCELLED are terminal.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
)

// Order is a single resting limit order. Owned exclusively by the Book
// until terminal; all mutation happens under the instrument's matching
// lock, so the struct itself carries no mutex.
type Order struct {
	ID           string
	OwnerID      string
	InstrumentID string
	Side         Side
	Quantity     decimal.Decimal // original quantity
	LimitPrice   money.Money
	Remaining    decimal.Decimal
	Fee          money.Money // fixed per order at creation, charged on first fill
	FeeCharged   bool
	Status       Status
	SubmittedAt  time.Time
	seq          uint64 // arrival sequence, assigned by the book on admission
}

// Snapshot is a read-only copy of an order's externally visible state.
type Snapshot struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	InstrumentID string          `json:"instrument_id"`
	Side         Side            `json:"side"`
	Quantity     decimal.Decimal `json:"quantity"`
	LimitPrice   string          `json:"limit_price"`
	Remaining    decimal.Decimal `json:"remaining"`
	Fee          string          `json:"fee"`
	Status       Status          `json:"status"`
	SubmittedAt  time.Time       `json:"submitted_at"`
}

/// NewOrder creates a PENDING order. The fee is fixed at creation: one
// currency unit per transaction side, charged in full on first fill.
func NewOrder(id, ownerID, instrumentID string, side Side, quantity decimal.Decimal, limitPrice money.Money) (*Order, error) {
	if side != SideBuy && side != SideSell {
		return nil, fmt.Errorf("%w: side %q", ErrInvalidOrder, side)
	}
	if !quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity %s", ErrInvalidOrder, quantity)
	}
	if !limitPrice.IsPositive() {
		return nil, fmt.Errorf("%w: limit price %s", ErrInvalidOrder, limitPrice)
	}

	fee, err := money.New(decimal.NewFromInt(1), limitPrice.Currency())
	if err != nil {
		return nil, err
	}

	return &Order{
		ID:           id,
		OwnerID:      ownerID,
		InstrumentID: instrumentID,
		Side:         side,
		Quantity:     quantity,
		LimitPrice:   limitPrice,
		Remaining:    quantity,
		Fee:          fee,
		Status:       StatusPending,
		SubmittedAt:  time.Now().UTC(),
	}, nil
}

// Fill decrements the remaining quantity by quantity and advances the
// status: FILLED once remaining reaches zero, PARTIALLY_FILLED otherwise.
// Filling a terminal order fails with ErrInvalidTransition.
func (o *Order) Fill(quantity decimal.Decimal) error {
	if o.Terminal() {
		return fmt.Errorf("%w: fill on %s order %s", ErrInvalidTransition, o.Status, o.ID)
	}
	if !quantity.IsPositive() || quantity.GreaterThan(o.Remaining) {
		return fmt.Errorf("%w: fill %s with remaining %s", ErrInvalidOrder, quantity, o.Remaining)
	}

	o.Remaining = o.Remaining.Sub(quantity)
	if o.Remaining.IsZero() {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
	return nil
}

// Cancel moves the order to CANCELLED, freezing the remaining quantity.
// Fails with ErrInvalidTransition on terminal orders.
func (o *Order) Cancel() error {
	if o.Terminal() {
		return fmt.Errorf("%w: cancel on %s order %s", ErrInvalidTransition, o.Status, o.ID)
	}
	o.Status = StatusCancelled
	return nil
}

// Terminal reports whether the order is FILLED or CANCELLED.
func (o *Order) Terminal() bool {
	return o.Status == StatusFilled || o.Status == StatusCancelled
}

// ChargeFee marks the fee as charged and returns it. Returns a zero fee
// on subsequent calls: the fee is charged once, on first fill, not
// pro-rated across partial fills.
func (o *Order) ChargeFee() money.Money {
	if o.FeeCharged {
		return money.Zero(o.Fee.Currency())
	}
	o.FeeCharged = true
	return o.Fee
}

// Snapshot returns a read-only copy of the order.
func (o *Order) Snapshot() Snapshot {
	return Snapshot{
		ID:           o.ID,
		OwnerID:      o.OwnerID,
		InstrumentID: o.InstrumentID,
		Side:         o.Side,
		Quantity:     o.Quantity,
		LimitPrice:   o.LimitPrice.String(),
		Remaining:    o.Remaining,
		Fee:          o.Fee.String(),
		Status:       o.Status,
		SubmittedAt:  o.SubmittedAt,
	}
}
