package book

import (
	"fmt"
	"sort"
)

// Book holds the resting orders for one instrument. Buys are kept sorted
// by descending limit price then ascending arrival; sells by ascending
// limit price then ascending arrival: price-then-time priority.
//
// The Book is not internally synchronized: the engine serializes all
// access per instrument.
type Book struct {
	instrumentID string
	buys         []*Order
	sells        []*Order
	byID         map[string]*Order
	nextSeq      uint64
}

// New creates an empty book for an instrument.
func New(instrumentID string) *Book {
	return &Book{
		instrumentID: instrumentID,
		byID:         make(map[string]*Order),
	}
}

// InstrumentID returns the instrument this book serves.
func (b *Book) InstrumentID() string { return b.instrumentID }

// Admit validates and inserts an order into the resting collection for
// its side. Rejects with ErrInvalidOrder on non-positive quantity or
// price, wrong instrument, or duplicate id.
func (b *Book) Admit(o *Order) error {
	if o.InstrumentID != b.instrumentID {
		return fmt.Errorf("%w: order %s is for instrument %s, book serves %s",
			ErrInvalidOrder, o.ID, o.InstrumentID, b.instrumentID)
	}
	if !o.Remaining.IsPositive() || !o.LimitPrice.IsPositive() {
		return fmt.Errorf("%w: quantity %s, price %s", ErrInvalidOrder, o.Remaining, o.LimitPrice)
	}
	if _, exists := b.byID[o.ID]; exists {
		return fmt.Errorf("%w: duplicate order id %s", ErrInvalidOrder, o.ID)
	}

	o.seq = b.nextSeq
	b.nextSeq++
	b.byID[o.ID] = o

	if o.Side == SideBuy {
		b.buys = insertSorted(b.buys, o, buyBefore)
	} else {
		b.sells = insertSorted(b.sells, o, sellBefore)
	}
	return nil
}

// Withdraw removes an order from the resting collections. No-op if the
// order is unknown or already removed; terminal orders are simply gone
// from the book.
func (b *Book) Withdraw(orderID string) {
	o, ok := b.byID[orderID]
	if !ok {
		return
	}
	delete(b.byID, orderID)
	if o.Side == SideBuy {
		b.buys = remove(b.buys, o)
	} else {
		b.sells = remove(b.sells, o)
	}
}

// Get returns the resting order with the given id, or nil.
func (b *Book) Get(orderID string) *Order {
	return b.byID[orderID]
}

// Buys returns the resting buy orders in priority order (descending
// price, then arrival). The slice is a copy; the orders are live.
func (b *Book) Buys() []*Order {
	out := make([]*Order, len(b.buys))
	copy(out, b.buys)
	return out
}

// Sells returns the resting sell orders in priority order (ascending
// price, then arrival). The slice is a copy; the orders are live.
func (b *Book) Sells() []*Order {
	out := make([]*Order, len(b.sells))
	copy(out, b.sells)
	return out
}

// SnapshotLevels returns read-only order snapshots for both sides, in
// priority order. Used by the external HTTP surface.
func (b *Book) SnapshotLevels() (buys, sells []Snapshot) {
	for _, o := range b.buys {
		buys = append(buys, o.Snapshot())
	}
	for _, o := range b.sells {
		sells = append(sells, o.Snapshot())
	}
	return buys, sells
}

// buyBefore orders buys by descending limit price, then arrival.
func buyBefore(a, b *Order) bool {
	cmp := a.LimitPrice.Amount().Cmp(b.LimitPrice.Amount())
	if cmp != 0 {
		return cmp > 0
	}
	return a.seq < b.seq
}

// sellBefore orders sells by ascending limit price, then arrival.
func sellBefore(a, b *Order) bool {
	cmp := a.LimitPrice.Amount().Cmp(b.LimitPrice.Amount())
	if cmp != 0 {
		return cmp < 0
	}
	return a.seq < b.seq
}

func insertSorted(orders []*Order, o *Order, before func(a, b *Order) bool) []*Order {
	idx := sort.Search(len(orders), func(i int) bool {
		return before(o, orders[i])
	})
	orders = append(orders, nil)
	copy(orders[idx+1:], orders[idx:])
	orders[idx] = o
	return orders
}

func remove(orders []*Order, o *Order) []*Order {
	for i, cur := range orders {
		if cur == o {
			return append(orders[:i], orders[i+1:]...)
		}
	}
	return orders
}
