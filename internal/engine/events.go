package engine

import (
	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/book"
)

// MatchEvent describes one settled allocation.
type MatchEvent struct {
	InstrumentID string          `json:"instrument_id"`
	BuyOrderID   string          `json:"buy_order_id"`
	SellOrderID  string          `json:"sell_order_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Price        string          `json:"price"`
	Gross        string          `json:"gross"`
}

// SkipEvent describes an allocation abandoned because the buyer could
// not fund it. The order stays resting.
type SkipEvent struct {
	InstrumentID string          `json:"instrument_id"`
	BuyOrderID   string          `json:"buy_order_id"`
	SellOrderID  string          `json:"sell_order_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Reason       string          `json:"reason"`
}

// EventSink receives engine events. Delivery is fire-and-forget: sink
// failures must never roll back a settlement, so implementations should
// not block and cannot return errors.
type EventSink interface {
	OrderFilled(snap book.Snapshot)
	OrderCancelled(snap book.Snapshot)
	MatchSettled(ev MatchEvent)
	AllocationSkipped(ev SkipEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) OrderFilled(book.Snapshot)    {}
func (NopSink) OrderCancelled(book.Snapshot) {}
func (NopSink) MatchSettled(MatchEvent)      {}
func (NopSink) AllocationSkipped(SkipEvent)  {}
