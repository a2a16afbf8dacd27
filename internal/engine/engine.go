// Package engine ties order admission, equilibrium pricing, and
// settlement together behind the interface the rest of the platform
// calls. One Engine instance is constructed per process and passed by
// reference to callers; there is no global state.
//
// All admission, pricing, and settlement for a single instrument is
// serialized under that instrument's shard lock: exactly one matching
// run may be in progress per instrument, and a cancel can never race a
// settlement step for the same order. Operations on different
// instruments proceed concurrently; cross-instrument account safety
// comes from the ledger's ordered account locking.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/instrument"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/metrics"
	"github.com/veribank/trading-engine/internal/money"
	"github.com/veribank/trading-engine/internal/portfolio"
	"github.com/veribank/trading-engine/internal/pricing"
	"github.com/veribank/trading-engine/internal/risk"
	"github.com/veribank/trading-engine/internal/settle"
	"github.com/veribank/trading-engine/internal/store"
)

var (
	// ErrNotOwner is returned when a cancel request comes from someone
	// other than the order's owner.
	ErrNotOwner = errors.New("engine: not the order owner")

	// ErrOrderNotFound is returned for lookups of unknown order ids.
	ErrOrderNotFound = errors.New("engine: order not found")

	// ErrInstrumentHalted is returned for operations on an instrument
	// halted after an invariant violation. Trading resumes only through
	// an operator Resume.
	ErrInstrumentHalted = errors.New("engine: instrument halted")
)

// Engine is the order-matching and settlement engine. Construct with
// New; all collaborators are injected, none are global.
type Engine struct {
	resolver  ledger.AccountResolver
	positions *portfolio.Holder
	sink      store.Store
	events    EventSink
	limiter   *risk.Limiter
	executor  *settle.Executor
	currency  string

	mu         sync.RWMutex
	shards     map[string]*shard
	orderIndex map[string]string // order id → instrument id
}

// shard serializes all activity for one instrument.
type shard struct {
	mu     sync.Mutex
	book   *book.Book
	orders map[string]*book.Order // every order ever admitted, incl. terminal
	halted bool
}

// New constructs an Engine. The fee account collects per-order fees as
// engine revenue. Pass NopSink if no event consumer is wired.
func New(resolver ledger.AccountResolver, positions *portfolio.Holder, sink store.Store, events EventSink, limiter *risk.Limiter, feeAccount *ledger.Account, currency string) *Engine {
	return &Engine{
		resolver:   resolver,
		positions:  positions,
		sink:       sink,
		events:     events,
		limiter:    limiter,
		executor:   settle.NewExecutor(resolver, positions, feeAccount, uuid.NewString),
		currency:   currency,
		shards:     make(map[string]*shard),
		orderIndex: make(map[string]string),
	}
}

// Positions exposes the engine's position holder for read paths.
func (e *Engine) Positions() *portfolio.Holder { return e.positions }

// SubmitOrder validates and admits a limit order, then runs a matching
// cycle for the instrument. Returns the order id on admission; settlement
// outcomes are reported through events, not to the submitter.
func (e *Engine) SubmitOrder(ctx context.Context, ownerID, instrumentID string, side book.Side, quantity decimal.Decimal, limitPrice money.Money) (string, error) {
	if err := instrument.ValidateSymbol(instrumentID); err != nil {
		metrics.OrdersRejected.WithLabelValues("invalid_symbol").Inc()
		return "", fmt.Errorf("%w: %v", book.ErrInvalidOrder, err)
	}
	if _, err := e.resolver.ResolveAccount(ownerID); err != nil {
		metrics.OrdersRejected.WithLabelValues("unknown_account").Inc()
		return "", err
	}

	o, err := book.NewOrder(uuid.NewString(), ownerID, instrumentID, side, quantity, limitPrice)
	if err != nil {
		metrics.OrdersRejected.WithLabelValues("validation").Inc()
		return "", err
	}

	sh := e.shard(instrumentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.halted {
		return "", fmt.Errorf("%w: %s", ErrInstrumentHalted, instrumentID)
	}

	resting := append(sh.book.Buys(), sh.book.Sells()...)
	if err := e.limiter.CheckAdmission(o, resting); err != nil {
		metrics.OrdersRejected.WithLabelValues("risk_limit").Inc()
		return "", err
	}
	if side == book.SideSell {
		if err := e.checkSellable(sh, o); err != nil {
			metrics.OrdersRejected.WithLabelValues("insufficient_shares").Inc()
			return "", err
		}
	}

	if err := sh.book.Admit(o); err != nil {
		metrics.OrdersRejected.WithLabelValues("admission").Inc()
		return "", err
	}
	sh.orders[o.ID] = o

	e.mu.Lock()
	e.orderIndex[o.ID] = instrumentID
	e.mu.Unlock()

	metrics.OrdersAdmitted.WithLabelValues(string(side)).Inc()
	slog.Info("order admitted",
		"order", o.ID,
		"owner", ownerID,
		"instrument", instrumentID,
		"side", side,
		"qty", quantity.String(),
		"limit", limitPrice.String(),
	)

	e.runMatching(ctx, sh)
	return o.ID, nil
}

// checkSellable enforces that a seller holds enough shares to cover the
// new order plus everything they already have resting on the sell side.
// This is the admission guarantee that makes a settlement-time share
// shortfall a fatal invariant violation rather than a user error.
func (e *Engine) checkSellable(sh *shard, o *book.Order) error {
	pos := e.positions.Get(o.OwnerID, o.InstrumentID)
	held := decimal.Zero
	if pos != nil {
		held = pos.Quantity()
	}

	committed := o.Remaining
	for _, resting := range sh.book.Sells() {
		if resting.OwnerID == o.OwnerID {
			committed = committed.Add(resting.Remaining)
		}
	}
	if committed.GreaterThan(held) {
		return fmt.Errorf("%w: held %s, selling %s", portfolio.ErrInsufficientShares, held, committed)
	}
	return nil
}

// CancelOrder cancels a resting order on behalf of its owner. Taking the
// shard lock means a cancel either runs before a settlement step touches
// the order or strictly after it completes, never during.
func (e *Engine) CancelOrder(ctx context.Context, orderID, requesterID string) error {
	sh, o, err := e.lookupLocked(orderID)
	if err != nil {
		return err
	}
	defer sh.mu.Unlock()

	if o.OwnerID != requesterID {
		return fmt.Errorf("%w: order %s", ErrNotOwner, orderID)
	}
	if err := o.Cancel(); err != nil {
		return err
	}

	sh.book.Withdraw(orderID)
	e.updateRestingGauges(sh)
	metrics.OrdersCancelled.Inc()
	slog.Info("order cancelled", "order", orderID, "owner", requesterID)

	snap := o.Snapshot()
	e.persistOrder(ctx, snap)
	e.events.OrderCancelled(snap)
	return nil
}

// OrderStatus returns a snapshot of any order the engine has seen,
// resting or terminal.
func (e *Engine) OrderStatus(orderID string) (book.Snapshot, error) {
	sh, o, err := e.lookupLocked(orderID)
	if err != nil {
		return book.Snapshot{}, err
	}
	defer sh.mu.Unlock()
	return o.Snapshot(), nil
}

// Position returns the owner's holding in an instrument. An owner with
// no shares gets an empty snapshot, not an error.
func (e *Engine) Position(ownerID, instrumentID string) portfolio.Snapshot {
	pos := e.positions.Get(ownerID, instrumentID)
	if pos == nil {
		return portfolio.Snapshot{
			OwnerID:      ownerID,
			InstrumentID: instrumentID,
			Quantity:     decimal.Zero,
			AvgCost:      money.Zero(e.currency).String(),
		}
	}
	return pos.Snapshot()
}

// BookSnapshot returns the resting orders on both sides of an
// instrument's book, in priority order.
func (e *Engine) BookSnapshot(instrumentID string) (buys, sells []book.Snapshot) {
	sh := e.shard(instrumentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.book.SnapshotLevels()
}

// Halted reports whether an instrument is halted.
func (e *Engine) Halted(instrumentID string) bool {
	sh := e.shard(instrumentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.halted
}

// Resume lifts a halt after operator investigation.
func (e *Engine) Resume(instrumentID string) {
	sh := e.shard(instrumentID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.halted {
		sh.halted = false
		metrics.HaltedInstruments.Dec()
		slog.Info("instrument resumed", "instrument", instrumentID)
	}
}

// runMatching executes one matching cycle. Caller holds the shard lock.
func (e *Engine) runMatching(ctx context.Context, sh *shard) {
	start := time.Now()
	instrumentID := sh.book.InstrumentID()

	res := pricing.Equilibrium(sh.book.Buys(), sh.book.Sells())
	if !res.Matchable() {
		return
	}

	report, err := e.executor.Run(res, sh.book.Buys(), sh.book.Sells())
	e.applyReport(ctx, sh, res, report)

	if err != nil {
		// Corrupted book state: stop trading this instrument until an
		// operator investigates. Prior allocations in the run stand.
		sh.halted = true
		metrics.HaltedInstruments.Inc()
		slog.Error("matching halted on invariant violation",
			"instrument", instrumentID,
			"err", err,
		)
		return
	}

	metrics.MatchingRunLatency.WithLabelValues(instrumentID).Observe(time.Since(start).Seconds())
}

// applyReport removes filled orders from the book, persists outcomes,
// and emits events. Caller holds the shard lock.
func (e *Engine) applyReport(ctx context.Context, sh *shard, res pricing.Result, report *settle.Report) {
	instrumentID := sh.book.InstrumentID()

	for _, s := range report.Settled {
		metrics.AllocationsSettled.WithLabelValues(instrumentID).Inc()
		e.events.MatchSettled(MatchEvent{
			InstrumentID: instrumentID,
			BuyOrderID:   s.Buyer.ID,
			SellOrderID:  s.Seller.ID,
			Quantity:     s.Quantity,
			Price:        s.Price.String(),
			Gross:        s.Gross.String(),
		})

		for _, tx := range s.Transactions {
			e.persistTransaction(ctx, tx)
		}
		for _, o := range []*book.Order{s.Buyer, s.Seller} {
			if o.Terminal() {
				sh.book.Withdraw(o.ID)
			}
			snap := o.Snapshot()
			e.persistOrder(ctx, snap)
			if o.Status == book.StatusFilled {
				e.events.OrderFilled(snap)
			}
		}
		e.persistPosition(ctx, s.Buyer.OwnerID, instrumentID)
		e.persistPosition(ctx, s.Seller.OwnerID, instrumentID)
	}

	for _, sk := range report.Skipped {
		metrics.AllocationsSkipped.WithLabelValues(instrumentID).Inc()
		e.persistTransaction(ctx, sk.Transaction)
		e.events.AllocationSkipped(SkipEvent{
			InstrumentID: instrumentID,
			BuyOrderID:   sk.Buyer.ID,
			SellOrderID:  sk.Seller.ID,
			Quantity:     sk.Quantity,
			Reason:       sk.Reason.Error(),
		})
	}

	e.updateRestingGauges(sh)
}

func (e *Engine) updateRestingGauges(sh *shard) {
	id := sh.book.InstrumentID()
	metrics.RestingOrders.WithLabelValues(id, string(book.SideBuy)).Set(float64(len(sh.book.Buys())))
	metrics.RestingOrders.WithLabelValues(id, string(book.SideSell)).Set(float64(len(sh.book.Sells())))
}

// persistOrder hands an order snapshot to the storage layer. Persistence
// failures are logged, never propagated: settlements already applied to
// the ledger must not be rolled back by a storage hiccup.
func (e *Engine) persistOrder(ctx context.Context, snap book.Snapshot) {
	if err := e.sink.SaveOrder(ctx, snap); err != nil {
		slog.Error("order persistence failed", "order", snap.ID, "err", err)
	}
}

func (e *Engine) persistTransaction(ctx context.Context, tx *ledger.Transaction) {
	if err := e.sink.InsertTransaction(ctx, tx); err != nil {
		slog.Error("transaction persistence failed", "tx", tx.ID, "err", err)
	}
}

func (e *Engine) persistPosition(ctx context.Context, ownerID, instrumentID string) {
	snap := e.Position(ownerID, instrumentID)
	if err := e.sink.SavePosition(ctx, snap); err != nil {
		slog.Error("position persistence failed", "owner", ownerID, "instrument", instrumentID, "err", err)
	}
}

// shard returns the shard for an instrument, creating it on first use.
func (e *Engine) shard(instrumentID string) *shard {
	e.mu.RLock()
	sh := e.shards[instrumentID]
	e.mu.RUnlock()
	if sh != nil {
		return sh
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if sh = e.shards[instrumentID]; sh != nil {
		return sh
	}
	sh = &shard{
		book:   book.New(instrumentID),
		orders: make(map[string]*book.Order),
	}
	e.shards[instrumentID] = sh
	return sh
}

// lookupLocked finds an order and returns its shard with the lock held.
func (e *Engine) lookupLocked(orderID string) (*shard, *book.Order, error) {
	e.mu.RLock()
	instrumentID, ok := e.orderIndex[orderID]
	e.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	sh := e.shard(instrumentID)
	sh.mu.Lock()
	o := sh.orders[orderID]
	if o == nil {
		sh.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return sh, o, nil
}
