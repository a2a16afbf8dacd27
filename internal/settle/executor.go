// Package settle executes the settlement of a matching run: for each
// allocation of buyer demand to seller supply at the clearing price it
// moves cash between ledger accounts, collects fees, updates portfolio
// positions, and advances order state, atomically per allocation.
package settle

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/ledger"
	"github.com/veribank/trading-engine/internal/money"
	"github.com/veribank/trading-engine/internal/portfolio"
	"github.com/veribank/trading-engine/internal/pricing"
)

// ErrBookCorrupted is returned when settlement observes state that the
// admission invariants rule out, e.g. a seller without enough shares.
// The caller halts the instrument; this is never a user error.
var ErrBookCorrupted = errors.New("settle: book state corrupted")

// Allocation pairs buyer demand with seller supply for one settlement
// step. Partial fills mean a single order can appear in several
// allocations within one run.
type Allocation struct {
	Buyer    *book.Order
	Seller   *book.Order
	Quantity decimal.Decimal
}

// Settlement is one successfully executed allocation.
type Settlement struct {
	Allocation
	Price        money.Money
	Gross        money.Money
	BuyFee       money.Money
	SellFee      money.Money
	Transactions []*ledger.Transaction
}

// Skip records an allocation abandoned because the buyer could not fund
// it. The buyer's order keeps its remaining quantity and stays resting;
// only its participation in this run ends.
type Skip struct {
	Allocation
	Transaction *ledger.Transaction // FAILED buyer-debit record
	Reason      error
}

// Report summarizes a settlement run.
type Report struct {
	Settled []Settlement
	Skipped []Skip
}

// Executor settles matching runs. It is the only trading-path writer of
// ledger accounts and portfolio positions.
type Executor struct {
	resolver   ledger.AccountResolver
	positions  *portfolio.Holder
	feeAccount *ledger.Account
	newID      func() string
}

// NewExecutor creates an executor. Fees collected from both sides are
// credited to feeAccount (engine revenue). newID supplies transaction ids.
func NewExecutor(resolver ledger.AccountResolver, positions *portfolio.Holder, feeAccount *ledger.Account, newID func() string) *Executor {
	return &Executor{
		resolver:   resolver,
		positions:  positions,
		feeAccount: feeAccount,
		newID:      newID,
	}
}

// Run settles the volume discovered by the pricer against the given
// resting orders (buys in descending-price priority, sells ascending).
//
// Each allocation is settled independently: a buyer that cannot fund an
// allocation is skipped for the rest of the run without rolling back
// earlier allocations. A corrupted-book observation aborts the run with
// ErrBookCorrupted and the partial report.
func (e *Executor) Run(res pricing.Result, buys, sells []*book.Order) (*Report, error) {
	report := &Report{}
	if !res.Matchable() {
		return report, nil
	}

	buyRuns := eligibleRuns(buys, res, true)
	sellRuns := eligibleRuns(sells, res, false)

	bi, si := 0, 0
	for bi < len(buyRuns) && si < len(sellRuns) {
		buyer, seller := buyRuns[bi].order, sellRuns[si].order
		qty := decimal.Min(buyRuns[bi].quantity, sellRuns[si].quantity)

		settlement, err := e.settleAllocation(Allocation{Buyer: buyer, Seller: seller, Quantity: qty}, res.Price)
		if err != nil {
			var skip *Skip
			if errors.As(err, &skip) {
				report.Skipped = append(report.Skipped, *skip)
				buyRuns[bi].quantity = decimal.Zero // buyer is out of this run
				bi++
				continue
			}
			return report, err
		}

		report.Settled = append(report.Settled, *settlement)
		buyRuns[bi].quantity = buyRuns[bi].quantity.Sub(qty)
		sellRuns[si].quantity = sellRuns[si].quantity.Sub(qty)
		if !buyRuns[bi].quantity.IsPositive() {
			bi++
		}
		if !sellRuns[si].quantity.IsPositive() {
			si++
		}
	}

	return report, nil
}

// orderRun tracks how much of an order may still fill within this run.
type orderRun struct {
	order    *book.Order
	quantity decimal.Decimal
}

// eligibleRuns selects the orders that participate at the clearing price
// (buys with limit ≥ p*, sells with limit ≤ p*) in book priority order,
// capping cumulative quantity at the executable volume.
func eligibleRuns(orders []*book.Order, res pricing.Result, buySide bool) []orderRun {
	var runs []orderRun
	left := res.Volume
	p := res.Price.Amount()

	for _, o := range orders {
		if !left.IsPositive() {
			break
		}
		limit := o.LimitPrice.Amount()
		if buySide && limit.LessThan(p) {
			continue
		}
		if !buySide && limit.GreaterThan(p) {
			continue
		}
		qty := decimal.Min(o.Remaining, left)
		if !qty.IsPositive() {
			continue
		}
		runs = append(runs, orderRun{order: o, quantity: qty})
		left = left.Sub(qty)
	}
	return runs
}

// settleAllocation performs one atomic settlement step. Returns a *Skip
// error when the buyer cannot fund the allocation.
func (e *Executor) settleAllocation(alloc Allocation, price money.Money) (*Settlement, error) {
	buyerAcc, err := e.resolver.ResolveAccount(alloc.Buyer.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: buyer account for %s: %v", ErrBookCorrupted, alloc.Buyer.OwnerID, err)
	}
	sellerAcc, err := e.resolver.ResolveAccount(alloc.Seller.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: seller account for %s: %v", ErrBookCorrupted, alloc.Seller.OwnerID, err)
	}

	gross, err := price.MulQuantity(alloc.Quantity)
	if err != nil {
		return nil, err
	}

	// Fees are fixed per order and charged on first fill. The seller fee
	// is deducted from proceeds, never from the seller's balance; it is
	// deferred if the gross of this fill cannot cover it.
	buyFee := money.Zero(price.Currency())
	if !alloc.Buyer.FeeCharged {
		buyFee = alloc.Buyer.Fee
	}
	sellFee := money.Zero(price.Currency())
	if !alloc.Seller.FeeCharged {
		if c, cmpErr := alloc.Seller.Fee.Cmp(gross); cmpErr == nil && c <= 0 {
			sellFee = alloc.Seller.Fee
		}
	}

	totalDebit, err := gross.Add(buyFee)
	if err != nil {
		return nil, err
	}
	netCredit, err := gross.Sub(sellFee)
	if err != nil {
		return nil, err
	}

	unlock := ledger.LockPair(buyerAcc, sellerAcc)
	if err := buyerAcc.DebitLocked(totalDebit); err != nil {
		unlock()
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			failed := ledger.NewTransaction(e.newID(), buyerAcc.ID(), sellerAcc.ID(), totalDebit,
				ledger.KindTradeDebit, debitDescription(alloc, price))
			failed.Fail()
			slog.Warn("allocation skipped, buyer underfunded",
				"buy_order", alloc.Buyer.ID,
				"sell_order", alloc.Seller.ID,
				"qty", alloc.Quantity.String(),
				"needed", totalDebit.String(),
			)
			return nil, &Skip{Allocation: alloc, Transaction: failed, Reason: err}
		}
		return nil, err
	}
	if err := sellerAcc.CreditLocked(netCredit); err != nil {
		unlock()
		return nil, fmt.Errorf("%w: seller credit: %v", ErrBookCorrupted, err)
	}
	unlock()

	totalFees, err := buyFee.Add(sellFee)
	if err != nil {
		return nil, err
	}
	if totalFees.IsPositive() {
		if err := e.feeAccount.Credit(totalFees); err != nil {
			return nil, err
		}
	}

	// Position updates. A seller without enough shares means the book
	// admitted an order it should not have. Fatal, not a user error.
	buyerPos := e.positions.GetOrCreate(alloc.Buyer.OwnerID, alloc.Buyer.InstrumentID)
	if err := buyerPos.Acquire(alloc.Quantity, price); err != nil {
		return nil, fmt.Errorf("%w: buyer acquire: %v", ErrBookCorrupted, err)
	}
	sellerPos := e.positions.Get(alloc.Seller.OwnerID, alloc.Seller.InstrumentID)
	if sellerPos == nil {
		return nil, fmt.Errorf("%w: seller %s has no position in %s",
			ErrBookCorrupted, alloc.Seller.OwnerID, alloc.Seller.InstrumentID)
	}
	if err := sellerPos.Dispose(alloc.Quantity); err != nil {
		return nil, fmt.Errorf("%w: seller dispose: %v", ErrBookCorrupted, err)
	}
	e.positions.Prune(alloc.Seller.OwnerID, alloc.Seller.InstrumentID)

	if err := alloc.Buyer.Fill(alloc.Quantity); err != nil {
		return nil, fmt.Errorf("%w: buyer fill: %v", ErrBookCorrupted, err)
	}
	if err := alloc.Seller.Fill(alloc.Quantity); err != nil {
		return nil, fmt.Errorf("%w: seller fill: %v", ErrBookCorrupted, err)
	}
	if buyFee.IsPositive() {
		alloc.Buyer.ChargeFee()
	}
	if sellFee.IsPositive() {
		alloc.Seller.ChargeFee()
	}

	txs := e.recordTransactions(alloc, price, buyerAcc, sellerAcc, totalDebit, netCredit, buyFee, sellFee)

	slog.Info("allocation settled",
		"buy_order", alloc.Buyer.ID,
		"sell_order", alloc.Seller.ID,
		"qty", alloc.Quantity.String(),
		"price", price.String(),
		"gross", gross.String(),
	)

	return &Settlement{
		Allocation:   alloc,
		Price:        price,
		Gross:        gross,
		BuyFee:       buyFee,
		SellFee:      sellFee,
		Transactions: txs,
	}, nil
}

func (e *Executor) recordTransactions(alloc Allocation, price money.Money, buyerAcc, sellerAcc *ledger.Account, totalDebit, netCredit, buyFee, sellFee money.Money) []*ledger.Transaction {
	txs := []*ledger.Transaction{
		ledger.NewTransaction(e.newID(), buyerAcc.ID(), sellerAcc.ID(), totalDebit,
			ledger.KindTradeDebit, debitDescription(alloc, price)),
		ledger.NewTransaction(e.newID(), buyerAcc.ID(), sellerAcc.ID(), netCredit,
			ledger.KindTradeCredit, creditDescription(alloc, price)),
	}
	if buyFee.IsPositive() {
		txs = append(txs, ledger.NewTransaction(e.newID(), buyerAcc.ID(), e.feeAccount.ID(), buyFee,
			ledger.KindFee, "order fee "+alloc.Buyer.ID))
	}
	if sellFee.IsPositive() {
		txs = append(txs, ledger.NewTransaction(e.newID(), sellerAcc.ID(), e.feeAccount.ID(), sellFee,
			ledger.KindFee, "order fee "+alloc.Seller.ID))
	}
	for _, tx := range txs {
		tx.Complete()
	}
	return txs
}

func debitDescription(alloc Allocation, price money.Money) string {
	return fmt.Sprintf("buy %s %s @ %s", alloc.Quantity, alloc.Buyer.InstrumentID, price)
}

func creditDescription(alloc Allocation, price money.Money) string {
	return fmt.Sprintf("sell %s %s @ %s", alloc.Quantity, alloc.Seller.InstrumentID, price)
}

// Error implements error so a *Skip can travel through the settlement
// call as a typed failure.
func (s *Skip) Error() string {
	return fmt.Sprintf("settle: allocation skipped for order %s: %v", s.Buyer.ID, s.Reason)
}
