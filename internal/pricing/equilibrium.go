// Package pricing computes the double-auction clearing price for one
// instrument's resting orders: the single price at which the largest
// volume of buy and sell interest can execute.
package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/veribank/trading-engine/internal/book"
	"github.com/veribank/trading-engine/internal/money"
)

// Result is the outcome of an equilibrium computation. Volume zero means
// no demand/supply overlap (best bid below best ask) and no match.
type Result struct {
	Price  money.Money
	Volume decimal.Decimal
}

// Matchable reports whether any volume can execute.
func (r Result) Matchable() bool {
	return r.Volume.IsPositive()
}

// Equilibrium computes the clearing price and executable volume from the
// resting buys (descending price order) and sells (ascending price order)
// of one book.
//
// Candidate prices are the distinct limit prices present on either side.
// At each candidate p:
//
//	demand(p) = Σ remaining of buys  with limit ≥ p
//	supply(p) = Σ remaining of sells with limit ≤ p
//
// The clearing price maximizes min(demand, supply); ties prefer the
// smaller |demand − supply|, then the lower price (buyer-favoring).
func Equilibrium(buys, sells []*book.Order) Result {
	if len(buys) == 0 || len(sells) == 0 {
		return Result{}
	}
	currency := buys[0].LimitPrice.Currency()

	candidates := candidatePrices(buys, sells)

	var (
		bestPrice     decimal.Decimal
		bestVolume    decimal.Decimal
		bestImbalance decimal.Decimal
		found         bool
	)

	for _, p := range candidates {
		demand := cumulativeDemand(buys, p)
		supply := cumulativeSupply(sells, p)

		volume := decimal.Min(demand, supply)
		if !volume.IsPositive() {
			continue
		}
		imbalance := demand.Sub(supply).Abs()

		better := !found ||
			volume.GreaterThan(bestVolume) ||
			(volume.Equal(bestVolume) && imbalance.LessThan(bestImbalance)) ||
			(volume.Equal(bestVolume) && imbalance.Equal(bestImbalance) && p.LessThan(bestPrice))
		if better {
			bestPrice, bestVolume, bestImbalance = p, volume, imbalance
			found = true
		}
	}

	if !found {
		return Result{}
	}
	price, err := money.New(bestPrice, currency)
	if err != nil {
		return Result{}
	}
	return Result{Price: price, Volume: bestVolume}
}

// candidatePrices returns the distinct limit prices on both sides, in
// ascending order.
func candidatePrices(buys, sells []*book.Order) []decimal.Decimal {
	seen := make(map[string]bool)
	var prices []decimal.Decimal
	for _, o := range buys {
		p := o.LimitPrice.Amount()
		if key := p.String(); !seen[key] {
			seen[key] = true
			prices = append(prices, p)
		}
	}
	for _, o := range sells {
		p := o.LimitPrice.Amount()
		if key := p.String(); !seen[key] {
			seen[key] = true
			prices = append(prices, p)
		}
	}
	sort.Slice(prices, func(i, j int) bool {
		return prices[i].LessThan(prices[j])
	})
	return prices
}

func cumulativeDemand(buys []*book.Order, p decimal.Decimal) decimal.Decimal {
	demand := decimal.Zero
	for _, o := range buys {
		if o.LimitPrice.Amount().GreaterThanOrEqual(p) {
			demand = demand.Add(o.Remaining)
		}
	}
	return demand
}

func cumulativeSupply(sells []*book.Order, p decimal.Decimal) decimal.Decimal {
	supply := decimal.Zero
	for _, o := range sells {
		if o.LimitPrice.Amount().LessThanOrEqual(p) {
			supply = supply.Add(o.Remaining)
		}
	}
	return supply
}
