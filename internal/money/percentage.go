package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PercentageScale is the fixed precision for percentage values.
const PercentageScale int32 = 4

var hundred = decimal.NewFromInt(100)

// Percentage is a rate in [0, 100] stored at four decimal places. Used
// for interest and fee rates.
type Percentage struct {
	value decimal.Decimal
}

// NewPercentage creates a Percentage, rejecting values outside [0, 100].
func NewPercentage(value decimal.Decimal) (Percentage, error) {
	if value.IsNegative() || value.GreaterThan(hundred) {
		return Percentage{}, fmt.Errorf("money: percentage %s outside [0, 100]", value)
	}
	return Percentage{value: value.Round(PercentageScale)}, nil
}

// MustPercentage is NewPercentage, panicking on error.
func MustPercentage(value decimal.Decimal) Percentage {
	p, err := NewPercentage(value)
	if err != nil {
		panic(err)
	}
	return p
}

// Value returns the percentage as a decimal in [0, 100].
func (p Percentage) Value() decimal.Decimal { return p.value }

// ApplyTo returns p percent of the given amount, rounded to the minor unit.
func (p Percentage) ApplyTo(m Money) Money {
	applied := m.amount.Mul(p.value).DivRound(hundred, MinorUnitScale)
	return Money{amount: applied, currency: m.currency}
}

// String renders the percentage, e.g. "2.5000%".
func (p Percentage) String() string {
	return p.value.StringFixed(PercentageScale) + "%"
}
