// Package money provides the exact fixed-precision value types underlying
// all engine arithmetic: Money (minor-unit amounts tagged with a currency)
// and Percentage (rates bounded to [0, 100]).
//
// All monetary values use shopspring/decimal, never float64.
package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrCurrencyMismatch is returned when an operation combines two Money
	// values of different currencies.
	ErrCurrencyMismatch = errors.New("money: currency mismatch")

	// ErrNegativeAmount is returned when an operation would produce a
	// negative amount, or when a negative amount is supplied where only
	// non-negative values are valid.
	ErrNegativeAmount = errors.New("money: amount must not be negative")

	// ErrInvalidCurrency is returned for an empty or malformed currency code.
	ErrInvalidCurrency = errors.New("money: invalid currency code")
)

// MinorUnitScale is the number of decimal places amounts are rounded to.
// All supported currencies use two minor-unit digits.
const MinorUnitScale int32 = 2

// Money is an exact non-negative monetary amount in a single currency.
// The zero value is not valid; construct with New or Zero.
type Money struct {
	amount   decimal.Decimal
	currency string
}

// New creates a Money from a decimal amount and ISO currency code.
// The amount is rounded half-up to the minor unit. Negative amounts
// are rejected.
func New(amount decimal.Decimal, currency string) (Money, error) {
	if len(currency) != 3 {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, currency)
	}
	if amount.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s", ErrNegativeAmount, amount)
	}
	return Money{amount: amount.Round(MinorUnitScale), currency: currency}, nil
}

// FromMinorUnits creates a Money from an integer count of minor units
// (e.g. cents). Negative counts are rejected.
func FromMinorUnits(units int64, currency string) (Money, error) {
	return New(decimal.New(units, -MinorUnitScale), currency)
}

// MustNew is New, panicking on error. For constants and tests only.
func MustNew(amount decimal.Decimal, currency string) Money {
	m, err := New(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns a zero amount in the given currency.
func Zero(currency string) Money {
	return Money{amount: decimal.Zero, currency: currency}
}

// Amount returns the decimal amount.
func (m Money) Amount() decimal.Decimal { return m.amount }

// Currency returns the ISO currency code.
func (m Money) Currency() string { return m.currency }

// MinorUnits returns the amount as an integer count of minor units.
func (m Money) MinorUnits() int64 {
	return m.amount.Shift(MinorUnitScale).IntPart()
}

// IsZero reports whether the amount is zero.
func (m Money) IsZero() bool { return m.amount.IsZero() }

// IsPositive reports whether the amount is strictly positive.
func (m Money) IsPositive() bool { return m.amount.IsPositive() }

// Equal reports whether two Money values have the same currency and amount.
func (m Money) Equal(other Money) bool {
	return m.currency == other.currency && m.amount.Equal(other.amount)
}

// Cmp compares two Money values of the same currency:
// -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.amount.Cmp(other.amount), nil
}

// LessThan reports whether m < other. Cross-currency comparison fails.
func (m Money) LessThan(other Money) (bool, error) {
	c, err := m.Cmp(other)
	return c < 0, err
}

// Add returns m + other. Fails on currency mismatch.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{amount: m.amount.Add(other.amount), currency: m.currency}, nil
}

// Sub returns m − other. Fails on currency mismatch or if the result
// would be negative: subtraction never produces a negative Money.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.amount.Sub(other.amount)
	if result.IsNegative() {
		return Money{}, fmt.Errorf("%w: %s - %s", ErrNegativeAmount, m.amount, other.amount)
	}
	return Money{amount: result, currency: m.currency}, nil
}

// MulQuantity returns m × qty rounded to the minor unit. Negative
// quantities are rejected.
func (m Money) MulQuantity(qty decimal.Decimal) (Money, error) {
	if qty.IsNegative() {
		return Money{}, fmt.Errorf("%w: quantity %s", ErrNegativeAmount, qty)
	}
	return Money{amount: m.amount.Mul(qty).Round(MinorUnitScale), currency: m.currency}, nil
}

// Div returns m ÷ divisor rounded to the minor unit. Non-positive
// divisors are rejected.
func (m Money) Div(divisor decimal.Decimal) (Money, error) {
	if !divisor.IsPositive() {
		return Money{}, fmt.Errorf("money: division by non-positive %s", divisor)
	}
	return Money{amount: m.amount.DivRound(divisor, MinorUnitScale), currency: m.currency}, nil
}

// String renders the amount with its currency code, e.g. "125.50 EUR".
func (m Money) String() string {
	return m.amount.StringFixed(MinorUnitScale) + " " + m.currency
}

func (m Money) sameCurrency(other Money) error {
	if m.currency != other.currency {
		return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, m.currency, other.currency)
	}
	return nil
}
