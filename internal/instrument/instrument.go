// Package instrument handles equity instrument symbol validation. An
// instrument is a tradable security identified by a short uppercase
// symbol, e.g. "VERI" or "BANC".
package instrument

import (
	"errors"
	"fmt"
	"regexp"
)

// symbolRegex matches 2–6 uppercase letters, optionally suffixed with a
// listing venue, e.g. "VERI" or "VERI.XETR".
var symbolRegex = regexp.MustCompile(`^[A-Z]{2,6}(\.[A-Z]{2,6})?$`)

// ErrInvalidSymbol is returned for malformed instrument symbols.
var ErrInvalidSymbol = errors.New("instrument: invalid symbol")

// Instrument describes one tradable security.
type Instrument struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Currency string `json:"currency"`
}

// ValidateSymbol checks that a symbol is well formed.
func ValidateSymbol(symbol string) error {
	if !symbolRegex.MatchString(symbol) {
		return fmt.Errorf("%w: %q (expected 2-6 uppercase letters, optional .VENUE suffix)",
			ErrInvalidSymbol, symbol)
	}
	return nil
}

// New creates an Instrument after validating the symbol.
func New(symbol, name, currency string) (*Instrument, error) {
	if err := ValidateSymbol(symbol); err != nil {
		return nil, err
	}
	return &Instrument{Symbol: symbol, Name: name, Currency: currency}, nil
}
