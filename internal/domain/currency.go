// Package domain contains the core types for the coinarb monitor: currencies,
// currency pairs and their quotation algebra, quotes, trades, balances, and
// the interfaces implemented by the cache, store, and blob layers.
//
// All price and volume arithmetic uses shopspring/decimal; float64 never
// touches money so the three chained arbitrage legs stay exact.
package domain

import (
	"fmt"
	"strings"
)

// Currency is an uppercase short currency or asset code, e.g. "USD" or "BTC".
type Currency string

// NewCurrency normalizes a raw code to its canonical uppercase form.
func NewCurrency(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}

func (c Currency) String() string { return string(c) }

// CurrencyPair is a directional market quotation: one unit of Base costs
// `price` units of Quote. (EUR/USD 1.25 means one euro buys 1.25 dollars.)
// (A,B) and (B,A) are distinct values quoting the same market in opposite
// directions.
type CurrencyPair struct {
	Base  Currency `json:"base"`
	Quote Currency `json:"quote"`
}

// NewPair builds a pair from raw currency codes, normalizing both.
func NewPair(base, quote string) CurrencyPair {
	return CurrencyPair{Base: NewCurrency(base), Quote: NewCurrency(quote)}
}

// Contains reports whether c is one of the pair's two assets.
func (p CurrencyPair) Contains(c Currency) bool {
	return c == p.Base || c == p.Quote
}

// Other returns the pair asset that is not c. It returns ErrInvalidCurrency
// if c is in neither side of the pair.
func (p CurrencyPair) Other(c Currency) (Currency, error) {
	switch c {
	case p.Base:
		return p.Quote, nil
	case p.Quote:
		return p.Base, nil
	default:
		return "", fmt.Errorf("pair %s: currency %s: %w", p, c, ErrInvalidCurrency)
	}
}

// String renders the canonical bracketed form, e.g. "<EUR/USD>".
func (p CurrencyPair) String() string {
	return fmt.Sprintf("<%s/%s>", p.Base, p.Quote)
}

// Direct renders base-first with the given separator, e.g. "EURUSD" or "EUR/USD".
func (p CurrencyPair) Direct(separator string) string {
	return string(p.Base) + separator + string(p.Quote)
}

// Indirect renders quote-first with the given separator, e.g. "USDEUR".
func (p CurrencyPair) Indirect(separator string) string {
	return string(p.Quote) + separator + string(p.Base)
}
