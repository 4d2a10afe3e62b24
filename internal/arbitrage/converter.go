package arbitrage

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

// Converter prices amounts of a foreign currency in a domestic one, used to
// settle residual balances into a reference currency. Quotes come from the
// supplied source on every call.
type Converter struct {
	domestic domain.Currency
	foreign  domain.Currency
	source   domain.QuoteSource
}

// NewConverter returns a converter for the (domestic, foreign) market.
func NewConverter(domestic, foreign domain.Currency, source domain.QuoteSource) *Converter {
	return &Converter{domestic: domestic, foreign: foreign, source: source}
}

// Exchange converts a signed amount of currency into domestic terms.
// Positive amounts are sold, negative amounts bought. Domestic amounts pass
// through unchanged; any currency other than the two held ones fails with
// ErrUnknownCurrency.
func (c *Converter) Exchange(currency domain.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	switch currency {
	case c.domestic:
		return amount, nil
	case c.foreign:
		pair := domain.CurrencyPair{Base: c.domestic, Quote: c.foreign}
		quote, err := c.source(pair)
		if err != nil {
			return decimal.Zero, fmt.Errorf("quote for %s: %w", pair, err)
		}
		return pair.Convert(currency, amount, quote)
	default:
		return decimal.Zero, fmt.Errorf("converter routes %s and %s, not %s: %w",
			c.domestic, c.foreign, currency, domain.ErrUnknownCurrency)
	}
}

// Sell prices the sale of a non-negative amount of currency.
func (c *Converter) Sell(currency domain.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("sell amount %s is negative: %w", amount, domain.ErrInvalidArgument)
	}
	return c.Exchange(currency, amount)
}

// Buy prices the purchase of a non-negative amount of currency.
func (c *Converter) Buy(currency domain.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("buy amount %s is negative: %w", amount, domain.ErrInvalidArgument)
	}
	return c.Exchange(currency, amount.Neg())
}
