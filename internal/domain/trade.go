package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side of a trade.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Trade records one executed (simulated) trade. Quantity is signed: positive
// for a buy of the pair's base currency, negative for a sell. FillRatio is
// executed volume over requested volume, in [0,1]; 1 means fully filled.
type Trade struct {
	Direction Direction       `json:"direction"`
	Pair      CurrencyPair    `json:"pair"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	FillRatio decimal.Decimal `json:"fill_ratio"`
}

// Filled reports whether the trade executed its full requested volume.
func (t Trade) Filled() bool {
	return t.FillRatio.Equal(decimal.NewFromInt(1))
}

// Balance maps each currency to a signed amount. Every trade operation
// produces one; summing the balances of several legs gives net exposure.
type Balance map[Currency]decimal.Decimal

// Add accumulates amount onto the entry for c.
func (b Balance) Add(c Currency, amount decimal.Decimal) {
	b[c] = b[c].Add(amount)
}

// Merge accumulates every entry of other into b and returns b.
func (b Balance) Merge(other Balance) Balance {
	for c, amount := range other {
		b.Add(c, amount)
	}
	return b
}

// Opportunity is one detected triangular-arbitrage occurrence: executing the
// three legs of Strategy with Notional units of the first leg's base currency
// leaves Residual units of Residual's currency on the table.
type Opportunity struct {
	ID               string          `json:"id"`
	Strategy         string          `json:"strategy"` // canonical descriptor, e.g. "[<EUR/CHF>,<CHF/USD>,<USD/EUR>]"
	Notional         decimal.Decimal `json:"notional"`
	Residual         decimal.Decimal `json:"residual"`
	ResidualCurrency Currency        `json:"residual_currency"`
	Trades           []Trade         `json:"trades"`
	DetectedAt       time.Time       `json:"detected_at"`
}
