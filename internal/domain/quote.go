package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PriceVolume is one side of a quote: a price and the volume available at it.
type PriceVolume struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// NewPriceVolume builds a PriceVolume from string literals. It is mainly a
// convenience for fixtures and defaults; malformed input panics.
func NewPriceVolume(price, volume string) PriceVolume {
	return PriceVolume{
		Price:  decimal.RequireFromString(price),
		Volume: decimal.RequireFromString(volume),
	}
}

func (pv PriceVolume) String() string {
	return fmt.Sprintf("%s@%s", pv.Volume, pv.Price)
}

// Quote is a point-in-time best bid/ask for one pair. Either side may be
// absent while a feed is warming up; a crossed or stale quote is a valid
// value, not an error; staleness policy belongs to the caller.
type Quote struct {
	Timestamp time.Time
	Bid       *PriceVolume
	Ask       *PriceVolume
	Source    string
}

// IsComplete reports whether both sides of the quote are present.
func (q Quote) IsComplete() bool {
	return q.Bid != nil && q.Ask != nil
}

// QuoteSource supplies the current best bid/ask for a pair. Absence of data
// is modeled as an incomplete Quote, never as an error; the error return is
// reserved for transport failures.
type QuoteSource func(pair CurrencyPair) (Quote, error)
