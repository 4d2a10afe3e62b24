package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// execute computes the balance and trade record for filling volume units of
// the base currency against one quote side. Unless unlimitedLiquidity is set,
// the executed volume is capped by the liquidity available at that side.
// A zero requested volume is treated as trivially filled: fill ratio 1,
// zero balances.
func (p CurrencyPair) execute(dir Direction, side PriceVolume, volume decimal.Decimal, unlimitedLiquidity bool) (Balance, Trade) {
	executable := volume
	if !unlimitedLiquidity && side.Volume.LessThan(volume) {
		executable = side.Volume
	}

	fillRatio := one
	if volume.Sign() != 0 {
		fillRatio = executable.Div(volume)
	}

	balance := Balance{}
	quantity := executable
	if dir == Buy {
		balance[p.Base] = executable
		balance[p.Quote] = executable.Mul(side.Price).Neg()
	} else {
		balance[p.Base] = executable.Neg()
		balance[p.Quote] = executable.Mul(side.Price)
		quantity = executable.Neg()
	}

	trade := Trade{
		Direction: dir,
		Pair:      p,
		Quantity:  quantity,
		Price:     side.Price,
		FillRatio: fillRatio,
	}
	return balance, trade
}

// Buy purchases volume units of the base currency at the quote's ask side.
//
//	quote = EUR/USD <1.15, 1.16>, volume = 1  =>  EUR +1, USD -1.16
func (p CurrencyPair) Buy(quote Quote, volume decimal.Decimal, unlimitedLiquidity bool) (Balance, Trade, error) {
	if quote.Ask == nil {
		return nil, Trade{}, fmt.Errorf("buy %s: ask side: %w", p, ErrIncompleteQuote)
	}
	balance, trade := p.execute(Buy, *quote.Ask, volume, unlimitedLiquidity)
	return balance, trade, nil
}

// Sell disposes of volume units of the base currency at the quote's bid side.
// The requested volume is taken as an absolute value.
//
//	quote = EUR/USD <1.15, 1.16>, volume = 1  =>  EUR -1, USD +1.15
func (p CurrencyPair) Sell(quote Quote, volume decimal.Decimal, unlimitedLiquidity bool) (Balance, Trade, error) {
	if quote.Bid == nil {
		return nil, Trade{}, fmt.Errorf("sell %s: bid side: %w", p, ErrIncompleteQuote)
	}
	balance, trade := p.execute(Sell, *quote.Bid, volume.Abs(), unlimitedLiquidity)
	return balance, trade, nil
}

// BuyCurrency acquires volume units of the given currency, whichever side of
// the pair it sits on. Buying the base currency is a direct Buy; buying the
// quote currency is the indirect quotation; the volume is converted into
// base terms through the bid price and executed as a Sell of the base.
func (p CurrencyPair) BuyCurrency(currency Currency, volume decimal.Decimal, quote Quote, unlimitedLiquidity bool) (Balance, Trade, error) {
	switch currency {
	case p.Base:
		return p.Buy(quote, volume, unlimitedLiquidity)
	case p.Quote:
		if quote.Bid == nil {
			return nil, Trade{}, fmt.Errorf("buy %s via %s: bid side: %w", currency, p, ErrIncompleteQuote)
		}
		if quote.Bid.Price.IsZero() {
			return nil, Trade{}, fmt.Errorf("buy %s via %s: zero bid price: %w", currency, p, ErrInvalidArgument)
		}
		target := volume.Div(quote.Bid.Price)
		return p.Sell(quote, target, unlimitedLiquidity)
	default:
		return nil, Trade{}, fmt.Errorf("buy: pair %s: currency %s: %w", p, currency, ErrInvalidCurrency)
	}
}

// SellCurrency disposes of volume units of the given currency; the mirror of
// BuyCurrency. Selling the quote currency converts through the ask price and
// executes as a Buy of the base.
func (p CurrencyPair) SellCurrency(currency Currency, volume decimal.Decimal, quote Quote, unlimitedLiquidity bool) (Balance, Trade, error) {
	switch currency {
	case p.Base:
		return p.Sell(quote, volume, unlimitedLiquidity)
	case p.Quote:
		if quote.Ask == nil {
			return nil, Trade{}, fmt.Errorf("sell %s via %s: ask side: %w", currency, p, ErrIncompleteQuote)
		}
		if quote.Ask.Price.IsZero() {
			return nil, Trade{}, fmt.Errorf("sell %s via %s: zero ask price: %w", currency, p, ErrInvalidArgument)
		}
		target := volume.Div(quote.Ask.Price)
		return p.Buy(quote, target, unlimitedLiquidity)
	default:
		return nil, Trade{}, fmt.Errorf("sell: pair %s: currency %s: %w", p, currency, ErrInvalidCurrency)
	}
}

// Convert prices a signed residual amount of currency into the pair's other
// asset. A positive amount is treated as selling the currency, a negative
// amount as buying it back. Liquidity is unlimited because this step prices
// the residual rather than executing it.
func (p CurrencyPair) Convert(currency Currency, amount decimal.Decimal, quote Quote) (decimal.Decimal, error) {
	other, err := p.Other(currency)
	if err != nil {
		return decimal.Zero, err
	}

	var balance Balance
	if amount.Sign() >= 0 {
		balance, _, err = p.SellCurrency(currency, amount, quote, true)
	} else {
		balance, _, err = p.BuyCurrency(currency, amount.Neg(), quote, true)
	}
	if err != nil {
		return decimal.Zero, err
	}
	return balance[other], nil
}
