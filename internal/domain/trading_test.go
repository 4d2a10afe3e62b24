package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testQuote(bidPrice, bidVolume, askPrice, askVolume string) Quote {
	bid := NewPriceVolume(bidPrice, bidVolume)
	ask := NewPriceVolume(askPrice, askVolume)
	return Quote{
		Timestamp: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		Bid:       &bid,
		Ask:       &ask,
		Source:    "test",
	}
}

func assertDecimal(t *testing.T, name string, got, want decimal.Decimal) {
	t.Helper()
	if !got.Equal(want) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestBuySellBalances(t *testing.T) {
	pair := NewPair("eur", "usd")
	quote := testQuote("1.15", "100", "1.16", "100")

	balance, trade, err := pair.Buy(quote, dec("1"), true)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	assertDecimal(t, "EUR after buy", balance["EUR"], dec("1"))
	assertDecimal(t, "USD after buy", balance["USD"], dec("-1.16"))
	if trade.Direction != Buy {
		t.Errorf("direction = %s, want buy", trade.Direction)
	}
	if !trade.Filled() {
		t.Errorf("fill ratio = %s, want 1", trade.FillRatio)
	}

	balance, trade, err = pair.Sell(quote, dec("1"), true)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	assertDecimal(t, "EUR after sell", balance["EUR"], dec("-1"))
	assertDecimal(t, "USD after sell", balance["USD"], dec("1.15"))
	assertDecimal(t, "sell quantity", trade.Quantity, dec("-1"))
}

func TestChainedLegBalances(t *testing.T) {
	pairEURCHF := NewPair("eur", "chf")
	pairCHFUSD := NewPair("chf", "usd")
	pairEURUSD := NewPair("eur", "usd")
	quoteEURCHF := testQuote("1.14", "10000", "1.15", "10000")
	quoteCHFUSD := testQuote("1.04", "10000", "1.05", "10000")
	quoteEURUSD := testQuote("1.17", "10000", "1.18", "10000")

	balanceLeg1, tradeLeg1, err := pairEURCHF.Sell(quoteEURCHF, dec("1000"), true)
	if err != nil {
		t.Fatalf("leg 1: %v", err)
	}
	balanceLeg2, tradeLeg2, err := pairCHFUSD.Sell(quoteCHFUSD, balanceLeg1["CHF"], true)
	if err != nil {
		t.Fatalf("leg 2: %v", err)
	}
	balanceLeg3, tradeLeg3, err := pairEURUSD.BuyCurrency(pairEURCHF.Base, dec("1000"), quoteEURUSD, true)
	if err != nil {
		t.Fatalf("leg 3: %v", err)
	}

	assertDecimal(t, "leg 1 quantity", tradeLeg1.Quantity, dec("-1000"))
	assertDecimal(t, "leg 1 price", tradeLeg1.Price, dec("1.14"))
	assertDecimal(t, "leg 2 quantity", tradeLeg2.Quantity, dec("-1140"))
	assertDecimal(t, "leg 2 price", tradeLeg2.Price, dec("1.04"))
	assertDecimal(t, "leg 3 quantity", tradeLeg3.Quantity, dec("1000"))
	assertDecimal(t, "leg 3 price", tradeLeg3.Price, dec("1.18"))

	assertDecimal(t, "leg 1 EUR", balanceLeg1["EUR"], dec("-1000"))
	assertDecimal(t, "leg 1 CHF", balanceLeg1["CHF"], dec("1140"))
	assertDecimal(t, "leg 2 CHF", balanceLeg2["CHF"], dec("-1140"))
	assertDecimal(t, "leg 2 USD", balanceLeg2["USD"], dec("1185.6"))
	assertDecimal(t, "leg 3 EUR", balanceLeg3["EUR"], dec("1000"))
	assertDecimal(t, "leg 3 USD", balanceLeg3["USD"], dec("-1180"))
}

// Buying then selling the same volume at the same quote must cost the spread
// and nothing else: zero base-currency exposure, non-positive quote balance.
func TestRoundTripSpreadCost(t *testing.T) {
	pair := NewPair("btc", "usd")
	quote := testQuote("6500", "50", "6501.5", "50")
	volume := dec("2.5")

	bought, _, err := pair.Buy(quote, volume, true)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	sold, _, err := pair.Sell(quote, volume, true)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}

	net := Balance{}.Merge(bought).Merge(sold)
	assertDecimal(t, "net BTC", net["BTC"], decimal.Zero)
	if net["USD"].Sign() > 0 {
		t.Errorf("net USD = %s, want <= 0 (spread cost)", net["USD"])
	}
}

func TestLiquidityCapping(t *testing.T) {
	pair := NewPair("eos", "usd")
	quote := testQuote("5.26", "40", "5.27", "30")

	balance, trade, err := pair.Buy(quote, dec("100"), false)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	assertDecimal(t, "capped EOS", balance["EOS"], dec("30"))
	assertDecimal(t, "fill ratio", trade.FillRatio, dec("0.3"))
	if trade.Filled() {
		t.Error("capped trade reported as filled")
	}

	_, trade, err = pair.Sell(quote, dec("100"), false)
	if err != nil {
		t.Fatalf("Sell: %v", err)
	}
	assertDecimal(t, "sell fill ratio", trade.FillRatio, dec("0.4"))
}

func TestZeroVolumeIsTriviallyFilled(t *testing.T) {
	pair := NewPair("eur", "usd")
	quote := testQuote("1.15", "100", "1.16", "100")

	balance, trade, err := pair.Buy(quote, decimal.Zero, false)
	if err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if !trade.Filled() {
		t.Errorf("fill ratio = %s, want 1", trade.FillRatio)
	}
	assertDecimal(t, "EUR", balance["EUR"], decimal.Zero)
	assertDecimal(t, "USD", balance["USD"], decimal.Zero)
}

func TestIndirectQuotation(t *testing.T) {
	pair := NewPair("usd", "eur")
	quote := testQuote("0.845", "10000", "0.855", "10000")

	// Buying EUR through USD/EUR sells USD at the bid.
	balance, trade, err := pair.BuyCurrency(NewCurrency("eur"), dec("1000"), quote, true)
	if err != nil {
		t.Fatalf("BuyCurrency: %v", err)
	}
	if trade.Direction != Sell {
		t.Errorf("direction = %s, want sell", trade.Direction)
	}
	assertDecimal(t, "EUR", balance["EUR"], dec("1000").Div(dec("0.845")).Mul(dec("0.845")))
	wantUSD := dec("1000").Div(dec("0.845")).Neg()
	assertDecimal(t, "USD", balance["USD"], wantUSD)
}

func TestCurrencyOutsidePair(t *testing.T) {
	pair := NewPair("eur", "usd")
	quote := testQuote("1.15", "100", "1.16", "100")

	if _, _, err := pair.BuyCurrency(NewCurrency("gbp"), dec("1"), quote, true); !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("BuyCurrency error = %v, want ErrInvalidCurrency", err)
	}
	if _, _, err := pair.SellCurrency(NewCurrency("gbp"), dec("1"), quote, true); !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("SellCurrency error = %v, want ErrInvalidCurrency", err)
	}
}

func TestIncompleteQuoteRejected(t *testing.T) {
	pair := NewPair("eur", "usd")
	bid := NewPriceVolume("1.15", "100")
	quote := Quote{Timestamp: time.Now(), Bid: &bid}

	if quote.IsComplete() {
		t.Error("one-sided quote reported complete")
	}
	if _, _, err := pair.Buy(quote, dec("1"), true); !errors.Is(err, ErrIncompleteQuote) {
		t.Errorf("Buy error = %v, want ErrIncompleteQuote", err)
	}
	if _, _, err := pair.Sell(quote, dec("1"), true); err != nil {
		t.Errorf("Sell with bid present: %v", err)
	}
}

func TestConvertSigns(t *testing.T) {
	pair := NewPair("usd", "gbp")
	quote := testQuote("0.66", "100", "0.67", "100")

	// Selling 0.67 GBP yields 1 USD.
	got, err := pair.Convert(NewCurrency("gbp"), dec("0.67"), quote)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	assertDecimal(t, "sell 0.67 GBP", got, dec("1"))

	// Buying back 0.66 GBP costs 1 USD.
	got, err = pair.Convert(NewCurrency("gbp"), dec("-0.66"), quote)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	assertDecimal(t, "buy 0.66 GBP", got, dec("-1"))

	if _, err := pair.Convert(NewCurrency("jpy"), dec("1"), quote); !errors.Is(err, ErrInvalidCurrency) {
		t.Errorf("Convert error = %v, want ErrInvalidCurrency", err)
	}
}
