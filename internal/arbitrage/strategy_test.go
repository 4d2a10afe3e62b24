package arbitrage

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func pair(base, quote string) domain.CurrencyPair {
	return domain.NewPair(base, quote)
}

func quoteOf(bidPrice, bidVolume, askPrice, askVolume string) domain.Quote {
	bid := domain.NewPriceVolume(bidPrice, bidVolume)
	ask := domain.NewPriceVolume(askPrice, askVolume)
	return domain.Quote{
		Timestamp: time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC),
		Bid:       &bid,
		Ask:       &ask,
		Source:    "test",
	}
}

func sourceFor(quotes map[domain.CurrencyPair]domain.Quote) domain.QuoteSource {
	return func(p domain.CurrencyPair) (domain.Quote, error) {
		q, ok := quotes[p]
		if !ok {
			return domain.Quote{}, fmt.Errorf("no quote for %s: %w", p, domain.ErrNotFound)
		}
		return q, nil
	}
}

func TestConstructionRoles(t *testing.T) {
	s, err := New(pair("eur", "chf"), pair("chf", "usd"), pair("usd", "eur"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.CommonCurrency() != "CHF" {
		t.Errorf("common = %s, want CHF", s.CommonCurrency())
	}
	ind1, ind2 := s.IndirectPairs()
	if ind1 != pair("eur", "chf") || ind2 != pair("chf", "usd") {
		t.Errorf("indirect pairs = %s, %s", ind1, ind2)
	}
	if s.DirectPair() != pair("usd", "eur") {
		t.Errorf("direct = %s, want <USD/EUR>", s.DirectPair())
	}
	if got := s.String(); got != "[<EUR/CHF>,<CHF/USD>,<USD/EUR>]" {
		t.Errorf("String() = %s", got)
	}
	if s.HomeCurrency() != "USD" {
		t.Errorf("home = %s, want USD", s.HomeCurrency())
	}
}

func TestConstructionPermutationInvariance(t *testing.T) {
	pairs := []domain.CurrencyPair{pair("eur", "chf"), pair("chf", "usd"), pair("usd", "eur")}
	reference, err := New(pairs[0], pairs[1], pairs[2])
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	orderings := [][3]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, o := range orderings {
		s, err := New(pairs[o[0]], pairs[o[1]], pairs[o[2]])
		if err != nil {
			t.Fatalf("New(%v): %v", o, err)
		}
		if !s.Equal(reference) {
			t.Errorf("ordering %v yields %s, want %s", o, s, reference)
		}
	}
}

// Any triple of oriented pairs over three currencies with pairwise distinct
// asset sets must chain: indirect 1 quoted in the common currency, indirect 2
// based on it, direct pair free of it.
func TestConstructionChainInvariants(t *testing.T) {
	currencies := []string{"A", "B", "C"}
	var oriented []domain.CurrencyPair
	for _, x := range currencies {
		for _, y := range currencies {
			if x != y {
				oriented = append(oriented, pair(x, y))
			}
		}
	}
	assets := func(p domain.CurrencyPair) [2]domain.Currency {
		if p.Base < p.Quote {
			return [2]domain.Currency{p.Base, p.Quote}
		}
		return [2]domain.Currency{p.Quote, p.Base}
	}
	for _, p1 := range oriented {
		for _, p2 := range oriented {
			for _, p3 := range oriented {
				if assets(p1) == assets(p2) || assets(p1) == assets(p3) || assets(p2) == assets(p3) {
					continue
				}
				s, err := New(p1, p2, p3)
				if err != nil {
					t.Fatalf("New(%s,%s,%s): %v", p1, p2, p3, err)
				}
				ind1, ind2 := s.IndirectPairs()
				if ind1.Quote != ind2.Base {
					t.Errorf("%s: indirect pairs do not chain", s)
				}
				if s.DirectPair().Contains(s.CommonCurrency()) {
					t.Errorf("%s: direct pair contains common currency", s)
				}
			}
		}
	}
}

func TestConstructionRejectsDegenerateTriangles(t *testing.T) {
	cases := [][3]domain.CurrencyPair{
		{pair("eur", "chf"), pair("chf", "usd"), pair("gbp", "jpy")},
		{pair("eur", "chf"), pair("eur", "chf"), pair("chf", "usd")},
		{pair("eur", "chf"), pair("usd", "jpy"), pair("gbp", "aud")},
	}
	for _, c := range cases {
		if _, err := New(c[0], c[1], c[2]); !errors.Is(err, domain.ErrBadTriangle) {
			t.Errorf("New(%s,%s,%s) error = %v, want ErrBadTriangle", c[0], c[1], c[2], err)
		}
	}
}

func TestUpdateQuote(t *testing.T) {
	s, err := New(pair("eur", "chf"), pair("chf", "usd"), pair("usd", "eur"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.QuotesValid() {
		t.Error("quotes valid before any update")
	}
	if err := s.UpdateQuote(pair("gbp", "usd"), quoteOf("1", "1", "1", "1")); !errors.Is(err, domain.ErrInvalidPair) {
		t.Errorf("foreign pair error = %v, want ErrInvalidPair", err)
	}
	for _, p := range s.Pairs() {
		if err := s.UpdateQuote(p, quoteOf("1", "1", "1.1", "1")); err != nil {
			t.Fatalf("UpdateQuote(%s): %v", p, err)
		}
	}
	if !s.QuotesValid() {
		t.Error("quotes invalid after updating all pairs")
	}
}

func TestApplyArbitrageKnownTriangle(t *testing.T) {
	quotes := map[domain.CurrencyPair]domain.Quote{
		pair("eur", "chf"): quoteOf("1.14", "100", "1.15", "100"),
		pair("chf", "usd"): quoteOf("1.04", "100", "1.05", "100"),
		pair("usd", "eur"): quoteOf("0.845", "100", "0.855", "100"),
	}
	s, err := NewFromDescriptor("<eur/chf>,<chf/usd>,<usd/eur>", false)
	if err != nil {
		t.Fatalf("NewFromDescriptor: %v", err)
	}
	if err := s.UpdateQuotes(sourceFor(quotes)); err != nil {
		t.Fatalf("UpdateQuotes: %v", err)
	}
	legs, trades, err := s.ApplyArbitrage(dec("1"), true)
	if err != nil {
		t.Fatalf("ApplyArbitrage: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("len(trades) = %d, want 3", len(trades))
	}
	if !legs.Next["USD"].Equal(dec("1.1856")) {
		t.Errorf("next USD = %s, want 1.1856", legs.Next["USD"])
	}
	wantFinal := dec("-1.183432")
	if legs.Final["USD"].Sub(wantFinal).Abs().GreaterThan(dec("0.000001")) {
		t.Errorf("final USD = %s, want %s within 1e-6", legs.Final["USD"], wantFinal)
	}
	net := legs.Net()
	if !net["EUR"].IsZero() || !net["CHF"].IsZero() {
		t.Errorf("leaf/common residuals EUR=%s CHF=%s, want zero", net["EUR"], net["CHF"])
	}
	if net["USD"].Sign() <= 0 {
		t.Errorf("USD residual = %s, want positive edge", net["USD"])
	}
}

func TestApplyArbitrageNegativeEdge(t *testing.T) {
	quotes := map[domain.CurrencyPair]domain.Quote{
		pair("eur", "chf"): quoteOf("1.14", "100", "1.15", "100"),
		pair("chf", "usd"): quoteOf("1.04", "100", "1.05", "100"),
		pair("eur", "usd"): quoteOf("1.18", "100", "1.19", "100"),
	}
	s, err := NewFromDescriptor("[<eur/chf>,<chf/usd>,<eur/usd>]", false)
	if err != nil {
		t.Fatalf("NewFromDescriptor: %v", err)
	}
	if s.DirectPair() != pair("eur", "usd") {
		t.Fatalf("direct = %s, want <EUR/USD>", s.DirectPair())
	}
	if err := s.UpdateQuotes(sourceFor(quotes)); err != nil {
		t.Fatalf("UpdateQuotes: %v", err)
	}
	legs, _, err := s.ApplyArbitrage(dec("1"), true)
	if err != nil {
		t.Fatalf("ApplyArbitrage: %v", err)
	}
	net := legs.Net()
	if !net["USD"].Equal(dec("-0.0044")) {
		t.Errorf("net USD = %s, want -0.0044", net["USD"])
	}
	if !net["EUR"].IsZero() || !net["CHF"].IsZero() {
		t.Errorf("net EUR=%s CHF=%s, want zero", net["EUR"], net["CHF"])
	}
}

// A capped first leg must still leave every currency flat: the later legs
// work off executed amounts, not requested ones.
func TestApplyArbitragePartialFillConsistency(t *testing.T) {
	quotes := map[domain.CurrencyPair]domain.Quote{
		pair("eos", "btc"): quoteOf("0.00081", "50", "0.00082", "50"),
		pair("btc", "usd"): quoteOf("6500", "10", "6501", "10"),
		pair("eos", "usd"): quoteOf("5.264", "2000", "5.265", "2000"),
	}
	s, err := New(pair("eos", "usd"), pair("eos", "btc"), pair("btc", "usd"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.CommonCurrency() != "BTC" {
		t.Fatalf("common = %s, want BTC", s.CommonCurrency())
	}
	if err := s.UpdateQuotes(sourceFor(quotes)); err != nil {
		t.Fatalf("UpdateQuotes: %v", err)
	}
	legs, trades, err := s.ApplyArbitrage(dec("100"), false)
	if err != nil {
		t.Fatalf("ApplyArbitrage: %v", err)
	}
	if !trades[0].FillRatio.Equal(dec("0.5")) {
		t.Errorf("first leg fill ratio = %s, want 0.5", trades[0].FillRatio)
	}
	net := legs.Net()
	for _, c := range []domain.Currency{"EOS", "BTC", "USD"} {
		if !net[c].IsZero() {
			t.Errorf("net %s = %s, want 0", c, net[c])
		}
	}
}

func TestFindOpportunity(t *testing.T) {
	quotes := map[domain.CurrencyPair]domain.Quote{
		pair("eos", "btc"): quoteOf("0.00081", "50", "0.00082", "50"),
		pair("btc", "usd"): quoteOf("6500", "10", "6501", "10"),
		pair("eos", "usd"): quoteOf("5.264", "2000", "5.265", "2000"),
	}
	s, err := New(pair("eos", "usd"), pair("eos", "btc"), pair("btc", "usd"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Incomplete quotes short-circuit to no opportunity.
	trades, net, err := s.FindOpportunity(dec("100"), false, true)
	if err != nil || trades != nil || net != nil {
		t.Errorf("FindOpportunity before quotes = (%v, %v, %v), want nils", trades, net, err)
	}

	if err := s.UpdateQuotes(sourceFor(quotes)); err != nil {
		t.Fatalf("UpdateQuotes: %v", err)
	}

	// The first leg caps at 50 EOS; skipCapped rejects the whole triangle.
	trades, net, err = s.FindOpportunity(dec("100"), false, true)
	if err != nil || trades != nil || net != nil {
		t.Errorf("capped FindOpportunity = (%v, %v, %v), want nils", trades, net, err)
	}

	trades, net, err = s.FindOpportunity(dec("100"), false, false)
	if err != nil {
		t.Fatalf("FindOpportunity: %v", err)
	}
	if len(trades) != 3 || net == nil {
		t.Fatalf("trades = %v, net = %v", trades, net)
	}
}

func TestGenerateStrategies(t *testing.T) {
	universe := []domain.CurrencyPair{
		pair("btc", "eth"), pair("usd", "btc"), pair("usd", "eth"),
		pair("btc", "xmr"), pair("usd", "xmr"),
		pair("eth", "ltc"),
		pair("usd", "btc"), // duplicate
	}
	strategies := Generate(universe)
	want := []string{
		"[<USD/BTC>,<BTC/ETH>,<USD/ETH>]",
		"[<USD/BTC>,<BTC/XMR>,<USD/XMR>]",
	}
	if len(strategies) != len(want) {
		for _, s := range strategies {
			t.Logf("got %s", s)
		}
		t.Fatalf("len(strategies) = %d, want %d", len(strategies), len(want))
	}
	for i, w := range want {
		if got := strategies[i].String(); got != w {
			t.Errorf("strategy %d = %s, want %s", i, got, w)
		}
	}
}
