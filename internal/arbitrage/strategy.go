// Package arbitrage implements triangular-arbitrage strategies over
// currency-pair quotes: triangle construction, quote intake, simulated
// three-leg execution and opportunity detection.
package arbitrage

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

// Strategy is one triangular-arbitrage strategy over three pairs forming a
// closed triangle. The two indirect pairs chain leaf -> common -> leaf; the
// direct pair connects the two leaves and never touches the common currency.
// A strategy is long-lived: successive quote updates mutate it in place.
type Strategy struct {
	indirect1 domain.CurrencyPair
	indirect2 domain.CurrencyPair
	direct    domain.CurrencyPair
	common    domain.Currency
	quotes    map[domain.CurrencyPair]domain.Quote
}

// New builds a strategy from three pairwise distinct pairs covering exactly
// three currencies. Candidate common currencies (base currencies occurring
// exactly once across the three pairs) are tried in lexicographic order; the
// first one admitting a valid chain wins. Returns ErrBadTriangle when the
// pairs do not close into a triangle.
func New(p1, p2, p3 domain.CurrencyPair) (*Strategy, error) {
	pairs := [3]domain.CurrencyPair{p1, p2, p3}
	if p1 == p2 || p1 == p3 || p2 == p3 {
		return nil, fmt.Errorf("duplicate pair among %s, %s, %s: %w", p1, p2, p3, domain.ErrBadTriangle)
	}

	baseCount := make(map[domain.Currency]int)
	for _, p := range pairs {
		baseCount[p.Base]++
	}
	var candidates []domain.Currency
	for c, n := range baseCount {
		if n == 1 {
			candidates = append(candidates, c)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	for _, common := range candidates {
		s, ok := resolve(pairs, common)
		if ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("pairs %s, %s, %s do not form a triangle: %w", p1, p2, p3, domain.ErrBadTriangle)
}

// resolve assigns roles for a candidate common currency: the pair not
// containing it is the direct pair, the pair quoted in it is indirect 1 and
// the pair based on it is indirect 2.
func resolve(pairs [3]domain.CurrencyPair, common domain.Currency) (*Strategy, bool) {
	s := &Strategy{common: common, quotes: make(map[domain.CurrencyPair]domain.Quote)}
	var haveDirect, haveInd1, haveInd2 bool
	for _, p := range pairs {
		switch {
		case !p.Contains(common) && !haveDirect:
			s.direct, haveDirect = p, true
		case p.Quote == common && !haveInd1:
			s.indirect1, haveInd1 = p, true
		case p.Base == common && !haveInd2:
			s.indirect2, haveInd2 = p, true
		default:
			return nil, false
		}
	}
	if !haveDirect || !haveInd1 || !haveInd2 {
		return nil, false
	}
	if !s.direct.Contains(s.indirect1.Base) || !s.direct.Contains(s.indirect2.Quote) {
		return nil, false
	}
	return s, true
}

// NewFromDescriptor parses a strategy descriptor such as
// "[<EUR/CHF>,<CHF/USD>,<USD/EUR>]" and builds the strategy.
func NewFromDescriptor(descriptor string, indirect bool) (*Strategy, error) {
	pairs, err := domain.ParseStrategyPairs(descriptor, indirect)
	if err != nil {
		return nil, err
	}
	return New(pairs[0], pairs[1], pairs[2])
}

// DirectPair returns the pair connecting the two leaf currencies.
func (s *Strategy) DirectPair() domain.CurrencyPair { return s.direct }

// IndirectPairs returns the chained pairs: the first is quoted in the common
// currency, the second based on it.
func (s *Strategy) IndirectPairs() (domain.CurrencyPair, domain.CurrencyPair) {
	return s.indirect1, s.indirect2
}

// CommonCurrency returns the currency shared by the two indirect pairs.
func (s *Strategy) CommonCurrency() domain.Currency { return s.common }

// HomeCurrency returns the currency residual profit or loss settles in, the
// second indirect pair's quote currency.
func (s *Strategy) HomeCurrency() domain.Currency { return s.indirect2.Quote }

// Pairs returns the three pairs in canonical order: indirect 1, indirect 2,
// direct.
func (s *Strategy) Pairs() [3]domain.CurrencyPair {
	return [3]domain.CurrencyPair{s.indirect1, s.indirect2, s.direct}
}

// String renders the canonical descriptor, e.g. "[<EUR/CHF>,<CHF/USD>,<USD/EUR>]".
func (s *Strategy) String() string {
	return fmt.Sprintf("[%s,%s,%s]", s.indirect1, s.indirect2, s.direct)
}

// Equal reports whether both strategies cover the same triangle: same direct
// pair and the same indirect pairs regardless of labeling.
func (s *Strategy) Equal(other *Strategy) bool {
	if other == nil {
		return false
	}
	if s.direct != other.direct {
		return false
	}
	return (s.indirect1 == other.indirect1 && s.indirect2 == other.indirect2) ||
		(s.indirect1 == other.indirect2 && s.indirect2 == other.indirect1)
}

// Less orders strategies by their canonical descriptor.
func (s *Strategy) Less(other *Strategy) bool {
	return s.String() < other.String()
}

// UpdateQuote stores the latest quote for one of the strategy's pairs.
// Returns ErrInvalidPair for any other pair.
func (s *Strategy) UpdateQuote(pair domain.CurrencyPair, quote domain.Quote) error {
	if pair != s.direct && pair != s.indirect1 && pair != s.indirect2 {
		return fmt.Errorf("pair %s not part of strategy %s: %w", pair, s, domain.ErrInvalidPair)
	}
	s.quotes[pair] = quote
	return nil
}

// UpdateQuotes refreshes all three quotes through the given source.
func (s *Strategy) UpdateQuotes(load domain.QuoteSource) error {
	for _, pair := range s.Pairs() {
		quote, err := load(pair)
		if err != nil {
			return fmt.Errorf("load quote for %s: %w", pair, err)
		}
		s.quotes[pair] = quote
	}
	return nil
}

// QuotesValid reports whether all three pairs hold complete quotes.
func (s *Strategy) QuotesValid() bool {
	for _, pair := range s.Pairs() {
		if !s.quotes[pair].IsComplete() {
			return false
		}
	}
	return true
}

// Legs holds the per-leg balances of one simulated execution.
type Legs struct {
	Initial domain.Balance
	Next    domain.Balance
	Final   domain.Balance
}

// Net sums the three legs into a per-currency net exposure.
func (l Legs) Net() domain.Balance {
	return domain.Balance{}.Merge(l.Initial).Merge(l.Next).Merge(l.Final)
}

// ApplyArbitrage simulates the three legs with the stored quotes:
// sell initialAmount of the first indirect pair's base into the common
// currency, sell the proceeds through the second indirect pair, then buy the
// first leg's base back through the direct pair to close the loop. With
// unlimited liquidity the two leaf currencies and the common currency net to
// exactly zero; any residual in the home currency is the edge.
func (s *Strategy) ApplyArbitrage(initialAmount decimal.Decimal, unlimitedLiquidity bool) (Legs, []domain.Trade, error) {
	quoteInd1 := s.quotes[s.indirect1]
	quoteInd2 := s.quotes[s.indirect2]
	quoteDirect := s.quotes[s.direct]

	balanceInitial, tradeInitial, err := s.indirect1.Sell(quoteInd1, initialAmount, unlimitedLiquidity)
	if err != nil {
		return Legs{}, nil, fmt.Errorf("leg initial %s: %w", s.indirect1, err)
	}
	balanceNext, tradeNext, err := s.indirect2.SellCurrency(s.common, balanceInitial[s.common], quoteInd2, unlimitedLiquidity)
	if err != nil {
		return Legs{}, nil, fmt.Errorf("leg next %s: %w", s.indirect2, err)
	}
	leftover := balanceInitial[s.indirect1.Base].Neg()
	balanceFinal, tradeFinal, err := s.direct.BuyCurrency(s.indirect1.Base, leftover, quoteDirect, unlimitedLiquidity)
	if err != nil {
		return Legs{}, nil, fmt.Errorf("leg final %s: %w", s.direct, err)
	}

	legs := Legs{Initial: balanceInitial, Next: balanceNext, Final: balanceFinal}
	trades := []domain.Trade{tradeInitial, tradeNext, tradeFinal}
	return legs, trades, nil
}

// FindOpportunity runs ApplyArbitrage and reports the trades and net balance.
// Returns (nil, nil, nil) when quotes are incomplete, or when skipCapped is
// set and any leg filled only partially.
func (s *Strategy) FindOpportunity(initialAmount decimal.Decimal, unlimitedLiquidity, skipCapped bool) ([]domain.Trade, domain.Balance, error) {
	if !s.QuotesValid() {
		return nil, nil, nil
	}
	legs, trades, err := s.ApplyArbitrage(initialAmount, unlimitedLiquidity)
	if err != nil {
		return nil, nil, err
	}
	if skipCapped {
		for _, trade := range trades {
			if !trade.Filled() {
				return nil, nil, nil
			}
		}
	}
	return trades, legs.Net(), nil
}
