package domain

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	pairPattern     = regexp.MustCompile(`^<?([a-zA-Z0-9]+)/([a-zA-Z0-9]+)>?$`)
	strategyPattern = regexp.MustCompile(`^\[?([^,]+),([^,]+),([^,\]]+)\]?$`)
)

// ParsePair parses a "BASE/QUOTE" token, with or without angle brackets
// ("<EUR/CHF>" and "eur/chf" are both accepted). When indirect is set the
// quote currency comes first, matching venues that publish quote-first codes.
func ParsePair(token string, indirect bool) (CurrencyPair, error) {
	m := pairPattern.FindStringSubmatch(strings.TrimSpace(token))
	if m == nil {
		return CurrencyPair{}, fmt.Errorf("%q: %w", token, ErrMalformedPair)
	}
	base, quote := m[1], m[2]
	if indirect {
		base, quote = quote, base
	}
	return NewPair(base, quote), nil
}

// ParsePairDirect splits a concatenated pair code with the base currency
// first, e.g. "btcusd" -> <BTC/USD>. Codes are halved, so both currencies
// must have the same length.
func ParsePairDirect(code string) (CurrencyPair, error) {
	code = strings.TrimSpace(code)
	if len(code) < 2 || len(code)%2 != 0 {
		return CurrencyPair{}, fmt.Errorf("%q: %w", code, ErrMalformedPair)
	}
	half := len(code) / 2
	return NewPair(code[:half], code[half:]), nil
}

// ParsePairIndirect splits a concatenated pair code with the base currency
// last, e.g. "usdbtc" -> <BTC/USD>.
func ParsePairIndirect(code string) (CurrencyPair, error) {
	pair, err := ParsePairDirect(code)
	if err != nil {
		return CurrencyPair{}, err
	}
	return CurrencyPair{Base: pair.Quote, Quote: pair.Base}, nil
}

// ParseStrategyPairs parses a strategy descriptor, a comma-separated triple
// of pair tokens, with or without surrounding brackets:
//
//	[<EUR/CHF>,<CHF/USD>,<USD/EUR>]
//	eur/chf,chf/usd,usd/eur
//
// It returns the three pairs in descriptor order; triangle validation is the
// strategy constructor's job.
func ParseStrategyPairs(descriptor string, indirect bool) ([3]CurrencyPair, error) {
	m := strategyPattern.FindStringSubmatch(strings.TrimSpace(descriptor))
	if m == nil {
		return [3]CurrencyPair{}, fmt.Errorf("%q: %w", descriptor, ErrMalformedStrategy)
	}

	var pairs [3]CurrencyPair
	for i, token := range m[1:] {
		pair, err := ParsePair(token, indirect)
		if err != nil {
			return [3]CurrencyPair{}, fmt.Errorf("%q: %w", descriptor, err)
		}
		pairs[i] = pair
	}
	return pairs, nil
}
