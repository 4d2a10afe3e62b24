package arbitrage

import (
	"sort"

	"github.com/chris-ch/coinarb/internal/domain"
)

// Generate enumerates every strategy whose three pairs all exist in the
// given universe. Each closed triangle yields exactly one strategy. The
// result is sorted by canonical descriptor.
func Generate(universe []domain.CurrencyPair) []*Strategy {
	pairs := dedupe(universe)
	var strategies []*Strategy
	for i := 0; i < len(pairs); i++ {
		for j := i + 1; j < len(pairs); j++ {
			for k := j + 1; k < len(pairs); k++ {
				s, err := New(pairs[i], pairs[j], pairs[k])
				if err != nil {
					continue
				}
				strategies = append(strategies, s)
			}
		}
	}
	sort.Slice(strategies, func(i, j int) bool { return strategies[i].Less(strategies[j]) })
	return strategies
}

func dedupe(universe []domain.CurrencyPair) []domain.CurrencyPair {
	seen := make(map[domain.CurrencyPair]struct{}, len(universe))
	pairs := make([]domain.CurrencyPair, 0, len(universe))
	for _, p := range universe {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}
	return pairs
}
