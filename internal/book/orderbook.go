// Package book maintains incremental level-aggregated order books fed by
// snapshot and delta messages, and derives level-one quotes from them.
package book

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

// Level is one aggregated price level on a single side of the book.
type Level struct {
	Timestamp time.Time
	Price     decimal.Decimal
	Amount    decimal.Decimal
}

// SnapshotEntry is one row of a full book snapshot. Amount is signed:
// positive amounts are bids, negative amounts are asks.
type SnapshotEntry struct {
	Price  decimal.Decimal
	Count  decimal.Decimal
	Amount decimal.Decimal
}

// OrderBook holds both sides of a single pair's book, keyed by price.
// It ignores delta updates until the first snapshot has been loaded.
type OrderBook struct {
	pair   domain.CurrencyPair
	source string
	live   bool
	bids   map[string]Level
	asks   map[string]Level
	now    func() time.Time
}

// New returns an empty book for pair. source tags the quotes it emits.
func New(pair domain.CurrencyPair, source string) *OrderBook {
	return &OrderBook{
		pair:   pair,
		source: source,
		bids:   make(map[string]Level),
		asks:   make(map[string]Level),
		now:    time.Now,
	}
}

// Pair returns the currency pair this book tracks.
func (b *OrderBook) Pair() domain.CurrencyPair { return b.pair }

// Live reports whether a snapshot has been loaded.
func (b *OrderBook) Live() bool { return b.live }

// LoadSnapshot replaces both sides of the book with the given entries and
// marks the book live. Entries with zero count are skipped.
func (b *OrderBook) LoadSnapshot(entries []SnapshotEntry) {
	b.bids = make(map[string]Level)
	b.asks = make(map[string]Level)
	ts := b.now()
	for _, e := range entries {
		if e.Count.IsZero() {
			continue
		}
		level := Level{Timestamp: ts, Price: e.Price, Amount: e.Amount.Abs()}
		if e.Amount.Sign() >= 0 {
			b.bids[e.Price.String()] = level
		} else {
			b.asks[e.Price.String()] = level
		}
	}
	b.live = true
}

// UpdateBid sets the bid level at price to amount. A zero amount removes
// the level. Returns false if the update was ignored (no snapshot yet).
func (b *OrderBook) UpdateBid(price, amount decimal.Decimal) bool {
	return b.update(b.bids, price, amount)
}

// UpdateAsk sets the ask level at price to amount, as UpdateBid.
func (b *OrderBook) UpdateAsk(price, amount decimal.Decimal) bool {
	return b.update(b.asks, price, amount)
}

func (b *OrderBook) update(side map[string]Level, price, amount decimal.Decimal) bool {
	if !b.live {
		return false
	}
	key := price.String()
	if amount.IsZero() {
		delete(side, key)
		return true
	}
	side[key] = Level{Timestamp: b.now(), Price: price, Amount: amount.Abs()}
	return true
}

// RemoveBid drops the bid level at price. Returns false before the first
// snapshot or when no such level exists.
func (b *OrderBook) RemoveBid(price decimal.Decimal) bool {
	return b.remove(b.bids, price)
}

// RemoveAsk drops the ask level at price, as RemoveBid.
func (b *OrderBook) RemoveAsk(price decimal.Decimal) bool {
	return b.remove(b.asks, price)
}

func (b *OrderBook) remove(side map[string]Level, price decimal.Decimal) bool {
	if !b.live {
		return false
	}
	key := price.String()
	if _, ok := side[key]; !ok {
		return false
	}
	delete(side, key)
	return true
}

// Bids returns all bid levels ordered best first (highest price).
func (b *OrderBook) Bids() []Level {
	levels := collect(b.bids)
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price.GreaterThan(levels[j].Price)
	})
	return levels
}

// Asks returns all ask levels ordered best first (lowest price).
func (b *OrderBook) Asks() []Level {
	levels := collect(b.asks)
	sort.Slice(levels, func(i, j int) bool {
		return levels[i].Price.LessThan(levels[j].Price)
	})
	return levels
}

func collect(side map[string]Level) []Level {
	levels := make([]Level, 0, len(side))
	for _, l := range side {
		levels = append(levels, l)
	}
	return levels
}

// LevelOne returns the best bid and ask as a quote. The quote timestamp is
// the later of the two levels'. Returns ErrEmptyBook when either side is
// empty.
func (b *OrderBook) LevelOne() (domain.Quote, error) {
	bids := b.Bids()
	asks := b.Asks()
	if len(bids) == 0 || len(asks) == 0 {
		return domain.Quote{}, domain.ErrEmptyBook
	}
	bestBid := bids[0]
	bestAsk := asks[0]
	ts := bestBid.Timestamp
	if bestAsk.Timestamp.After(ts) {
		ts = bestAsk.Timestamp
	}
	bid := domain.PriceVolume{Price: bestBid.Price, Volume: bestBid.Amount}
	ask := domain.PriceVolume{Price: bestAsk.Price, Volume: bestAsk.Amount}
	return domain.Quote{
		Timestamp: ts,
		Bid:       &bid,
		Ask:       &ask,
		Source:    b.source,
	}, nil
}
