package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chris-ch/coinarb/internal/domain"
	"github.com/chris-ch/coinarb/internal/feed"
)

// quoteTTL bounds the lifetime of cached quotes; a quote older than this is
// too stale to trade on anyway.
const quoteTTL = 5 * time.Minute

// QuoteCache implements domain.QuoteCache, storing the latest level-one
// quote per pair as its wire record under quote:{BASE/QUOTE}.
type QuoteCache struct {
	rdb *redis.Client
}

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(pair domain.CurrencyPair) string {
	return "quote:" + pair.Direct("/")
}

// SetQuote stores the latest quote for a pair.
func (qc *QuoteCache) SetQuote(ctx context.Context, pair domain.CurrencyPair, quote domain.Quote) error {
	record, err := feed.NewQuoteRecord(pair, quote)
	if err != nil {
		return err
	}
	data, err := record.Encode()
	if err != nil {
		return fmt.Errorf("redis: encode quote %s: %w", pair, err)
	}
	if err := qc.rdb.Set(ctx, quoteKey(pair), data, quoteTTL).Err(); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", pair, err)
	}
	return nil
}

// GetQuote returns the latest stored quote for a pair, or ErrNotFound when
// none is cached.
func (qc *QuoteCache) GetQuote(ctx context.Context, pair domain.CurrencyPair) (domain.Quote, error) {
	data, err := qc.rdb.Get(ctx, quoteKey(pair)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Quote{}, fmt.Errorf("redis: quote %s: %w", pair, domain.ErrNotFound)
		}
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", pair, err)
	}
	_, quote, err := feed.ParseQuoteRecord(data)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: decode quote %s: %w", pair, err)
	}
	return quote, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
