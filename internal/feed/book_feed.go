package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris-ch/coinarb/internal/book"
	"github.com/chris-ch/coinarb/internal/domain"
	"github.com/chris-ch/coinarb/internal/platform/bitfinex"
)

// QuotesChannel is the signal-bus channel level-one quotes are published to.
const QuotesChannel = "quotes"

// Capture receives every published quote line, e.g. for archival.
type Capture interface {
	Append(line []byte)
}

// BookFeed maintains one order book per subscribed pair from the exchange
// WebSocket feed and publishes a level-one quote to the signal bus on every
// book change. Book mutations all happen on the WebSocket read goroutine.
type BookFeed struct {
	client  *bitfinex.WSClient
	pairs   map[string]domain.CurrencyPair
	books   map[string]*book.OrderBook
	bus     domain.SignalBus
	cache   domain.QuoteCache
	capture Capture
	logger  *slog.Logger

	// ctx is the run context, captured for the WebSocket callbacks.
	ctx context.Context
}

// BookFeedConfig configures the feed. Cache and Capture are optional.
type BookFeedConfig struct {
	Client  *bitfinex.WSClient
	Pairs   []domain.CurrencyPair
	Bus     domain.SignalBus
	Cache   domain.QuoteCache
	Capture Capture
	Logger  *slog.Logger
}

// NewBookFeed creates a feed over the given pairs.
func NewBookFeed(cfg BookFeedConfig) *BookFeed {
	pairs := make(map[string]domain.CurrencyPair, len(cfg.Pairs))
	books := make(map[string]*book.OrderBook, len(cfg.Pairs))
	for _, pair := range cfg.Pairs {
		symbol := bitfinex.Symbol(pair)
		pairs[symbol] = pair
		books[symbol] = book.New(pair, "bitfinex")
	}
	return &BookFeed{
		client:  cfg.Client,
		pairs:   pairs,
		books:   books,
		bus:     cfg.Bus,
		cache:   cfg.Cache,
		capture: cfg.Capture,
		logger:  cfg.Logger.With(slog.String("component", "book_feed")),
	}
}

// Run connects, subscribes every pair's book channel and blocks until ctx is
// cancelled.
func (f *BookFeed) Run(ctx context.Context) error {
	f.ctx = ctx
	f.client.OnSnapshot(f.onSnapshot)
	f.client.OnDelta(f.onDelta)

	if err := f.client.Connect(ctx); err != nil {
		return fmt.Errorf("book feed: %w", err)
	}
	symbols := make([]string, 0, len(f.pairs))
	for symbol := range f.pairs {
		symbols = append(symbols, symbol)
	}
	if err := f.client.SubscribeBook(ctx, symbols); err != nil {
		return fmt.Errorf("book feed: %w", err)
	}
	f.logger.Info("book feed started", slog.Int("pairs", len(f.pairs)))

	<-ctx.Done()
	f.logger.Info("book feed stopping")
	return f.client.Close()
}

func (f *BookFeed) onSnapshot(symbol string, msg bitfinex.DataMessage) {
	bk, ok := f.books[symbol]
	if !ok {
		return
	}
	bk.LoadSnapshot(msg.Snapshot)
	f.logger.Debug("snapshot loaded",
		slog.String("symbol", symbol),
		slog.Int("levels", len(msg.Snapshot)),
	)
	f.publish(symbol, bk)
}

// onDelta applies one update: a positive count upserts the level on the side
// given by the amount's sign, a zero count removes the level, with amount +1
// addressing the bid side and -1 the ask side.
func (f *BookFeed) onDelta(symbol string, msg bitfinex.DataMessage) {
	bk, ok := f.books[symbol]
	if !ok {
		return
	}
	d := msg.Delta
	var updated bool
	if d.Count.Sign() > 0 {
		if d.Amount.Sign() > 0 {
			updated = bk.UpdateBid(d.Price, d.Amount)
		} else {
			updated = bk.UpdateAsk(d.Price, d.Amount)
		}
	} else {
		if d.Amount.Sign() > 0 {
			updated = bk.RemoveBid(d.Price)
		} else {
			updated = bk.RemoveAsk(d.Price)
		}
	}
	if updated {
		f.publish(symbol, bk)
	}
}

func (f *BookFeed) publish(symbol string, bk *book.OrderBook) {
	quote, err := bk.LevelOne()
	if err != nil {
		if !errors.Is(err, domain.ErrEmptyBook) {
			f.logger.Warn("level one failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		}
		return
	}

	pair := f.pairs[symbol]
	record, err := NewQuoteRecord(pair, quote)
	if err != nil {
		return
	}
	line, err := record.Encode()
	if err != nil {
		f.logger.Warn("encode quote failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		return
	}

	if f.cache != nil {
		if err := f.cache.SetQuote(f.ctx, pair, quote); err != nil {
			f.logger.Warn("cache quote failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		}
	}
	if err := f.bus.Publish(f.ctx, QuotesChannel, line); err != nil {
		f.logger.Warn("publish quote failed", slog.String("symbol", symbol), slog.String("error", err.Error()))
		return
	}
	if f.capture != nil {
		f.capture.Append(line)
	}
}
