package domain

import (
	"context"
	"time"
)

// QuoteCache stores the latest level-one quote per pair. It is the explicit,
// injected collaborator that replaces any process-wide quote memoization:
// components receive a QuoteCache, never reach for global state.
type QuoteCache interface {
	SetQuote(ctx context.Context, pair CurrencyPair, quote Quote) error
	GetQuote(ctx context.Context, pair CurrencyPair) (Quote, error)
}

// SignalBus provides pub/sub fan-out of detection events to external
// consumers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter throttles outbound requests across processes.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed mutual exclusion. Acquire returns an
// unlock function, or ErrLockHeld when another party holds the lock.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
