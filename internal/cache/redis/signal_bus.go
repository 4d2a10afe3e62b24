package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/chris-ch/coinarb/internal/domain"
)

// subscribeBuffer bounds how far a slow consumer can fall behind before
// quote messages start backing up in the pubsub connection.
const subscribeBuffer = 128

// SignalBus implements domain.SignalBus on Redis Pub/Sub. The book feed
// publishes quote lines to it and the detector subscribes; a second channel
// carries detected opportunities for external consumers.
type SignalBus struct {
	rdb *redis.Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish sends a raw payload to a channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription on channel and returns a channel of raw
// payloads. The returned channel closes when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := sb.rdb.Subscribe(ctx, channel)

	// Wait for the subscription confirmation so a missing Redis surfaces
	// here rather than as a silently empty channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuffer)
	go sb.pump(ctx, pubsub, out)
	return out, nil
}

func (sb *SignalBus) pump(ctx context.Context, pubsub *redis.PubSub, out chan<- []byte) {
	defer close(out)
	defer pubsub.Close()

	in := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)
