// Package notify pushes arbitrage alerts to chat channels. A Notifier fans an
// event out to every configured sender (Telegram, Discord) and drops events
// the operator has not subscribed to, so a monitor instance can alert on
// opportunities without paging anyone about routine lifecycle noise.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender delivers a single formatted alert over one channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier fans alerts out to its senders, filtered by event type.
type Notifier struct {
	senders    []Sender
	subscribed map[string]struct{}
	logger     *slog.Logger
}

// NewNotifier builds a Notifier delivering to senders. events lists the event
// types to forward; an empty list forwards everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	subscribed := make(map[string]struct{}, len(events))
	for _, e := range events {
		subscribed[strings.TrimSpace(e)] = struct{}{}
	}
	return &Notifier{
		senders:    senders,
		subscribed: subscribed,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Notify forwards the alert to every sender if the event type is subscribed.
// A failing sender does not block the others; all failures are joined into the
// returned error.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.subscribed) > 0 {
		if _, ok := n.subscribed[event]; !ok {
			n.logger.DebugContext(ctx, "event not subscribed",
				slog.String("event", event),
			)
			return nil
		}
	}
	if len(n.senders) == 0 {
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "alert delivered",
			slog.String("sender", s.Name()),
			slog.String("event", event),
		)
	}
	return errors.Join(errs...)
}
