package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

type fakeSender struct {
	name  string
	err   error
	sent  int
	title string
}

func (f *fakeSender) Send(ctx context.Context, title, message string) error {
	f.sent++
	f.title = title
	return f.err
}

func (f *fakeSender) Name() string { return f.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyFiltersUnsubscribedEvents(t *testing.T) {
	s := &fakeSender{name: "chat"}
	n := NewNotifier([]Sender{s}, []string{EventOpportunity}, discardLogger())

	if err := n.Notify(context.Background(), "heartbeat", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if s.sent != 0 {
		t.Fatalf("unsubscribed event delivered %d times", s.sent)
	}

	if err := n.Notify(context.Background(), EventOpportunity, "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if s.sent != 1 {
		t.Fatalf("subscribed event delivered %d times, want 1", s.sent)
	}
}

func TestNotifyEmptySubscriptionForwardsAll(t *testing.T) {
	s := &fakeSender{name: "chat"}
	n := NewNotifier([]Sender{s}, nil, discardLogger())

	if err := n.Notify(context.Background(), "anything", "t", "m"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if s.sent != 1 {
		t.Fatalf("delivered %d times, want 1", s.sent)
	}
}

func TestNotifyContinuesPastFailingSender(t *testing.T) {
	bad := &fakeSender{name: "bad", err: errors.New("boom")}
	good := &fakeSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), EventOpportunity, "t", "m")
	if err == nil {
		t.Fatal("expected error from failing sender")
	}
	if !strings.Contains(err.Error(), "bad") {
		t.Fatalf("error %q does not name failing sender", err)
	}
	if good.sent != 1 {
		t.Fatal("failure in one sender blocked the next")
	}
}

func TestFormatOpportunity(t *testing.T) {
	eur := domain.Currency("EUR")
	chf := domain.Currency("CHF")
	opp := domain.Opportunity{
		Strategy:         "[<EUR/CHF>,<CHF/USD>,<USD/EUR>]",
		Notional:         decimal.RequireFromString("100"),
		Residual:         decimal.RequireFromString("0.42"),
		ResidualCurrency: domain.Currency("USD"),
		Trades: []domain.Trade{
			{
				Direction: domain.Sell,
				Pair:      domain.CurrencyPair{Base: eur, Quote: chf},
				Quantity:  decimal.RequireFromString("-100"),
				Price:     decimal.RequireFromString("0.95"),
				FillRatio: decimal.NewFromInt(1),
			},
		},
		DetectedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	title, body := FormatOpportunity(opp)
	if !strings.Contains(title, "0.42 USD") {
		t.Fatalf("title %q missing residual", title)
	}
	for _, want := range []string{"[<EUR/CHF>,<CHF/USD>,<USD/EUR>]", "Notional: 100", "Leg 1: sell"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}
