package arbitrage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

// Recorder persists detected opportunities.
type Recorder interface {
	Record(ctx context.Context, opp domain.Opportunity) error
}

// Detector evaluates a set of strategies against quote updates from the
// "quotes" channel and records profitable opportunities.
type Detector struct {
	strategies  []*Strategy
	byPair      map[domain.CurrencyPair][]*Strategy
	notional    decimal.Decimal
	minResidual decimal.Decimal
	skipCapped  bool
	recorder    Recorder
	logger      *slog.Logger
}

// DetectorConfig configures the detector.
type DetectorConfig struct {
	Strategies  []*Strategy
	Notional    decimal.Decimal
	MinResidual decimal.Decimal
	SkipCapped  bool
	Recorder    Recorder
	Logger      *slog.Logger
}

// NewDetector creates a detector over the given strategies.
func NewDetector(cfg DetectorConfig) *Detector {
	byPair := make(map[domain.CurrencyPair][]*Strategy)
	for _, s := range cfg.Strategies {
		for _, pair := range s.Pairs() {
			byPair[pair] = append(byPair[pair], s)
		}
	}
	return &Detector{
		strategies:  cfg.Strategies,
		byPair:      byPair,
		notional:    cfg.Notional,
		minResidual: cfg.MinResidual,
		skipCapped:  cfg.SkipCapped,
		recorder:    cfg.Recorder,
		logger:      cfg.Logger.With(slog.String("component", "detector")),
	}
}

// quoteEvent is the JSON shape published by the book feed to "quotes".
type quoteEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Pair      string    `json:"pair"`
	Bid       struct {
		Price  decimal.Decimal `json:"price"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"bid"`
	Ask struct {
		Price  decimal.Decimal `json:"price"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"ask"`
	Source string `json:"source"`
}

// Run subscribes to the "quotes" channel and evaluates strategies on each
// update. It blocks until ctx is cancelled.
func (d *Detector) Run(ctx context.Context, bus domain.SignalBus) error {
	ch, err := bus.Subscribe(ctx, "quotes")
	if err != nil {
		return fmt.Errorf("detector: subscribe quotes: %w", err)
	}
	d.logger.Info("detector started", slog.Int("strategies", len(d.strategies)))
	defer d.logger.Info("detector stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			if err := d.handleMessage(ctx, data); err != nil {
				d.logger.Warn("detector: handle message failed",
					slog.String("error", err.Error()),
					slog.String("payload", string(data)),
				)
			}
		}
	}
}

func (d *Detector) handleMessage(ctx context.Context, data []byte) error {
	var ev quoteEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return err
	}
	pair, err := domain.ParsePair(ev.Pair, false)
	if err != nil {
		return err
	}
	bid := domain.PriceVolume{Price: ev.Bid.Price, Volume: ev.Bid.Amount}
	ask := domain.PriceVolume{Price: ev.Ask.Price, Volume: ev.Ask.Amount}
	quote := domain.Quote{Timestamp: ev.Timestamp, Bid: &bid, Ask: &ask, Source: ev.Source}

	return d.HandleQuote(ctx, pair, quote)
}

// HandleQuote feeds one quote into every strategy trading the pair and
// evaluates each. Replay uses this directly, bypassing the signal bus.
func (d *Detector) HandleQuote(ctx context.Context, pair domain.CurrencyPair, quote domain.Quote) error {
	for _, s := range d.byPair[pair] {
		if err := s.UpdateQuote(pair, quote); err != nil {
			return err
		}
		if err := d.evaluate(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

// Evaluate runs one strategy against its stored quotes and records the
// opportunity when the home-currency residual clears the threshold.
func (d *Detector) evaluate(ctx context.Context, s *Strategy) error {
	trades, net, err := s.FindOpportunity(d.notional, false, d.skipCapped)
	if err != nil {
		return fmt.Errorf("strategy %s: %w", s, err)
	}
	if trades == nil {
		return nil
	}
	residual := net[s.HomeCurrency()]
	if residual.LessThanOrEqual(d.minResidual) {
		return nil
	}
	opp := domain.Opportunity{
		ID:               uuid.NewString(),
		Strategy:         s.String(),
		Notional:         d.notional,
		Residual:         residual,
		ResidualCurrency: s.HomeCurrency(),
		Trades:           trades,
		DetectedAt:       time.Now().UTC(),
	}
	d.logger.Info("opportunity detected",
		slog.String("strategy", opp.Strategy),
		slog.String("residual", residual.String()),
		slog.String("currency", string(opp.ResidualCurrency)),
	)
	if d.recorder == nil {
		return nil
	}
	if err := d.recorder.Record(ctx, opp); err != nil {
		return fmt.Errorf("record opportunity: %w", err)
	}
	return nil
}

// Scan evaluates every strategy once through the given quote source,
// returning detected opportunities without recording them. Used by the
// one-shot scan mode and replay.
func (d *Detector) Scan(load domain.QuoteSource) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for _, s := range d.strategies {
		if err := s.UpdateQuotes(load); err != nil {
			d.logger.Debug("skipping strategy", slog.String("strategy", s.String()), slog.String("error", err.Error()))
			continue
		}
		trades, net, err := s.FindOpportunity(d.notional, false, d.skipCapped)
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", s, err)
		}
		if trades == nil {
			continue
		}
		residual := net[s.HomeCurrency()]
		if residual.LessThanOrEqual(d.minResidual) {
			continue
		}
		opps = append(opps, domain.Opportunity{
			ID:               uuid.NewString(),
			Strategy:         s.String(),
			Notional:         d.notional,
			Residual:         residual,
			ResidualCurrency: s.HomeCurrency(),
			Trades:           trades,
			DetectedAt:       time.Now().UTC(),
		})
	}
	return opps, nil
}
