package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/chris-ch/coinarb/internal/arbitrage"
	"github.com/chris-ch/coinarb/internal/domain"
	"github.com/chris-ch/coinarb/internal/feed"
	"github.com/chris-ch/coinarb/internal/notify"
	"github.com/chris-ch/coinarb/internal/platform/bitfinex"
)

const (
	// monitorLockKey guards against concurrent monitor instances writing to
	// the same store and bus.
	monitorLockKey = "monitor"
	monitorLockTTL = time.Hour

	// restRateKey is the shared throttle bucket for Bitfinex REST calls.
	restRateKey = "bitfinex:rest"

	// opportunitiesChannel carries recorded opportunities to external
	// consumers.
	opportunitiesChannel = "opportunities"
)

// MonitorMode runs the live pipeline: websocket book feed, detector,
// persistence, notifications, and optional capture and archival.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	unlock, err := deps.LockManager.Acquire(ctx, monitorLockKey, monitorLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			return fmt.Errorf("monitor mode: another instance is already running: %w", err)
		}
		return fmt.Errorf("monitor mode: acquire lock: %w", err)
	}
	defer unlock()

	strategies, err := a.buildStrategies(ctx, deps)
	if err != nil {
		return fmt.Errorf("monitor mode: %w", err)
	}
	if len(strategies) == 0 {
		return errors.New("monitor mode: no triangles constructible from the pair universe")
	}
	pairs := strategyPairs(strategies)
	a.logger.InfoContext(ctx, "resolved universe",
		slog.Int("strategies", len(strategies)),
		slog.Int("pairs", len(pairs)),
	)

	g, ctx := errgroup.WithContext(ctx)

	// Capture: record the live quote stream to object storage.
	var capture feed.Capture
	if a.cfg.Capture.Enabled {
		recorder := feed.NewRecorder(
			deps.BlobWriter,
			a.cfg.Capture.Prefix,
			a.cfg.Capture.FlushInterval.Duration,
			a.logger,
		)
		capture = recorder
		g.Go(func() error {
			return recorder.Run(ctx)
		})
	}

	wsClient := bitfinex.NewWSClient(a.cfg.Bitfinex.WsURL)
	bookFeed := feed.NewBookFeed(feed.BookFeedConfig{
		Client:  wsClient,
		Pairs:   pairs,
		Bus:     deps.SignalBus,
		Cache:   deps.QuoteCache,
		Capture: capture,
		Logger:  a.logger,
	})
	g.Go(func() error {
		return bookFeed.Run(ctx)
	})

	notional, minResidual, err := a.arbitrageAmounts()
	if err != nil {
		return fmt.Errorf("monitor mode: %w", err)
	}
	det := arbitrage.NewDetector(arbitrage.DetectorConfig{
		Strategies:  strategies,
		Notional:    notional,
		MinResidual: minResidual,
		SkipCapped:  a.cfg.Arbitrage.SkipCapped,
		Recorder: &opportunityRecorder{
			store:    deps.OpportunityStore,
			bus:      deps.SignalBus,
			notifier: deps.Notifier,
		},
		Logger: a.logger,
	})
	g.Go(func() error {
		return det.Run(ctx, deps.SignalBus)
	})

	// Periodic archival of aged-out opportunities.
	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiver(ctx, deps)
		})
	}

	return g.Wait()
}

// ScanMode polls the REST order books once, evaluates every strategy, and
// reports profitable round trips.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	strategies, err := a.buildStrategies(ctx, deps)
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	a.logger.InfoContext(ctx, "scanning", slog.Int("strategies", len(strategies)))

	notional, minResidual, err := a.arbitrageAmounts()
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	det := arbitrage.NewDetector(arbitrage.DetectorConfig{
		Strategies:  strategies,
		Notional:    notional,
		MinResidual: minResidual,
		SkipCapped:  a.cfg.Arbitrage.SkipCapped,
		Logger:      a.logger,
	})

	opps, err := det.Scan(a.quoteSource(ctx, deps))
	if err != nil {
		return fmt.Errorf("scan mode: %w", err)
	}
	if len(opps) == 0 {
		a.logger.InfoContext(ctx, "scan finished, no opportunities")
		return nil
	}
	for _, opp := range opps {
		fmt.Fprintf(os.Stdout, "%s: %s %s\n", opp.Strategy, opp.Residual, opp.ResidualCurrency)
	}
	a.logger.InfoContext(ctx, "scan finished", slog.Int("opportunities", len(opps)))
	return nil
}

// ReplayMode streams recorded quotes through the detector at full speed, from
// a local file or from every capture object under the configured S3 prefix.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replay mode")

	strategies, err := a.buildStrategies(ctx, deps)
	if err != nil {
		return fmt.Errorf("replay mode: %w", err)
	}

	notional, minResidual, err := a.arbitrageAmounts()
	if err != nil {
		return fmt.Errorf("replay mode: %w", err)
	}
	collector := &collectingRecorder{}
	det := arbitrage.NewDetector(arbitrage.DetectorConfig{
		Strategies:  strategies,
		Notional:    notional,
		MinResidual: minResidual,
		SkipCapped:  a.cfg.Arbitrage.SkipCapped,
		Recorder:    collector,
		Logger:      a.logger,
	})
	replayer := feed.NewReplayer(a.logger)
	handle := func(pair domain.CurrencyPair, quote domain.Quote) error {
		return det.HandleQuote(ctx, pair, quote)
	}

	if a.cfg.Replay.Path != "" {
		f, err := os.Open(a.cfg.Replay.Path)
		if err != nil {
			return fmt.Errorf("replay mode: %w", err)
		}
		defer f.Close()
		if err := replayer.Run(ctx, f, handle); err != nil {
			return fmt.Errorf("replay mode: %w", err)
		}
	} else {
		blobs, err := deps.BlobReader.List(ctx, a.cfg.Replay.S3Prefix)
		if err != nil {
			return fmt.Errorf("replay mode: list %s: %w", a.cfg.Replay.S3Prefix, err)
		}
		sort.Slice(blobs, func(i, j int) bool { return blobs[i].Path < blobs[j].Path })
		for _, blob := range blobs {
			rc, err := deps.BlobReader.Get(ctx, blob.Path)
			if err != nil {
				return fmt.Errorf("replay mode: get %s: %w", blob.Path, err)
			}
			err = replayer.Run(ctx, rc, handle)
			rc.Close()
			if err != nil {
				return fmt.Errorf("replay mode: %s: %w", blob.Path, err)
			}
		}
	}

	for _, opp := range collector.opps {
		fmt.Fprintf(os.Stdout, "%s %s: %s %s\n",
			opp.DetectedAt.Format(time.RFC3339), opp.Strategy, opp.Residual, opp.ResidualCurrency)
	}
	a.logger.InfoContext(ctx, "replay finished", slog.Int("opportunities", len(collector.opps)))
	return nil
}

// StrategiesMode enumerates every triangle constructible from the pair
// universe and prints one descriptor per line.
func (a *App) StrategiesMode(ctx context.Context, deps *Dependencies) error {
	pairs, err := a.resolvePairs(ctx, deps)
	if err != nil {
		return fmt.Errorf("strategies mode: %w", err)
	}
	for _, s := range arbitrage.Generate(pairs) {
		fmt.Fprintln(os.Stdout, s.String())
	}
	return nil
}

// runArchiver periodically copies opportunities older than the retention
// window to object storage.
func (a *App) runArchiver(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(a.cfg.Archive.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			before := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
			n, err := deps.Archiver.ArchiveOpportunities(ctx, before)
			if err != nil {
				a.logger.Warn("archive pass failed", slog.String("error", err.Error()))
				continue
			}
			a.logger.Info("archive pass complete", slog.Int64("opportunities", n))
		}
	}
}

// resolvePairs returns the configured pair universe, falling back to every
// symbol the exchange lists.
func (a *App) resolvePairs(ctx context.Context, deps *Dependencies) ([]domain.CurrencyPair, error) {
	if len(a.cfg.Bitfinex.Pairs) > 0 {
		pairs := make([]domain.CurrencyPair, 0, len(a.cfg.Bitfinex.Pairs))
		for _, token := range a.cfg.Bitfinex.Pairs {
			pair, err := domain.ParsePair(token, false)
			if err != nil {
				return nil, err
			}
			pairs = append(pairs, pair)
		}
		return pairs, nil
	}

	if err := a.throttleRest(ctx, deps); err != nil {
		return nil, err
	}
	symbols, err := deps.Rest.Symbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	pairs := make([]domain.CurrencyPair, 0, len(symbols))
	for _, symbol := range symbols {
		pair, err := domain.ParsePairDirect(symbol)
		if err != nil {
			a.logger.Debug("skipping symbol", slog.String("symbol", symbol))
			continue
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// buildStrategies returns the pinned triangles from configuration, or every
// triangle constructible from the pair universe.
func (a *App) buildStrategies(ctx context.Context, deps *Dependencies) ([]*arbitrage.Strategy, error) {
	if len(a.cfg.Arbitrage.Strategies) > 0 {
		strategies := make([]*arbitrage.Strategy, 0, len(a.cfg.Arbitrage.Strategies))
		for _, descriptor := range a.cfg.Arbitrage.Strategies {
			s, err := arbitrage.NewFromDescriptor(descriptor, false)
			if err != nil {
				return nil, fmt.Errorf("strategy %q: %w", descriptor, err)
			}
			strategies = append(strategies, s)
		}
		return strategies, nil
	}

	pairs, err := a.resolvePairs(ctx, deps)
	if err != nil {
		return nil, err
	}
	return arbitrage.Generate(pairs), nil
}

// quoteSource returns a REST-backed quote loader with per-pair memoization so
// pairs shared between triangles are fetched once per scan.
func (a *App) quoteSource(ctx context.Context, deps *Dependencies) domain.QuoteSource {
	seen := make(map[domain.CurrencyPair]domain.Quote)
	return func(pair domain.CurrencyPair) (domain.Quote, error) {
		if quote, ok := seen[pair]; ok {
			return quote, nil
		}
		if err := a.throttleRest(ctx, deps); err != nil {
			return domain.Quote{}, err
		}
		quote, err := deps.Rest.OrderBookL1(ctx, bitfinex.Symbol(pair))
		if err != nil {
			return domain.Quote{}, err
		}
		seen[pair] = quote
		return quote, nil
	}
}

// throttleRest blocks until the shared REST rate limit admits one more request.
func (a *App) throttleRest(ctx context.Context, deps *Dependencies) error {
	if deps.RateLimiter == nil {
		return nil
	}
	return deps.RateLimiter.Wait(ctx, restRateKey,
		a.cfg.Bitfinex.RestRateLimit, a.cfg.Bitfinex.RestRateWindow.Duration)
}

// arbitrageAmounts parses the configured notional and threshold.
func (a *App) arbitrageAmounts() (notional, minResidual decimal.Decimal, err error) {
	notional, err = a.cfg.Arbitrage.NotionalAmount()
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	minResidual, err = a.cfg.Arbitrage.MinResidualAmount()
	if err != nil {
		return decimal.Decimal{}, decimal.Decimal{}, err
	}
	return notional, minResidual, nil
}

// strategyPairs returns the union of every strategy's pairs.
func strategyPairs(strategies []*arbitrage.Strategy) []domain.CurrencyPair {
	seen := make(map[domain.CurrencyPair]bool)
	var pairs []domain.CurrencyPair
	for _, s := range strategies {
		for _, pair := range s.Pairs() {
			if !seen[pair] {
				seen[pair] = true
				pairs = append(pairs, pair)
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].String() < pairs[j].String() })
	return pairs
}

// opportunityRecorder persists an opportunity, fans it out on the bus, and
// notifies the configured channels.
type opportunityRecorder struct {
	store    domain.OpportunityStore
	bus      domain.SignalBus
	notifier *notify.Notifier
}

var _ arbitrage.Recorder = (*opportunityRecorder)(nil)

func (r *opportunityRecorder) Record(ctx context.Context, opp domain.Opportunity) error {
	if err := r.store.Insert(ctx, opp); err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}
	payload, err := json.Marshal(opp)
	if err != nil {
		return fmt.Errorf("encode opportunity: %w", err)
	}
	if err := r.bus.Publish(ctx, opportunitiesChannel, payload); err != nil {
		return fmt.Errorf("publish opportunity: %w", err)
	}
	title, body := notify.FormatOpportunity(opp)
	return r.notifier.Notify(ctx, notify.EventOpportunity, title, body)
}

// collectingRecorder accumulates opportunities in memory for replay output.
type collectingRecorder struct {
	opps []domain.Opportunity
}

func (r *collectingRecorder) Record(_ context.Context, opp domain.Opportunity) error {
	r.opps = append(r.opps, opp)
	return nil
}
