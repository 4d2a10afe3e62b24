package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/chris-ch/coinarb/internal/domain"
)

// QuoteHandler consumes one replayed quote.
type QuoteHandler func(pair domain.CurrencyPair, quote domain.Quote) error

// Replayer feeds recorded quote lines back into a handler, typically the
// strategy layer, at full speed. Malformed lines are skipped, not fatal.
type Replayer struct {
	logger *slog.Logger
}

// NewReplayer creates a replayer.
func NewReplayer(logger *slog.Logger) *Replayer {
	return &Replayer{logger: logger.With(slog.String("component", "replayer"))}
}

// Run reads line-delimited quote records from r until EOF or cancellation
// and hands each quote to the handler. Handler errors abort the replay.
func (p *Replayer) Run(ctx context.Context, r io.Reader, handle QuoteHandler) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines, replayed, skipped int
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lines++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		pair, quote, err := ParseQuoteRecord([]byte(line))
		if err != nil {
			skipped++
			p.logger.Warn("skipping malformed quote line",
				slog.Int("line", lines),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := handle(pair, quote); err != nil {
			return fmt.Errorf("replay line %d: %w", lines, err)
		}
		replayed++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("replay read: %w", err)
	}

	p.logger.Info("replay finished",
		slog.Int("replayed", replayed),
		slog.Int("skipped", skipped),
	)
	return nil
}
