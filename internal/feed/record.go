// Package feed connects market data to the strategy layer: the live book
// feed, the capture recorder and the replay reader all speak the same
// line-delimited quote record format.
package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

// PriceAmount is one side of a recorded quote.
type PriceAmount struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// QuoteRecord is the wire form of one level-one quote, one JSON object per
// line. Timestamps are ISO-8601.
type QuoteRecord struct {
	Timestamp string      `json:"timestamp"`
	Pair      string      `json:"pair"`
	Bid       PriceAmount `json:"bid"`
	Ask       PriceAmount `json:"ask"`
	Source    string      `json:"source"`
}

// timestampLayouts lists accepted timestamp forms, zone-aware first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// NewQuoteRecord builds the wire record for a complete quote.
// Returns ErrIncompleteQuote when either side is missing.
func NewQuoteRecord(pair domain.CurrencyPair, quote domain.Quote) (QuoteRecord, error) {
	if !quote.IsComplete() {
		return QuoteRecord{}, fmt.Errorf("record for %s: %w", pair, domain.ErrIncompleteQuote)
	}
	return QuoteRecord{
		Timestamp: quote.Timestamp.UTC().Format(time.RFC3339Nano),
		Pair:      pair.Direct("/"),
		Bid:       PriceAmount{Price: quote.Bid.Price, Amount: quote.Bid.Volume},
		Ask:       PriceAmount{Price: quote.Ask.Price, Amount: quote.Ask.Volume},
		Source:    quote.Source,
	}, nil
}

// Encode renders the record as a single JSON line without trailing newline.
func (r QuoteRecord) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// ParseQuoteRecord decodes one line of the replay format back into a pair
// and quote.
func ParseQuoteRecord(line []byte) (domain.CurrencyPair, domain.Quote, error) {
	var r QuoteRecord
	if err := json.Unmarshal(line, &r); err != nil {
		return domain.CurrencyPair{}, domain.Quote{}, fmt.Errorf("decode quote record: %w", err)
	}
	pair, err := domain.ParsePair(r.Pair, false)
	if err != nil {
		return domain.CurrencyPair{}, domain.Quote{}, err
	}
	ts, err := parseTimestamp(r.Timestamp)
	if err != nil {
		return domain.CurrencyPair{}, domain.Quote{}, err
	}
	bid := domain.PriceVolume{Price: r.Bid.Price, Volume: r.Bid.Amount}
	ask := domain.PriceVolume{Price: r.Ask.Price, Volume: r.Ask.Amount}
	quote := domain.Quote{Timestamp: ts, Bid: &bid, Ask: &ask, Source: r.Source}
	return pair, quote, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("timestamp %q: %w", s, domain.ErrInvalidArgument)
}
