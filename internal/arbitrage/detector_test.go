package arbitrage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/chris-ch/coinarb/internal/domain"
)

type captureRecorder struct {
	opps []domain.Opportunity
}

func (c *captureRecorder) Record(ctx context.Context, opp domain.Opportunity) error {
	c.opps = append(c.opps, opp)
	return nil
}

func testDetector(t *testing.T, minResidual string, rec Recorder) *Detector {
	t.Helper()
	s, err := NewFromDescriptor("<eur/chf>,<chf/usd>,<usd/eur>", false)
	if err != nil {
		t.Fatalf("NewFromDescriptor: %v", err)
	}
	return NewDetector(DetectorConfig{
		Strategies:  []*Strategy{s},
		Notional:    dec("1"),
		MinResidual: dec(minResidual),
		SkipCapped:  true,
		Recorder:    rec,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

// Quotes for the profitable EUR/CHF/USD triangle; the USD edge on a notional
// of 1 EUR is a bit over 0.002.
func edgeQuotes() map[domain.CurrencyPair]domain.Quote {
	return map[domain.CurrencyPair]domain.Quote{
		pair("eur", "chf"): quoteOf("1.14", "100", "1.15", "100"),
		pair("chf", "usd"): quoteOf("1.04", "100", "1.05", "100"),
		pair("usd", "eur"): quoteOf("0.845", "100", "0.855", "100"),
	}
}

func TestDetectorRecordsEdgeOnceQuotesComplete(t *testing.T) {
	rec := &captureRecorder{}
	d := testDetector(t, "0", rec)

	for _, p := range []domain.CurrencyPair{
		pair("eur", "chf"), pair("chf", "usd"), pair("usd", "eur"),
	} {
		if err := d.HandleQuote(context.Background(), p, edgeQuotes()[p]); err != nil {
			t.Fatalf("HandleQuote(%s): %v", p, err)
		}
	}

	if len(rec.opps) != 1 {
		t.Fatalf("recorded %d opportunities, want 1", len(rec.opps))
	}
	opp := rec.opps[0]
	if opp.Strategy != "[<EUR/CHF>,<CHF/USD>,<USD/EUR>]" {
		t.Errorf("strategy = %s", opp.Strategy)
	}
	if opp.ResidualCurrency != "USD" || opp.Residual.Sign() <= 0 {
		t.Errorf("residual = %s %s, want positive USD", opp.Residual, opp.ResidualCurrency)
	}
	if len(opp.Trades) != 3 {
		t.Errorf("len(trades) = %d, want 3", len(opp.Trades))
	}
	if opp.ID == "" || opp.DetectedAt.IsZero() {
		t.Errorf("missing id or detection time: %+v", opp)
	}
}

func TestDetectorIgnoresQuoteForUnknownPair(t *testing.T) {
	rec := &captureRecorder{}
	d := testDetector(t, "0", rec)

	if err := d.HandleQuote(context.Background(), pair("gbp", "jpy"), quoteOf("1", "1", "1", "1")); err != nil {
		t.Fatalf("HandleQuote: %v", err)
	}
	if len(rec.opps) != 0 {
		t.Fatalf("recorded %d opportunities for a foreign pair", len(rec.opps))
	}
}

func TestDetectorHonoursResidualThreshold(t *testing.T) {
	rec := &captureRecorder{}
	d := testDetector(t, "1", rec)

	for p, q := range edgeQuotes() {
		if err := d.HandleQuote(context.Background(), p, q); err != nil {
			t.Fatalf("HandleQuote(%s): %v", p, err)
		}
	}
	if len(rec.opps) != 0 {
		t.Fatalf("residual under threshold still recorded %d opportunities", len(rec.opps))
	}
}

func TestDetectorParsesQuoteLine(t *testing.T) {
	rec := &captureRecorder{}
	d := testDetector(t, "0", rec)

	lines := []string{
		`{"timestamp":"2017-01-01T00:00:00Z","pair":"EUR/CHF","bid":{"price":"1.14","amount":"100"},"ask":{"price":"1.15","amount":"100"},"source":"test"}`,
		`{"timestamp":"2017-01-01T00:00:01Z","pair":"CHF/USD","bid":{"price":"1.04","amount":"100"},"ask":{"price":"1.05","amount":"100"},"source":"test"}`,
		`{"timestamp":"2017-01-01T00:00:02Z","pair":"USD/EUR","bid":{"price":"0.845","amount":"100"},"ask":{"price":"0.855","amount":"100"},"source":"test"}`,
	}
	for i, line := range lines {
		if err := d.handleMessage(context.Background(), []byte(line)); err != nil {
			t.Fatalf("handleMessage line %d: %v", i, err)
		}
	}
	if len(rec.opps) != 1 {
		t.Fatalf("recorded %d opportunities, want 1", len(rec.opps))
	}

	if err := d.handleMessage(context.Background(), []byte("not json")); err == nil {
		t.Fatal("malformed line accepted")
	}
	if err := d.handleMessage(context.Background(), []byte(`{"pair":"nonsense"}`)); err == nil {
		t.Fatal("bad pair accepted")
	}
}
