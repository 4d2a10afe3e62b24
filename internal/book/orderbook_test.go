package book

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func snapshotFixture() []SnapshotEntry {
	rows := [][3]string{
		{"0.0003346", "4", "37.62485165"}, {"0.00033459", "1", "8730.72318672"}, {"0.000333", "1", "350"},
		{"0.00033198", "2", "0.2"}, {"0.00033197", "1", "0.1"}, {"0.00033196", "1", "0.1"}, {"0.00033176", "1", "0.1"},
		{"0.00033173", "1", "0.1"}, {"0.0003312", "1", "500"}, {"0.00033101", "1", "86.744"}, {"0.000331", "1", "6451.4199"},
		{"0.00033023", "1", "740.87686"}, {"0.00033011", "1", "741.14618"}, {"0.00033", "2", "139.46531923"},
		{"0.00032511", "1", "2887.53883609"}, {"0.0003251", "2", "4778.30604615"}, {"0.00032503", "1", "606.92814785"},
		{"0.000325", "3", "94"}, {"0.00032371", "1", "84.36364058"}, {"0.0003237", "1", "12.3571205"},
		{"0.00032369", "1", "17.4"}, {"0.000323", "1", "1530"}, {"0.000322", "1", "1"}, {"0.000321", "2", "1050"},
		{"0.00032021", "1", "6.05"}, {"0.00033529", "1", "-98.41876716"}, {"0.00033537", "1", "-153.46272053"},
		{"0.00033548", "1", "-153.46272053"}, {"0.0003356", "1", "-249.9"}, {"0.00033588", "8", "-58.07091549"},
		{"0.00033602", "1", "-2846.53727947"}, {"0.00033664", "1", "-0.1"}, {"0.00033665", "1", "-0.1"},
		{"0.00033666", "1", "-0.1"}, {"0.00033667", "1", "-0.1"}, {"0.0003367", "5", "-7776.02600001"},
		{"0.00033673", "1", "-0.1"}, {"0.00033674", "1", "-0.1"}, {"0.00033679", "1", "-930.2741439"},
		{"0.0003368", "1", "-5000"}, {"0.00033682", "2", "-0.2"}, {"0.00033683", "2", "-0.2"},
		{"0.00033887", "1", "-12.46962851"}, {"0.0003396", "1", "-20"}, {"0.00033969", "1", "-729.26098"},
		{"0.0003397", "1", "-4568.4"}, {"0.0003408", "1", "-5721.8059"}, {"0.0003409", "1", "-50000"},
		{"0.00034095", "1", "-0.15968"}, {"0.00034149", "1", "-5.09291225"},
	}
	entries := make([]SnapshotEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, SnapshotEntry{Price: dec(r[0]), Count: dec(r[1]), Amount: dec(r[2])})
	}
	return entries
}

func TestLoadSnapshotOrdering(t *testing.T) {
	b := New(domain.NewPair("eth", "btc"), "test")
	b.LoadSnapshot(snapshotFixture())

	bids := b.Bids()
	asks := b.Asks()
	if len(bids) != 25 {
		t.Fatalf("len(bids) = %d, want 25", len(bids))
	}
	if len(asks) != 25 {
		t.Fatalf("len(asks) = %d, want 25", len(asks))
	}
	if !bids[0].Price.Equal(dec("0.0003346")) {
		t.Errorf("best bid = %s, want 0.0003346", bids[0].Price)
	}
	if !bids[len(bids)-1].Price.Equal(dec("0.00032021")) {
		t.Errorf("worst bid = %s, want 0.00032021", bids[len(bids)-1].Price)
	}
	if !asks[0].Price.Equal(dec("0.00033529")) {
		t.Errorf("best ask = %s, want 0.00033529", asks[0].Price)
	}
	if !asks[len(asks)-1].Price.Equal(dec("0.00034149")) {
		t.Errorf("worst ask = %s, want 0.00034149", asks[len(asks)-1].Price)
	}
	for _, a := range asks {
		if a.Amount.Sign() < 0 {
			t.Errorf("ask amount %s at %s not absolute", a.Amount, a.Price)
		}
	}
}

func TestUpdatesBeforeSnapshotIgnored(t *testing.T) {
	b := New(domain.NewPair("eth", "btc"), "test")
	if b.UpdateBid(dec("0.00033"), dec("10")) {
		t.Error("UpdateBid applied before snapshot")
	}
	if b.UpdateAsk(dec("0.00034"), dec("10")) {
		t.Error("UpdateAsk applied before snapshot")
	}
	if b.RemoveBid(dec("0.00033")) {
		t.Error("RemoveBid applied before snapshot")
	}
	if _, err := b.LevelOne(); !errors.Is(err, domain.ErrEmptyBook) {
		t.Errorf("LevelOne error = %v, want ErrEmptyBook", err)
	}
	if b.Live() {
		t.Error("book live without a snapshot")
	}
}

func TestDeltaUpdates(t *testing.T) {
	b := New(domain.NewPair("eth", "btc"), "test")
	b.LoadSnapshot(snapshotFixture())

	// A new best bid above all current levels.
	if !b.UpdateBid(dec("0.000335"), dec("12")) {
		t.Fatal("UpdateBid rejected after snapshot")
	}
	if best := b.Bids()[0]; !best.Price.Equal(dec("0.000335")) || !best.Amount.Equal(dec("12")) {
		t.Errorf("best bid = %s@%s, want 12@0.000335", best.Amount, best.Price)
	}

	// Removing it restores the previous best.
	if !b.RemoveBid(dec("0.000335")) {
		t.Fatal("RemoveBid failed")
	}
	if best := b.Bids()[0]; !best.Price.Equal(dec("0.0003346")) {
		t.Errorf("best bid after remove = %s, want 0.0003346", best.Price)
	}

	// Zero amount deletes the level.
	if !b.UpdateAsk(dec("0.00033529"), decimal.Zero) {
		t.Fatal("zero-amount UpdateAsk rejected")
	}
	if best := b.Asks()[0]; !best.Price.Equal(dec("0.00033537")) {
		t.Errorf("best ask after zero update = %s, want 0.00033537", best.Price)
	}

	// Deltas carry signed amounts; levels store absolutes.
	if !b.UpdateAsk(dec("0.00033530"), dec("-7.5")) {
		t.Fatal("UpdateAsk rejected")
	}
	if best := b.Asks()[0]; !best.Amount.Equal(dec("7.5")) {
		t.Errorf("ask amount = %s, want 7.5", best.Amount)
	}

	if b.RemoveAsk(dec("0.999")) {
		t.Error("RemoveAsk reported success for an absent level")
	}
}

func TestLevelOne(t *testing.T) {
	b := New(domain.NewPair("eth", "btc"), "bitfinex")
	b.LoadSnapshot(snapshotFixture())

	quote, err := b.LevelOne()
	if err != nil {
		t.Fatalf("LevelOne: %v", err)
	}
	if !quote.IsComplete() {
		t.Fatal("level-one quote incomplete")
	}
	if !quote.Bid.Price.Equal(dec("0.0003346")) || !quote.Bid.Volume.Equal(dec("37.62485165")) {
		t.Errorf("bid = %s@%s", quote.Bid.Volume, quote.Bid.Price)
	}
	if !quote.Ask.Price.Equal(dec("0.00033529")) || !quote.Ask.Volume.Equal(dec("98.41876716")) {
		t.Errorf("ask = %s@%s", quote.Ask.Volume, quote.Ask.Price)
	}
	if quote.Source != "bitfinex" {
		t.Errorf("source = %q, want bitfinex", quote.Source)
	}
}
