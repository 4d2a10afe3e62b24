package bitfinex

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/book"
	"github.com/chris-ch/coinarb/internal/domain"
)

// Event is the JSON-object side of the wire protocol: info, subscription
// acknowledgements and errors.
type Event struct {
	Event   string `json:"event"`
	Version int    `json:"version"`
	ChanID  int64  `json:"chanId"`
	Channel string `json:"channel"`
	Pair    string `json:"pair"`
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
}

// DataKind discriminates the array-shaped data messages.
type DataKind int

const (
	KindHeartbeat DataKind = iota
	KindSnapshot
	KindDelta
)

// Delta is one incremental book update. Amount keeps the wire sign:
// negative amounts address the ask side.
type Delta struct {
	Price  decimal.Decimal
	Count  decimal.Decimal
	Amount decimal.Decimal
}

// DataMessage is one parsed array message from a book channel.
type DataMessage struct {
	ChanID   int64
	Kind     DataKind
	Snapshot []book.SnapshotEntry
	Delta    Delta
}

// ParseDataMessage decodes an array message: [chanId, "hb"] heartbeats,
// [chanId, [[price, count, amount], ...]] snapshots and
// [chanId, price, count, amount] deltas. Numbers decode through
// json.Number so no precision is lost.
func ParseDataMessage(raw []byte) (DataMessage, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return DataMessage{}, fmt.Errorf("bitfinex: decode message: %w", err)
	}
	if len(elems) != 2 && len(elems) != 4 {
		return DataMessage{}, fmt.Errorf("bitfinex: message with %d elements: %w", len(elems), domain.ErrInvalidArgument)
	}

	var chanID int64
	if err := json.Unmarshal(elems[0], &chanID); err != nil {
		return DataMessage{}, fmt.Errorf("bitfinex: decode channel id: %w", err)
	}
	msg := DataMessage{ChanID: chanID}

	if len(elems) == 4 {
		msg.Kind = KindDelta
		var err error
		if msg.Delta.Price, err = parseNumber(elems[1]); err != nil {
			return DataMessage{}, fmt.Errorf("bitfinex: delta price: %w", err)
		}
		if msg.Delta.Count, err = parseNumber(elems[2]); err != nil {
			return DataMessage{}, fmt.Errorf("bitfinex: delta count: %w", err)
		}
		if msg.Delta.Amount, err = parseNumber(elems[3]); err != nil {
			return DataMessage{}, fmt.Errorf("bitfinex: delta amount: %w", err)
		}
		return msg, nil
	}

	var marker string
	if err := json.Unmarshal(elems[1], &marker); err == nil {
		if marker == "hb" {
			msg.Kind = KindHeartbeat
			return msg, nil
		}
		return DataMessage{}, fmt.Errorf("bitfinex: unexpected marker %q: %w", marker, domain.ErrInvalidArgument)
	}

	var rows [][3]json.Number
	if err := json.Unmarshal(elems[1], &rows); err != nil {
		return DataMessage{}, fmt.Errorf("bitfinex: decode snapshot: %w", err)
	}
	msg.Kind = KindSnapshot
	msg.Snapshot = make([]book.SnapshotEntry, 0, len(rows))
	for _, row := range rows {
		price, err := decimal.NewFromString(row[0].String())
		if err != nil {
			return DataMessage{}, fmt.Errorf("bitfinex: snapshot price %q: %w", row[0], err)
		}
		count, err := decimal.NewFromString(row[1].String())
		if err != nil {
			return DataMessage{}, fmt.Errorf("bitfinex: snapshot count %q: %w", row[1], err)
		}
		amount, err := decimal.NewFromString(row[2].String())
		if err != nil {
			return DataMessage{}, fmt.Errorf("bitfinex: snapshot amount %q: %w", row[2], err)
		}
		msg.Snapshot = append(msg.Snapshot, book.SnapshotEntry{Price: price, Count: count, Amount: amount})
	}
	return msg, nil
}

func parseNumber(raw json.RawMessage) (decimal.Decimal, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromString(n.String())
}

// Symbol renders a pair in the exchange's concatenated direct form,
// e.g. <ETH/BTC> -> "ETHBTC".
func Symbol(pair domain.CurrencyPair) string {
	return pair.Direct("")
}
