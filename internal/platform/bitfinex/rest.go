package bitfinex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

// RestClient is the REST client for the Bitfinex public API. It covers the
// two read-only endpoints the scanner needs: the symbol universe and
// level-one order books.
type RestClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRestClient creates a REST client.
//
// baseURL is the public API root, e.g. "https://api.bitfinex.com".
func NewRestClient(baseURL string) *RestClient {
	return &RestClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Symbols returns every listed pair code, e.g. "btcusd".
func (c *RestClient) Symbols(ctx context.Context) ([]string, error) {
	var symbols []string
	if err := c.get(ctx, "/v1/symbols", &symbols); err != nil {
		return nil, fmt.Errorf("bitfinex/rest: symbols: %w", err)
	}
	return symbols, nil
}

// bookLevel is one side entry of the v1 book payload. Prices and amounts
// arrive as strings; timestamps as fractional unix seconds.
type bookLevel struct {
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp string          `json:"timestamp"`
}

type bookResponse struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

// OrderBookL1 fetches the best bid and ask for a symbol as a quote.
// Returns ErrEmptyBook when either side has no level.
func (c *RestClient) OrderBookL1(ctx context.Context, symbol string) (domain.Quote, error) {
	path := fmt.Sprintf("/v1/book/%s?limit_bids=1&limit_asks=1&group=1", strings.ToLower(symbol))
	var resp bookResponse
	if err := c.get(ctx, path, &resp); err != nil {
		return domain.Quote{}, fmt.Errorf("bitfinex/rest: book %s: %w", symbol, err)
	}
	if len(resp.Bids) == 0 || len(resp.Asks) == 0 {
		return domain.Quote{}, fmt.Errorf("bitfinex/rest: book %s: %w", symbol, domain.ErrEmptyBook)
	}

	bestBid := resp.Bids[0]
	bestAsk := resp.Asks[0]
	bid := domain.PriceVolume{Price: bestBid.Price, Volume: bestBid.Amount.Abs()}
	ask := domain.PriceVolume{Price: bestAsk.Price, Volume: bestAsk.Amount.Abs()}
	ts := parseTimestamp(bestBid.Timestamp)
	if askTS := parseTimestamp(bestAsk.Timestamp); askTS.After(ts) {
		ts = askTS
	}

	return domain.Quote{
		Timestamp: ts,
		Bid:       &bid,
		Ask:       &ask,
		Source:    "bitfinex",
	}, nil
}

func (c *RestClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseTimestamp converts fractional unix seconds ("1480000000.0") to a
// time. Unparseable values fall back to the current time.
func parseTimestamp(s string) time.Time {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Now().UTC()
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}
