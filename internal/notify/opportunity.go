package notify

import (
	"fmt"
	"strings"

	"github.com/chris-ch/coinarb/internal/domain"
)

// EventOpportunity is the event type used for detected opportunities.
const EventOpportunity = "opportunity"

// FormatOpportunity renders a detected opportunity as a notification title
// and body.
func FormatOpportunity(opp domain.Opportunity) (string, string) {
	title := fmt.Sprintf("Arbitrage edge: %s %s", opp.Residual, opp.ResidualCurrency)

	var b strings.Builder
	fmt.Fprintf(&b, "Strategy: %s\n", opp.Strategy)
	fmt.Fprintf(&b, "Notional: %s\n", opp.Notional)
	for i, t := range opp.Trades {
		fmt.Fprintf(&b, "Leg %d: %s %s %s @ %s (fill %s)\n",
			i+1, t.Direction, t.Quantity, t.Pair, t.Price, t.FillRatio)
	}
	fmt.Fprintf(&b, "Detected: %s", opp.DetectedAt.Format("2006-01-02 15:04:05 MST"))
	return title, b.String()
}
