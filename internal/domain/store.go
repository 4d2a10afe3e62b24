package domain

import "context"

// OpportunityStore persists detected arbitrage opportunities.
type OpportunityStore interface {
	Insert(ctx context.Context, opp Opportunity) error
	ListRecent(ctx context.Context, limit int) ([]Opportunity, error)
}
