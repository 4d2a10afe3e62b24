package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/chris-ch/coinarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
// The three legs of each opportunity are stored as a JSONB document.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a store backed by the given connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

// tradeRow is the JSONB shape of one leg.
type tradeRow struct {
	Direction string          `json:"direction"`
	Pair      string          `json:"pair"`
	Quantity  decimal.Decimal `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	FillRatio decimal.Decimal `json:"fill_ratio"`
}

// Insert stores a detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	const query = `
		INSERT INTO opportunities (
			id, strategy, notional, residual, residual_currency,
			trades, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	rows := make([]tradeRow, 0, len(opp.Trades))
	for _, t := range opp.Trades {
		rows = append(rows, tradeRow{
			Direction: string(t.Direction),
			Pair:      t.Pair.String(),
			Quantity:  t.Quantity,
			Price:     t.Price,
			FillRatio: t.FillRatio,
		})
	}
	trades, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("postgres: marshal trades for %s: %w", opp.ID, err)
	}

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.Strategy, opp.Notional, opp.Residual, string(opp.ResidualCurrency),
		trades, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the most recent opportunities ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	query := `
		SELECT id, strategy, notional, residual, residual_currency,
		       trades, detected_at
		FROM opportunities ORDER BY detected_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

func scanOpportunities(rows pgx.Rows) ([]domain.Opportunity, error) {
	var opps []domain.Opportunity
	for rows.Next() {
		var (
			opp       domain.Opportunity
			currency  string
			tradesRaw []byte
			detected  time.Time
		)
		if err := rows.Scan(&opp.ID, &opp.Strategy, &opp.Notional, &opp.Residual,
			&currency, &tradesRaw, &detected); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.ResidualCurrency = domain.Currency(currency)
		opp.DetectedAt = detected

		var legRows []tradeRow
		if err := json.Unmarshal(tradesRaw, &legRows); err != nil {
			return nil, fmt.Errorf("postgres: decode trades for %s: %w", opp.ID, err)
		}
		for _, r := range legRows {
			pair, err := domain.ParsePair(r.Pair, false)
			if err != nil {
				return nil, fmt.Errorf("postgres: trade pair for %s: %w", opp.ID, err)
			}
			opp.Trades = append(opp.Trades, domain.Trade{
				Direction: domain.Direction(r.Direction),
				Pair:      pair,
				Quantity:  r.Quantity,
				Price:     r.Price,
				FillRatio: r.FillRatio,
			})
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	return opps, nil
}

// ListBefore returns all opportunities detected strictly before the cutoff,
// oldest first. Used by the archiver.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Opportunity, error) {
	const query = `
		SELECT id, strategy, notional, residual, residual_currency,
		       trades, detected_at
		FROM opportunities
		WHERE detected_at < $1
		ORDER BY detected_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", before, err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// Compile-time interface check.
var _ domain.OpportunityStore = (*OpportunityStore)(nil)
