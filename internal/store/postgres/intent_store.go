package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sharpline/valuebot/internal/domain"
)

// IntentStore implements domain.IntentStore using PostgreSQL. The unique
// index on market_key backs the at-most-once guarantee across restarts.
type IntentStore struct {
	pool *pgxpool.Pool
}

var _ domain.IntentStore = (*IntentStore)(nil)

// NewIntentStore creates an IntentStore backed by the given connection pool.
func NewIntentStore(pool *pgxpool.Pool) *IntentStore {
	return &IntentStore{pool: pool}
}

// Create persists a freshly claimed intent. A second intent for the same
// market key violates the unique index and returns ErrAlreadyDispatched.
func (s *IntentStore) Create(ctx context.Context, intent domain.BetIntent) error {
	const query = `
		INSERT INTO bet_intents
			(id, market_key, sport, market, selection, stake, price, value_pct, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (market_key) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query,
		intent.ID, intent.Key.DedupKey(), string(intent.Key.Sport), string(intent.Key.Market),
		string(intent.Selection), intent.Stake, intent.Price, intent.ValuePct, intent.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create intent %s: %w", intent.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: intent for %s exists: %w", intent.Key, domain.ErrAlreadyDispatched)
	}
	return nil
}

// SetOutcome records the terminal outcome of an intent.
func (s *IntentStore) SetOutcome(ctx context.Context, intentID string, outcome domain.BetOutcome) error {
	const query = `
		UPDATE bet_intents
		SET outcome = $2, reason = $3, bet_id = $4, settled_at = NOW()
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, intentID, string(outcome.Status), outcome.Reason, outcome.BetID)
	if err != nil {
		return fmt.Errorf("postgres: set outcome for %s: %w", intentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: intent %s: %w", intentID, domain.ErrNotFound)
	}
	return nil
}

// ListOpen returns intents that never received an outcome, for operator
// reconciliation after a crash.
func (s *IntentStore) ListOpen(ctx context.Context) ([]domain.BetIntent, error) {
	const query = `
		SELECT id, market_key, sport, market, selection, stake, price, value_pct, created_at
		FROM bet_intents
		WHERE outcome = ''
		ORDER BY created_at ASC`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open intents: %w", err)
	}
	defer rows.Close()

	var intents []domain.BetIntent
	for rows.Next() {
		var it domain.BetIntent
		var marketKey, sport, market, selection string
		if err := rows.Scan(&it.ID, &marketKey, &sport, &market, &selection,
			&it.Stake, &it.Price, &it.ValuePct, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan intent: %w", err)
		}
		it.Key = domain.MarketKey{Sport: domain.Sport(sport), Market: domain.MarketType(market)}
		it.Selection = domain.Selection(selection)
		intents = append(intents, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: open intent rows: %w", err)
	}
	return intents, nil
}
