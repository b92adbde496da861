package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sharpline/valuebot/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

var _ domain.AuditStore = (*AuditStore)(nil)

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Record appends one audit row. The detail map is stored as JSONB.
func (s *AuditStore) Record(ctx context.Context, rec domain.AuditRecord) error {
	var detailJSON []byte
	if rec.Detail != nil {
		var err error
		detailJSON, err = json.Marshal(rec.Detail)
		if err != nil {
			return fmt.Errorf("postgres: marshal audit detail: %w", err)
		}
	}

	const query = `
		INSERT INTO audit_log
			(id, at, event, market_key, sport, market, sharp_price, soft_price,
			 value_pct, decision, reason, stake, outcome, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.At, rec.Event, rec.Key, rec.Sport, rec.Market,
		rec.SharpPrice, rec.SoftPrice, rec.ValuePct,
		rec.Decision, rec.Reason, rec.Stake, rec.Outcome, detailJSON)
	if err != nil {
		return fmt.Errorf("postgres: record audit event %s: %w", rec.Event, err)
	}
	return nil
}

const auditColumns = `id, at, event, market_key, sport, market, sharp_price,
	soft_price, value_pct, decision, reason, stake, outcome, detail`

// List returns audit rows with pagination and optional time filtering,
// newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.query(ctx, query, args...)
}

// ListBefore returns all rows older than the cutoff, oldest first, for the
// archiver.
func (s *AuditStore) ListBefore(ctx context.Context, before time.Time) ([]domain.AuditRecord, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_log WHERE at < $1 ORDER BY at ASC`
	return s.query(ctx, query, before)
}

// DeleteBefore prunes rows older than the cutoff and reports how many went.
func (s *AuditStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_log WHERE at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete audit before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func (s *AuditStore) query(ctx context.Context, query string, args ...any) ([]domain.AuditRecord, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit rows: %w", err)
	}
	defer rows.Close()

	var recs []domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		var detailJSON []byte
		if err := rows.Scan(&rec.ID, &rec.At, &rec.Event, &rec.Key, &rec.Sport,
			&rec.Market, &rec.SharpPrice, &rec.SoftPrice, &rec.ValuePct,
			&rec.Decision, &rec.Reason, &rec.Stake, &rec.Outcome, &detailJSON); err != nil {
			return nil, fmt.Errorf("postgres: scan audit row: %w", err)
		}
		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &rec.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal audit detail: %w", err)
			}
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: audit rows: %w", err)
	}
	return recs, nil
}
