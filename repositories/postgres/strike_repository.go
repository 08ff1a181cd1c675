package postgres

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
)

var _ repositories.StrikeRepository = (*StrikeRepository)(nil)

// StrikeRepository implements repositories.StrikeRepository on PostgreSQL
type StrikeRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewStrikeRepository creates a new strike repository
func NewStrikeRepository(db *DB, logger *zap.Logger) *StrikeRepository {
	return &StrikeRepository{
		db:     db,
		logger: logger,
	}
}

// Load returns every persisted strike
func (r *StrikeRepository) Load(ctx context.Context) (map[string]models.StrikeRecord, error) {
	query := `
		SELECT provider_id, struck_at, reason, renews_at
		FROM provider_strikes
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load strikes: %w", err)
	}
	defer rows.Close()

	strikes := make(map[string]models.StrikeRecord)
	for rows.Next() {
		var rec models.StrikeRecord
		if err := rows.Scan(&rec.ProviderID, &rec.StruckAt, &rec.Reason, &rec.RenewsAt); err != nil {
			return nil, fmt.Errorf("failed to scan strike: %w", err)
		}
		rec.StruckAt = rec.StruckAt.UTC()
		rec.RenewsAt = rec.RenewsAt.UTC()
		strikes[rec.ProviderID] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strikes: %w", err)
	}

	r.logger.Debug("strikes loaded", zap.Int("count", len(strikes)))
	return strikes, nil
}

// Upsert creates or replaces the strike for a provider
func (r *StrikeRepository) Upsert(ctx context.Context, rec models.StrikeRecord) error {
	query := `
		INSERT INTO provider_strikes (provider_id, struck_at, reason, renews_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_id) DO UPDATE
		SET struck_at = EXCLUDED.struck_at,
			reason = EXCLUDED.reason,
			renews_at = EXCLUDED.renews_at
	`

	_, err := r.db.ExecContext(ctx, query,
		rec.ProviderID,
		rec.StruckAt.UTC(),
		rec.Reason,
		rec.RenewsAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert strike: %w", err)
	}

	r.logger.Debug("strike upserted",
		zap.String("provider", rec.ProviderID),
		zap.Time("renews_at", rec.RenewsAt))

	return nil
}

// Delete removes the strikes for the given providers
func (r *StrikeRepository) Delete(ctx context.Context, providerIDs ...string) error {
	if len(providerIDs) == 0 {
		return nil
	}

	query := `DELETE FROM provider_strikes WHERE provider_id = ANY($1)`

	result, err := r.db.ExecContext(ctx, query, pq.Array(providerIDs))
	if err != nil {
		return fmt.Errorf("failed to delete strikes: %w", err)
	}

	affected, _ := result.RowsAffected()
	r.logger.Debug("strikes deleted",
		zap.Strings("providers", providerIDs),
		zap.Int64("rows", affected))

	return nil
}

// PingContext verifies the connection is alive
func (r *StrikeRepository) PingContext(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// Close closes the underlying pool
func (r *StrikeRepository) Close() error {
	return r.db.Close()
}
