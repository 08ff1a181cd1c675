// Package sqlite persists strike state in a SQLite database through the
// pure-Go modernc.org/sqlite driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var _ repositories.StrikeRepository = (*StrikeRepository)(nil)

// StrikeRepository stores one row per struck provider.
// Timestamps are kept as RFC 3339 UTC text.
type StrikeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStrikeRepository opens (or creates) the database at dsn and initialises the schema.
// Use ":memory:" for a throwaway database.
func NewStrikeRepository(dsn string, logger *zap.Logger) (*StrikeRepository, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// a single connection keeps ":memory:" databases shared and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS strikes (
			provider_id TEXT PRIMARY KEY,
			struck_at   TEXT NOT NULL,
			reason      TEXT NOT NULL DEFAULT '',
			renews_at   TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create strikes table: %w", err)
	}

	logger.Info("sqlite strike store opened", zap.String("dsn", dsn))

	return &StrikeRepository{db: db, logger: logger}, nil
}

// Load returns every persisted strike. Unparsable timestamps load as the zero time.
func (r *StrikeRepository) Load(ctx context.Context) (map[string]models.StrikeRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT provider_id, struck_at, reason, renews_at FROM strikes`)
	if err != nil {
		return nil, fmt.Errorf("failed to load strikes: %w", err)
	}
	defer rows.Close()

	strikes := make(map[string]models.StrikeRecord)
	for rows.Next() {
		var id, struckAt, reason, renewsAt string
		if err := rows.Scan(&id, &struckAt, &reason, &renewsAt); err != nil {
			return nil, fmt.Errorf("failed to scan strike: %w", err)
		}
		strikes[id] = models.StrikeRecord{
			ProviderID: id,
			StruckAt:   parseTimestamp(struckAt),
			Reason:     reason,
			RenewsAt:   parseTimestamp(renewsAt),
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating strikes: %w", err)
	}

	return strikes, nil
}

// Upsert creates or replaces the strike for rec.ProviderID
func (r *StrikeRepository) Upsert(ctx context.Context, rec models.StrikeRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO strikes (provider_id, struck_at, reason, renews_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			struck_at = excluded.struck_at,
			reason = excluded.reason,
			renews_at = excluded.renews_at
	`,
		rec.ProviderID,
		formatTimestamp(rec.StruckAt),
		rec.Reason,
		formatTimestamp(rec.RenewsAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert strike: %w", err)
	}
	return nil
}

// Delete removes the listed providers in a single transaction
func (r *StrikeRepository) Delete(ctx context.Context, providerIDs ...string) error {
	if len(providerIDs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range providerIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM strikes WHERE provider_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete strike %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PingContext verifies the database is reachable
func (r *StrikeRepository) PingContext(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the underlying database
func (r *StrikeRepository) Close() error {
	return r.db.Close()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
