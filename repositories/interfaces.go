package repositories

import (
	"context"

	"github.com/upb/llm-router/models"
)

// StrikeRepository persists strike records so they survive restarts.
// Implementations must treat a missing store as empty state.
type StrikeRepository interface {
	// Load returns every persisted strike keyed by provider ID
	Load(ctx context.Context) (map[string]models.StrikeRecord, error)

	// Upsert creates or replaces the strike for rec.ProviderID
	Upsert(ctx context.Context, rec models.StrikeRecord) error

	// Delete removes the strikes for the given providers; unknown IDs are ignored
	Delete(ctx context.Context, providerIDs ...string) error

	// Close releases any resources held by the repository
	Close() error
}

// Pinger is implemented by repositories backed by a database connection
type Pinger interface {
	PingContext(ctx context.Context) error
}
