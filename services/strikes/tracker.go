// Package strikes tracks which providers are temporarily unavailable because
// they reported a rate limit or exhausted quota.
package strikes

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"go.uber.org/zap"
)

// Tracker holds the active strike for each provider.
//
// Expiry happens lazily in IsAvailable and eagerly in ClearExpired. Every
// mutation is written through to the repository, but a failed write is only
// logged: the in-memory state stays authoritative for this process.
type Tracker struct {
	mu      sync.Mutex
	strikes map[string]models.StrikeRecord
	repo    repositories.StrikeRepository
	logger  *zap.Logger
	now     func() time.Time
}

// Option configures a Tracker
type Option func(*Tracker)

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker loads persisted strikes from repo. A nil repo keeps state in memory only.
// Load failures are logged and the tracker starts empty.
func NewTracker(ctx context.Context, repo repositories.StrikeRepository, logger *zap.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		strikes: make(map[string]models.StrikeRecord),
		repo:    repo,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}

	if repo != nil {
		loaded, err := repo.Load(ctx)
		if err != nil {
			logger.Warn("failed to load strike state, starting empty", zap.Error(err))
		} else {
			t.strikes = loaded
		}
	}

	logger.Debug("strike tracker initialized", zap.Int("strikes", len(t.strikes)))
	return t
}

// IsAvailable reports whether the provider may be called now.
// An expired strike is removed as a side effect.
func (t *Tracker) IsAvailable(ctx context.Context, providerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.strikes[providerID]
	if !ok {
		return true
	}
	if !rec.ExpiredAt(t.now()) {
		return false
	}

	delete(t.strikes, providerID)
	t.persistDelete(ctx, providerID)
	return true
}

// Strike marks the provider unavailable until the renewal time derived from
// policy and retryAfter, replacing any existing strike.
func (t *Tracker) Strike(ctx context.Context, providerID, reason string, policy models.RenewalPolicy, retryAfter *int) models.StrikeRecord {
	now := t.now().UTC()
	rec := models.StrikeRecord{
		ProviderID: providerID,
		StruckAt:   now,
		Reason:     reason,
		RenewsAt:   ComputeRenewal(now, policy, retryAfter),
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.strikes[providerID] = rec

	if t.repo != nil {
		if err := t.repo.Upsert(ctx, rec); err != nil {
			t.logger.Error("failed to persist strike",
				zap.String("provider", providerID),
				zap.Error(err))
		}
	}

	t.logger.Info("provider struck",
		zap.String("provider", providerID),
		zap.String("policy", string(policy)),
		zap.Time("renews_at", rec.RenewsAt))

	return rec
}

// ClearExpired removes every strike whose renewal time has passed and returns
// the removed provider IDs in sorted order.
func (t *Tracker) ClearExpired(ctx context.Context) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.clearExpiredLocked(ctx)
}

func (t *Tracker) clearExpiredLocked(ctx context.Context) []string {
	now := t.now()

	var cleared []string
	for id, rec := range t.strikes {
		if rec.ExpiredAt(now) {
			cleared = append(cleared, id)
		}
	}
	if len(cleared) == 0 {
		return nil
	}

	sort.Strings(cleared)
	for _, id := range cleared {
		delete(t.strikes, id)
	}
	t.persistDelete(ctx, cleared...)

	t.logger.Debug("expired strikes cleared", zap.Strings("providers", cleared))
	return cleared
}

// Status sweeps expired strikes and returns a snapshot of the remaining ones
func (t *Tracker) Status(ctx context.Context) models.StrikeStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clearExpiredLocked(ctx)

	records := make(map[string]models.StrikeRecord, len(t.strikes))
	for id, rec := range t.strikes {
		records[id] = rec
	}

	return models.StrikeStatus{
		ActiveCount: len(records),
		Records:     records,
	}
}

// Lookup returns the current strike for a provider without expiring it
func (t *Tracker) Lookup(providerID string) (models.StrikeRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.strikes[providerID]
	return rec, ok
}

// Reset lifts a strike manually. It returns false when the provider had none.
func (t *Tracker) Reset(ctx context.Context, providerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.strikes[providerID]; !ok {
		return false
	}

	delete(t.strikes, providerID)
	t.persistDelete(ctx, providerID)

	t.logger.Info("strike reset", zap.String("provider", providerID))
	return true
}

func (t *Tracker) persistDelete(ctx context.Context, providerIDs ...string) {
	if t.repo == nil {
		return
	}
	if err := t.repo.Delete(ctx, providerIDs...); err != nil {
		t.logger.Error("failed to persist strike removal",
			zap.Strings("providers", providerIDs),
			zap.Error(err))
	}
}
