// Package routing dispatches chat requests through a profile's providers in
// priority order, skipping providers without credentials or with an active
// strike and falling through to the next candidate on failure.
package routing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-router/internal/observability"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/providers"
	"go.uber.org/zap"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096
)

// Catalog resolves provider and profile definitions
type Catalog interface {
	Provider(id string) (models.ProviderDescriptor, bool)
	Profile(name string) (models.Profile, bool)
	ProfileNames() []string
}

// StrikeTracker records which providers are temporarily unavailable
type StrikeTracker interface {
	IsAvailable(ctx context.Context, providerID string) bool
	Strike(ctx context.Context, providerID, reason string, policy models.RenewalPolicy, retryAfter *int) models.StrikeRecord
	ClearExpired(ctx context.Context) []string
	Status(ctx context.Context) models.StrikeStatus
	Lookup(providerID string) (models.StrikeRecord, bool)
	Reset(ctx context.Context, providerID string) bool
}

// CallOptions are per-call overrides. Nil or empty fields use the defaults.
type CallOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   *int
}

// Router is the cascade dispatcher
type Router struct {
	catalog     Catalog
	tracker     StrikeTracker
	invoker     providers.Invoker
	credentials providers.CredentialSource
	logger      *zap.Logger
}

// NewRouter creates a router over the given collaborators
func NewRouter(catalog Catalog, tracker StrikeTracker, invoker providers.Invoker, credentials providers.CredentialSource, logger *zap.Logger) *Router {
	return &Router{
		catalog:     catalog,
		tracker:     tracker,
		invoker:     invoker,
		credentials: credentials,
		logger:      logger,
	}
}

// Call routes messages through the named profile and returns the first success.
//
// It returns *UnknownProfileError for an unknown profile, ctx.Err() when the
// context ends between candidates, and *ExhaustedError when every candidate
// was skipped, struck or failed.
func (r *Router) Call(ctx context.Context, profileName string, messages []models.Message, opts CallOptions) (*models.CallResult, error) {
	profile, ok := r.catalog.Profile(profileName)
	if !ok {
		return nil, r.unknownProfile(profileName)
	}

	requestID := uuid.NewString()
	logger := r.logger.With(
		zap.String("request_id", requestID),
		zap.String("profile", profileName))

	if cleared := r.tracker.ClearExpired(ctx); len(cleared) > 0 {
		logger.Debug("expired strikes cleared", zap.Strings("providers", cleared))
	}

	var attempts []models.Attempt

	for _, pid := range profile.Providers {
		if err := ctx.Err(); err != nil {
			observability.RecordCall(profileName, "cancelled")
			return nil, err
		}

		desc, ok := r.catalog.Provider(pid)
		if !ok {
			logger.Warn("skipping unknown provider", zap.String("provider", pid))
			continue
		}

		credential, ok := r.credentials.Lookup(desc.EnvKey)
		if !ok {
			attempts = append(attempts, models.Attempt{
				Provider: pid,
				Status:   models.AttemptSkipped,
				Reason:   "no API key",
			})
			observability.RecordAttempt(pid, string(models.AttemptSkipped))
			logger.Debug("skipping provider without credential",
				zap.String("provider", pid),
				zap.String("env_key", desc.EnvKey))
			continue
		}

		if !r.tracker.IsAvailable(ctx, pid) {
			attempts = append(attempts, r.struckAttempt(pid))
			observability.RecordAttempt(pid, string(models.AttemptStruck))
			logger.Info("skipping struck provider",
				zap.String("provider", pid),
				zap.Timep("renews_at", attempts[len(attempts)-1].RenewsAt))
			continue
		}

		req := buildRequest(desc, messages, opts)
		logger.Info("trying provider",
			zap.String("provider", pid),
			zap.String("name", desc.DisplayName()),
			zap.String("model", req.Model))

		start := time.Now()
		resp, err := r.invoker.Invoke(ctx, desc, credential, req)
		observability.ObserveProviderDuration(pid, time.Since(start))

		if err == nil {
			observability.RecordAttempt(pid, "success")
			observability.RecordCall(profileName, "success")
			logger.Info("provider succeeded",
				zap.String("provider", pid),
				zap.String("model", req.Model),
				zap.Duration("latency", time.Since(start)))

			return &models.CallResult{
				RequestID:    requestID,
				Text:         resp.Text,
				ProviderID:   pid,
				ProviderName: desc.DisplayName(),
				Model:        req.Model,
				Usage:        resp.Usage,
			}, nil
		}

		rateLimited, retryAfter := ClassifyFailure(err)
		reason := failureReason(err)

		if rateLimited {
			rec := r.tracker.Strike(ctx, pid, reason, desc.RenewalPolicyOrDefault(), retryAfter)
			observability.RecordStrike(pid)
			logger.Warn("provider rate limited, struck",
				zap.String("provider", pid),
				zap.Time("renews_at", rec.RenewsAt),
				zap.Error(err))
		} else {
			logger.Warn("provider failed",
				zap.String("provider", pid),
				zap.Error(err))
		}

		attempts = append(attempts, models.Attempt{
			Provider:    pid,
			Status:      models.AttemptFailed,
			Reason:      reason,
			RateLimited: rateLimited,
		})
		observability.RecordAttempt(pid, string(models.AttemptFailed))
	}

	if err := ctx.Err(); err != nil {
		observability.RecordCall(profileName, "cancelled")
		return nil, err
	}

	observability.RecordCall(profileName, "exhausted")
	logger.Error("all providers exhausted", zap.Int("attempts", len(attempts)))

	return nil, &ExhaustedError{Profile: profileName, Attempts: attempts}
}

// ListAvailable reports the state of each provider in the profile without invoking any.
// An unknown profile is an *UnknownProfileError rather than an empty list, so
// callers can tell a typo from a profile with no providers.
func (r *Router) ListAvailable(ctx context.Context, profileName string) ([]models.ProviderStatus, error) {
	profile, ok := r.catalog.Profile(profileName)
	if !ok {
		return nil, r.unknownProfile(profileName)
	}

	r.tracker.ClearExpired(ctx)

	statuses := make([]models.ProviderStatus, 0, len(profile.Providers))
	for _, pid := range profile.Providers {
		desc, ok := r.catalog.Provider(pid)
		if !ok {
			continue
		}

		_, hasCredential := r.credentials.Lookup(desc.EnvKey)
		notStruck := r.tracker.IsAvailable(ctx, pid)

		status := models.ProviderStatus{
			ID:            pid,
			Name:          desc.DisplayName(),
			Model:         desc.DefaultModel,
			Tier:          desc.Tier,
			HasCredential: hasCredential,
			IsAvailable:   hasCredential && notStruck,
		}
		if rec, ok := r.tracker.Lookup(pid); ok {
			status.Strike = &rec
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

// StrikeStatus returns the active strikes after sweeping expired ones
func (r *Router) StrikeStatus(ctx context.Context) models.StrikeStatus {
	return r.tracker.Status(ctx)
}

// ResetStrike lifts a provider's strike; false when it had none
func (r *Router) ResetStrike(ctx context.Context, providerID string) bool {
	return r.tracker.Reset(ctx, providerID)
}

// Profiles returns the known profile names, sorted
func (r *Router) Profiles() []string {
	return r.catalog.ProfileNames()
}

// Profile returns a single profile definition
func (r *Router) Profile(name string) (models.Profile, bool) {
	return r.catalog.Profile(name)
}

func (r *Router) unknownProfile(name string) error {
	return &UnknownProfileError{Profile: name, Available: r.catalog.ProfileNames()}
}

func (r *Router) struckAttempt(pid string) models.Attempt {
	attempt := models.Attempt{
		Provider: pid,
		Status:   models.AttemptStruck,
		Reason:   "rate limited",
	}
	if rec, ok := r.tracker.Lookup(pid); ok {
		if rec.Reason != "" {
			attempt.Reason = rec.Reason
		}
		renewsAt := rec.RenewsAt
		attempt.RenewsAt = &renewsAt
	}
	return attempt
}

func buildRequest(desc models.ProviderDescriptor, messages []models.Message, opts CallOptions) *providers.ChatRequest {
	req := &providers.ChatRequest{
		Model:       desc.DefaultModel,
		Messages:    messages,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	if opts.Model != "" {
		req.Model = opts.Model
	}
	if opts.Temperature != nil {
		req.Temperature = *opts.Temperature
	}
	if opts.MaxTokens != nil {
		req.MaxTokens = *opts.MaxTokens
	}
	return req
}
