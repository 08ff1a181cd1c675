package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// RouterService is the part of the cascade router exposed over HTTP
type RouterService interface {
	Call(ctx context.Context, profile string, messages []models.Message, opts routing.CallOptions) (*models.CallResult, error)
	ListAvailable(ctx context.Context, profile string) ([]models.ProviderStatus, error)
	StrikeStatus(ctx context.Context) models.StrikeStatus
	ResetStrike(ctx context.Context, providerID string) bool
	Profiles() []string
	Profile(name string) (models.Profile, bool)
}

// ChatRequest is the body of POST /api/v1/profiles/{profile}/chat
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages" validate:"omitempty,dive"`
	Model       string        `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int          `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
}

// ChatMessage represents a single chat message
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ResetStrikeResponse is returned by DELETE /api/v1/strikes/{provider}
type ResetStrikeResponse struct {
	Provider string `json:"provider"`
	Cleared  bool   `json:"cleared"`
}

// RouterHandler serves profiles, chat calls and strike administration
type RouterHandler struct {
	service RouterService
	logger  *zap.Logger
}

// NewRouterHandler creates a new RouterHandler
func NewRouterHandler(service RouterService, logger *zap.Logger) *RouterHandler {
	return &RouterHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListProfiles handles GET /api/v1/profiles
func (h *RouterHandler) HandleListProfiles(w http.ResponseWriter, r *http.Request) {
	names := h.service.Profiles()
	profiles := make([]models.Profile, 0, len(names))
	for _, name := range names {
		if p, ok := h.service.Profile(name); ok {
			profiles = append(profiles, p)
		}
	}

	_ = utils.WriteOK(w, profiles)
}

// HandleListProviders handles GET /api/v1/profiles/{profile}/providers
func (h *RouterHandler) HandleListProviders(w http.ResponseWriter, r *http.Request) {
	profile := chi.URLParam(r, "profile")

	statuses, err := h.service.ListAvailable(r.Context(), profile)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, statuses)
}

// HandleChat handles POST /api/v1/profiles/{profile}/chat
func (h *RouterHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)
	profile := chi.URLParam(r, "profile")

	var req ChatRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		h.logger.Warn("invalid request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		HandleServiceError(w, fmt.Errorf("%w: %v", services.ErrInvalidInput, err), h.logger)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if len(req.Messages) == 0 {
		HandleServiceError(w, services.ErrEmptyMessages, h.logger)
		return
	}

	messages := make([]models.Message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = models.Message{Role: m.Role, Content: m.Content}
	}

	result, err := h.service.Call(ctx, profile, messages, routing.CallOptions{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		h.logger.Warn("routed call failed",
			zap.String("request_id", requestID),
			zap.String("profile", profile),
			zap.Error(err))
		HandleServiceError(w, err, h.logger)
		return
	}

	h.logger.Info("routed call served",
		zap.String("request_id", requestID),
		zap.String("call_id", result.RequestID),
		zap.String("profile", profile),
		zap.String("provider", result.ProviderID))

	_ = utils.WriteOK(w, result)
}

// HandleStrikeStatus handles GET /api/v1/strikes
func (h *RouterHandler) HandleStrikeStatus(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteOK(w, h.service.StrikeStatus(r.Context()))
}

// HandleResetStrike handles DELETE /api/v1/strikes/{provider}
func (h *RouterHandler) HandleResetStrike(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	if !h.service.ResetStrike(r.Context(), provider) {
		HandleServiceError(w, fmt.Errorf("%w: %s", services.ErrStrikeNotFound, provider), h.logger)
		return
	}

	h.logger.Info("strike cleared",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.String("provider", provider))

	_ = utils.WriteOK(w, ResetStrikeResponse{Provider: provider, Cleared: true})
}
