package providers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/llm-router/models"
)

// Invoker sends a chat request to whichever provider desc describes.
// Callers never branch on the SDK kind.
type Invoker interface {
	Invoke(ctx context.Context, desc models.ProviderDescriptor, credential string, req *ChatRequest) (*ChatResponse, error)
}

// Client is a provider-specific chat completion client
type Client interface {
	ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}

// ClientBuilder constructs a Client for one provider and credential
type ClientBuilder func(desc models.ProviderDescriptor, credential string) (Client, error)

// ChatRequest represents a unified chat completion request
type ChatRequest struct {
	// Model identifier sent to the provider
	Model string `json:"model"`

	// Messages in the conversation
	Messages []models.Message `json:"messages"`

	// MaxTokens limits the response length
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness
	Temperature float64 `json:"temperature"`
}

// ChatResponse represents a unified chat completion response
type ChatResponse struct {
	ID       string        `json:"id"`
	Model    string        `json:"model"`
	Text     string        `json:"text"`
	Usage    models.Usage  `json:"usage"`
	Provider string        `json:"provider"`
	Latency  time.Duration `json:"latency"`
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Headers are the upstream response headers, when a response was received
	Headers http.Header

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	msg := e.Message
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("status %d: %s", e.StatusCode, msg)
	}
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// ResponseHeaders exposes the upstream headers, e.g. Retry-After
func (e *ProviderError) ResponseHeaders() http.Header {
	return e.Headers
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// WithHeaders attaches response headers to the error
func (e *ProviderError) WithHeaders(h http.Header) *ProviderError {
	e.Headers = h
	return e
}

// RetryableStatus reports whether an HTTP status is worth retrying elsewhere
func RetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
