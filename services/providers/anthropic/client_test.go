package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/providers"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	desc := models.ProviderDescriptor{
		ID:      "anthropic",
		SDK:     models.SDKAnthropic,
		BaseURL: server.URL,
	}
	return NewClient(desc, "sk-ant-test", server.Client())
}

func TestClient_ChatCompletion(t *testing.T) {
	var received messagesRequest

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "Hello"}, {"type": "text", "text": " world"}],
			"usage": {"input_tokens": 20, "output_tokens": 5}
		}`))
	})

	resp, err := client.ChatCompletion(context.Background(), &providers.ChatRequest{
		Model: "claude-3-5-haiku-latest",
		Messages: []models.Message{
			{Role: "system", Content: "You are terse."},
			{Role: "user", Content: "Say hello"},
		},
		MaxTokens:   4096,
		Temperature: 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hello world", resp.Text)
	assert.Equal(t, 20, resp.Usage.InputTokens)
	assert.Equal(t, 5, resp.Usage.OutputTokens)
	assert.Equal(t, "anthropic", resp.Provider)

	assert.Equal(t, "You are terse.", received.System)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)
	assert.Equal(t, 4096, received.MaxTokens)
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		retryAfter    string
		wantCode      string
		wantRetryable bool
	}{
		{
			name:          "rate limited",
			status:        http.StatusTooManyRequests,
			body:          `{"type": "error", "error": {"type": "rate_limit_error", "message": "Number of requests has exceeded your rate limit"}}`,
			retryAfter:    "42",
			wantCode:      "rate_limit_error",
			wantRetryable: true,
		},
		{
			name:     "invalid request",
			status:   http.StatusBadRequest,
			body:     `{"type": "error", "error": {"type": "invalid_request_error", "message": "max_tokens: field required"}}`,
			wantCode: "invalid_request_error",
		},
		{
			name:          "overloaded without json",
			status:        529,
			body:          `overloaded`,
			wantCode:      "UNKNOWN_ERROR",
			wantRetryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := client.ChatCompletion(context.Background(), &providers.ChatRequest{
				Model:    "claude",
				Messages: []models.Message{{Role: "user", Content: "hi"}},
			})

			var provErr *providers.ProviderError
			require.ErrorAs(t, err, &provErr)
			assert.Equal(t, tt.status, provErr.StatusCode)
			assert.Equal(t, tt.wantCode, provErr.Code)
			assert.Equal(t, tt.wantRetryable, provErr.Retryable)
			assert.Equal(t, tt.retryAfter, provErr.ResponseHeaders().Get("Retry-After"))
		})
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.ChatCompletion(ctx, &providers.ChatRequest{
		Model:    "claude",
		Messages: []models.Message{{Role: "user", Content: "hi"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
