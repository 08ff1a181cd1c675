// Package openai invokes OpenAI-compatible chat completion endpoints
// (OpenAI itself, Gemini, Groq, OpenRouter) through go-openai.
package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/providers"
)

var _ providers.Client = (*Client)(nil)

// Client wraps a go-openai client bound to one provider
type Client struct {
	providerID string
	client     *goopenai.Client
}

// NewBuilder returns a providers.ClientBuilder that issues requests through doer.
// A nil doer uses a plain http.Client with the given timeout.
func NewBuilder(doer goopenai.HTTPDoer, timeout time.Duration) providers.ClientBuilder {
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return func(desc models.ProviderDescriptor, credential string) (providers.Client, error) {
		return NewClient(desc, credential, doer), nil
	}
}

// NewClient creates a client for desc using credential as the bearer token
func NewClient(desc models.ProviderDescriptor, credential string, doer goopenai.HTTPDoer) *Client {
	cfg := goopenai.DefaultConfig(credential)
	if desc.BaseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(desc.BaseURL, "/")
	}
	cfg.HTTPClient = &headerCapturingDoer{next: doer}

	return &Client{
		providerID: desc.ID,
		client:     goopenai.NewClientWithConfig(cfg),
	}
}

// ChatCompletion performs a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	ctx, sink := withHeaderSink(ctx)

	resp, err := c.client.CreateChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, c.convertError(err, sink.get())
	}

	if len(resp.Choices) == 0 {
		return nil, providers.NewProviderError(c.providerID, "EMPTY_RESPONSE", "response contained no choices", http.StatusOK, true, nil)
	}

	return &providers.ChatResponse{
		ID:    resp.ID,
		Model: resp.Model,
		Text:  resp.Choices[0].Message.Content,
		Usage: models.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Provider: c.providerID,
		Latency:  time.Since(startTime),
	}, nil
}

func (c *Client) buildRequest(req *providers.ChatRequest) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = goopenai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	return goopenai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	}
}

// convertError maps go-openai errors onto providers.ProviderError
func (c *Client) convertError(err error, headers http.Header) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.NewProviderError(
			c.providerID,
			apiErr.Type,
			apiErr.Message,
			apiErr.HTTPStatusCode,
			providers.RetryableStatus(apiErr.HTTPStatusCode),
			err,
		).WithHeaders(headers)
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return providers.NewProviderError(
			c.providerID,
			"REQUEST_ERROR",
			reqErr.Error(),
			reqErr.HTTPStatusCode,
			providers.RetryableStatus(reqErr.HTTPStatusCode),
			err,
		).WithHeaders(headers)
	}

	return providers.NewProviderError(c.providerID, "HTTP_ERROR", "HTTP request failed", 0, true, err)
}

type headerSinkKey struct{}

// headerSink holds the headers of the most recent response on a request context
type headerSink struct {
	mu      sync.Mutex
	headers http.Header
}

func (s *headerSink) set(h http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.headers = h
}

func (s *headerSink) get() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers
}

func withHeaderSink(ctx context.Context) (context.Context, *headerSink) {
	sink := &headerSink{}
	return context.WithValue(ctx, headerSinkKey{}, sink), sink
}

// headerCapturingDoer records response headers into the sink carried by the
// request context. go-openai drops headers from error responses otherwise.
type headerCapturingDoer struct {
	next goopenai.HTTPDoer
}

func (d *headerCapturingDoer) Do(req *http.Request) (*http.Response, error) {
	resp, err := d.next.Do(req)
	if resp != nil {
		if sink, ok := req.Context().Value(headerSinkKey{}).(*headerSink); ok {
			sink.set(resp.Header.Clone())
		}
	}
	return resp, err
}
