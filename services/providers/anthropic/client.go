// Package anthropic invokes the Anthropic Messages API over net/http.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

var _ providers.Client = (*Client)(nil)

// Client implements providers.Client for the Anthropic Messages API
type Client struct {
	providerID string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewBuilder returns a providers.ClientBuilder sharing httpClient across providers.
// A nil httpClient gets one with the given timeout.
func NewBuilder(httpClient *http.Client, timeout time.Duration) providers.ClientBuilder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	return func(desc models.ProviderDescriptor, credential string) (providers.Client, error) {
		return NewClient(desc, credential, httpClient), nil
	}
}

// NewClient creates a client for desc authenticated with credential
func NewClient(desc models.ProviderDescriptor, credential string, httpClient *http.Client) *Client {
	baseURL := desc.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		providerID: desc.ID,
		apiKey:     credential,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// ChatCompletion performs a chat completion request
func (c *Client) ChatCompletion(ctx context.Context, req *providers.ChatRequest) (*providers.ChatResponse, error) {
	startTime := time.Now()

	reqBody, err := json.Marshal(buildRequest(req))
	if err != nil {
		return nil, providers.NewProviderError(c.providerID, "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(reqBody))
	if err != nil {
		return nil, providers.NewProviderError(c.providerID, "REQUEST_ERROR", "failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(c.providerID, "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(c.providerID, "READ_ERROR", "failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(httpResp, respBody)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, providers.NewProviderError(c.providerID, "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	var text strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &providers.ChatResponse{
		ID:    msgResp.ID,
		Model: msgResp.Model,
		Text:  text.String(),
		Usage: models.Usage{
			InputTokens:  msgResp.Usage.InputTokens,
			OutputTokens: msgResp.Usage.OutputTokens,
		},
		Provider: c.providerID,
		Latency:  time.Since(startTime),
	}, nil
}

// buildRequest moves system messages into the top-level system field
func buildRequest(req *providers.ChatRequest) *messagesRequest {
	out := &messagesRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Messages:    make([]message, 0, len(req.Messages)),
	}

	var system []string
	for _, msg := range req.Messages {
		if msg.Role == "system" {
			system = append(system, msg.Content)
			continue
		}
		out.Messages = append(out.Messages, message{Role: msg.Role, Content: msg.Content})
	}
	out.System = strings.Join(system, "\n\n")

	return out
}

func (c *Client) handleErrorResponse(resp *http.Response, body []byte) error {
	statusCode := resp.StatusCode
	retryable := providers.RetryableStatus(statusCode)

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(c.providerID, "UNKNOWN_ERROR", string(body), statusCode, retryable, err).
			WithHeaders(resp.Header.Clone())
	}

	return providers.NewProviderError(
		c.providerID,
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		nil,
	).WithHeaders(resp.Header.Clone())
}

// Anthropic-specific request/response types

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Content []contentBlock `json:"content"`
	Usage   usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
