package providers

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

// MockClient is a mock implementation of Client
type MockClient struct {
	mock.Mock
}

func (m *MockClient) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChatResponse), args.Error(1)
}

func TestAdapter_Invoke(t *testing.T) {
	ctx := context.Background()
	req := &ChatRequest{Model: "gpt-4o-mini", Messages: []models.Message{{Role: "user", Content: "hi"}}}

	client := new(MockClient)
	client.On("ChatCompletion", ctx, req).Return(&ChatResponse{Text: "hello"}, nil).Twice()

	builds := 0
	adapter := NewAdapter(map[models.SDKKind]ClientBuilder{
		models.SDKOpenAI: func(desc models.ProviderDescriptor, credential string) (Client, error) {
			builds++
			assert.Equal(t, "sk-test", credential)
			return client, nil
		},
	}, zap.NewNop())

	desc := models.ProviderDescriptor{ID: "openai", SDK: models.SDKOpenAI}

	resp, err := adapter.Invoke(ctx, desc, "sk-test", req)
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, "openai", resp.Provider)

	_, err = adapter.Invoke(ctx, desc, "sk-test", req)
	require.NoError(t, err)

	assert.Equal(t, 1, builds, "client must be built once and reused")
	assert.Equal(t, 1, adapter.CachedClients())
	client.AssertExpectations(t)
}

func TestAdapter_UnsupportedSDK(t *testing.T) {
	adapter := NewAdapter(nil, zap.NewNop())

	_, err := adapter.Invoke(context.Background(),
		models.ProviderDescriptor{ID: "mystery", SDK: models.SDKKind("cohere")},
		"key", &ChatRequest{})

	var provErr *ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, "UNSUPPORTED_SDK", provErr.Code)
	assert.Equal(t, 0, adapter.CachedClients())
}

func TestAdapter_BuilderError(t *testing.T) {
	adapter := NewAdapter(map[models.SDKKind]ClientBuilder{
		models.SDKAnthropic: func(models.ProviderDescriptor, string) (Client, error) {
			return nil, errors.New("bad config")
		},
	}, zap.NewNop())

	_, err := adapter.Invoke(context.Background(),
		models.ProviderDescriptor{ID: "anthropic", SDK: models.SDKAnthropic}, "key", &ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad config")
}

func TestAdapter_ConcurrentBuildsOnce(t *testing.T) {
	var mu sync.Mutex
	builds := 0

	client := new(MockClient)
	client.On("ChatCompletion", mock.Anything, mock.Anything).Return(&ChatResponse{Text: "ok"}, nil)

	adapter := NewAdapter(map[models.SDKKind]ClientBuilder{
		models.SDKOpenAI: func(models.ProviderDescriptor, string) (Client, error) {
			mu.Lock()
			builds++
			mu.Unlock()
			return client, nil
		},
	}, zap.NewNop())

	desc := models.ProviderDescriptor{ID: "groq-free", SDK: models.SDKOpenAI}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = adapter.Invoke(context.Background(), desc, "k", &ChatRequest{})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, builds)
}

func TestProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewProviderError("openai", "HTTP_ERROR", "HTTP request failed", 0, true, cause)

	assert.Equal(t, "openai: HTTP request failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, err.ResponseHeaders())

	rateLimited := NewProviderError("groq-free", "rate_limit_error", "slow down", 429, true, nil)
	assert.Equal(t, "groq-free: status 429: slow down", rateLimited.Error())
}

func TestCredentials(t *testing.T) {
	t.Setenv("LLM_ROUTER_TEST_KEY", "secret")
	t.Setenv("LLM_ROUTER_EMPTY_KEY", "")

	env := EnvCredentials{}
	v, ok := env.Lookup("LLM_ROUTER_TEST_KEY")
	assert.True(t, ok)
	assert.Equal(t, "secret", v)

	_, ok = env.Lookup("LLM_ROUTER_EMPTY_KEY")
	assert.False(t, ok, "empty value counts as missing")

	_, ok = env.Lookup("LLM_ROUTER_UNSET_KEY")
	assert.False(t, ok)

	static := StaticCredentials{"A": "1", "B": ""}
	_, ok = static.Lookup("A")
	assert.True(t, ok)
	_, ok = static.Lookup("B")
	assert.False(t, ok)
}
