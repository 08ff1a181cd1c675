package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/llm-router/models"
	"go.uber.org/zap"
)

var _ Invoker = (*Adapter)(nil)

// Adapter implements Invoker by dispatching to a Client built for the
// provider's SDK kind. Clients are created on first use and kept for the
// lifetime of the Adapter.
type Adapter struct {
	mu       sync.RWMutex
	clients  map[string]Client
	builders map[models.SDKKind]ClientBuilder
	logger   *zap.Logger
}

// NewAdapter creates an adapter with the given builders keyed by SDK kind
func NewAdapter(builders map[models.SDKKind]ClientBuilder, logger *zap.Logger) *Adapter {
	b := make(map[models.SDKKind]ClientBuilder, len(builders))
	for kind, builder := range builders {
		b[kind] = builder
	}
	return &Adapter{
		clients:  make(map[string]Client),
		builders: b,
		logger:   logger,
	}
}

// Invoke performs a chat completion against the provider described by desc
func (a *Adapter) Invoke(ctx context.Context, desc models.ProviderDescriptor, credential string, req *ChatRequest) (*ChatResponse, error) {
	client, err := a.client(desc, credential)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := client.ChatCompletion(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Provider == "" {
		resp.Provider = desc.ID
	}
	if resp.Latency == 0 {
		resp.Latency = time.Since(start)
	}
	return resp, nil
}

// CachedClients returns the number of clients built so far
func (a *Adapter) CachedClients() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.clients)
}

func (a *Adapter) client(desc models.ProviderDescriptor, credential string) (Client, error) {
	a.mu.RLock()
	client, ok := a.clients[desc.ID]
	a.mu.RUnlock()
	if ok {
		return client, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if client, ok := a.clients[desc.ID]; ok {
		return client, nil
	}

	builder, ok := a.builders[desc.SDK]
	if !ok {
		return nil, NewProviderError(desc.ID, "UNSUPPORTED_SDK",
			fmt.Sprintf("unsupported sdk %q", desc.SDK), 0, false, nil)
	}

	client, err := builder(desc, credential)
	if err != nil {
		return nil, NewProviderError(desc.ID, "CLIENT_ERROR", "failed to build client", 0, false, err)
	}

	a.clients[desc.ID] = client
	a.logger.Debug("provider client created",
		zap.String("provider", desc.ID),
		zap.String("sdk", string(desc.SDK)))

	return client, nil
}
