package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/services/providers"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Environment: "test",
		Strikes: config.StrikeStoreConfig{
			Backend:    backend,
			FilePath:   filepath.Join(dir, "tracker-state.json"),
			SQLitePath: filepath.Join(dir, "strikes.db"),
		},
		Providers: config.ProvidersConfig{RequestTimeout: 5 * time.Second},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func TestNewDependencies(t *testing.T) {
	for _, backend := range []string{config.StrikeStoreMemory, config.StrikeStoreFile, config.StrikeStoreSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)

			deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t),
				WithCredentials(providers.StaticCredentials{}))
			require.NoError(t, err)

			assert.NotNil(t, deps.Catalog)
			assert.NotNil(t, deps.Tracker)
			assert.NotNil(t, deps.Adapter)
			assert.NotNil(t, deps.Router)
			assert.NotNil(t, deps.AuthMiddleware)
			assert.False(t, deps.AuthMiddleware.Enabled())
			assert.NotEmpty(t, deps.Catalog.ProfileNames())

			if backend == config.StrikeStoreMemory {
				assert.Nil(t, deps.StrikeStore)
			} else {
				assert.NotNil(t, deps.StrikeStore)
			}
			if backend == config.StrikeStoreSQLite {
				assert.NotNil(t, deps.StorePinger())
			} else {
				assert.Nil(t, deps.StorePinger())
			}

			assert.NoError(t, deps.Close())
		})
	}
}

func TestNewDependencies_StrikesSurviveRestart(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.StrikeStoreSQLite)

	deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	deps.Tracker.Strike(ctx, "groq", "429", models.RenewalDaily, nil)
	require.NoError(t, deps.Close())

	deps, err = NewDependencies(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer deps.Close()

	rec, ok := deps.Tracker.Lookup("groq")
	require.True(t, ok)
	assert.Equal(t, "429", rec.Reason)
}

func TestNewDependencies_UnknownBackend(t *testing.T) {
	cfg := testConfig(t, "redis")

	_, err := NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	assert.Error(t, err)
}
