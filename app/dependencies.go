// Package app wires configuration, storage, providers and the cascade router
// into a single set of dependencies shared by the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/upb/llm-router/config"
	"github.com/upb/llm-router/handlers"
	"github.com/upb/llm-router/middleware"
	"github.com/upb/llm-router/models"
	"github.com/upb/llm-router/repositories"
	"github.com/upb/llm-router/repositories/jsonfile"
	"github.com/upb/llm-router/repositories/postgres"
	"github.com/upb/llm-router/repositories/sqlite"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/providers/anthropic"
	"github.com/upb/llm-router/services/providers/openai"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/services/strikes"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Catalog of providers and profiles
	Catalog *config.Catalog

	// StrikeStore is nil when strikes live in memory only
	StrikeStore repositories.StrikeRepository

	// Services
	Tracker *strikes.Tracker
	Adapter *providers.Adapter
	Router  *routing.Router

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// Option customizes dependency construction
type Option func(*options)

type options struct {
	credentials providers.CredentialSource
	httpClient  *http.Client
}

// WithCredentials replaces the environment as the source of provider API keys
func WithCredentials(c providers.CredentialSource) Option {
	return func(o *options) {
		o.credentials = c
	}
}

// WithHTTPClient shares one HTTP client between all provider SDK clients
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	o := &options{credentials: providers.EnvCredentials{}}
	for _, opt := range opts {
		opt(o)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initCatalog(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize catalog: %w", err)
	}

	if err := deps.initStrikeStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize strike store: %w", err)
	}

	deps.Tracker = strikes.NewTracker(ctx, deps.StrikeStore, logger)
	deps.initProviders(cfg, o.httpClient)
	deps.Router = routing.NewRouter(deps.Catalog, deps.Tracker, deps.Adapter, o.credentials, logger)
	deps.AuthMiddleware = middleware.NewAuthMiddleware(cfg.Auth.JWTSecret, cfg.Auth.Issuer, logger,
		middleware.WithErrorWriter(handlers.HandleServiceError))

	logger.Info("all dependencies initialized successfully",
		zap.String("strike_store", cfg.Strikes.Backend),
		zap.Strings("profiles", deps.Catalog.ProfileNames()),
		zap.Bool("auth_enabled", deps.AuthMiddleware.Enabled()))

	return deps, nil
}

// initCatalog loads the provider and profile definitions. Validation findings
// are logged and never fatal.
func (d *Dependencies) initCatalog(cfg *config.Config) error {
	catalog, err := config.LoadCatalog(cfg.Catalog.ProvidersFile, cfg.Catalog.ProfilesFile)
	if err != nil {
		return err
	}

	for _, warning := range catalog.Validate() {
		d.Logger.Warn("catalog validation", zap.String("warning", warning))
	}

	d.Catalog = catalog
	return nil
}

// initStrikeStore opens the configured strike repository
func (d *Dependencies) initStrikeStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.Strikes.Backend {
	case config.StrikeStoreMemory:
		d.Logger.Info("strike state kept in memory only")

	case config.StrikeStoreFile:
		d.StrikeStore = jsonfile.NewStrikeRepository(cfg.Strikes.FilePath, d.Logger)
		d.Logger.Info("strike state persisted to file", zap.String("path", cfg.Strikes.FilePath))

	case config.StrikeStoreSQLite:
		repo, err := sqlite.NewStrikeRepository(cfg.Strikes.SQLitePath, d.Logger)
		if err != nil {
			return err
		}
		d.StrikeStore = repo
		d.Logger.Info("strike state persisted to sqlite", zap.String("path", cfg.Strikes.SQLitePath))

	case config.StrikeStorePostgres:
		db, err := postgres.NewDB(cfg.Database, d.Logger)
		if err != nil {
			return err
		}
		if err := db.InitSchema(ctx); err != nil {
			_ = db.Close()
			return err
		}
		d.StrikeStore = postgres.NewStrikeRepository(db, d.Logger)

	default:
		return fmt.Errorf("unknown strike store %q", cfg.Strikes.Backend)
	}

	return nil
}

// initProviders registers one client builder per supported SDK
func (d *Dependencies) initProviders(cfg *config.Config, httpClient *http.Client) {
	// a nil *http.Client must stay a nil interface for the openai builder
	var doer goopenai.HTTPDoer
	if httpClient != nil {
		doer = httpClient
	}

	d.Adapter = providers.NewAdapter(map[models.SDKKind]providers.ClientBuilder{
		models.SDKOpenAI:    openai.NewBuilder(doer, cfg.Providers.RequestTimeout),
		models.SDKAnthropic: anthropic.NewBuilder(httpClient, cfg.Providers.RequestTimeout),
	}, d.Logger)
}

// StorePinger returns the strike store when it can be health checked
func (d *Dependencies) StorePinger() repositories.Pinger {
	if p, ok := d.StrikeStore.(repositories.Pinger); ok {
		return p
	}
	return nil
}

// Close releases the strike store
func (d *Dependencies) Close() error {
	if d.StrikeStore == nil {
		return nil
	}
	if err := d.StrikeStore.Close(); err != nil {
		return fmt.Errorf("failed to close strike store: %w", err)
	}
	d.Logger.Info("strike store closed")
	return nil
}
