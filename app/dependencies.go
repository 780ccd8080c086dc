package app

import (
	"context"
	"fmt"

	"github.com/upb/svc-users/config"
	"github.com/upb/svc-users/handlers"
	"github.com/upb/svc-users/internal/observability"
	"github.com/upb/svc-users/middleware"
	"github.com/upb/svc-users/oidc"
	"github.com/upb/svc-users/repositories"
	"github.com/upb/svc-users/repositories/memory"
	"github.com/upb/svc-users/repositories/postgres"
	"github.com/upb/svc-users/services/profile"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	DB      *postgres.DB // nil with the memory store
	Logger  *zap.Logger
	Metrics *observability.Metrics

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Profiles repositories.ProfileRepository
	Store    repositories.HealthChecker

	// Auth
	KeySet         *oidc.KeySet
	Verifier       *oidc.Verifier
	AuthMiddleware *middleware.AuthMiddleware

	// Services
	ProfileService *profile.Service

	// Handlers
	ProfileHandler *handlers.ProfileHandler
	HealthHandler  *handlers.HealthHandler
	OpenAPIHandler *handlers.OpenAPIHandler
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
	}

	if err := deps.initStore(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps.initAuth(cfg)

	deps.ProfileService = profile.NewService(deps.Profiles, deps.Metrics, logger)

	if err := deps.initHandlers(); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("store", cfg.StoreDriver),
		zap.String("issuer", cfg.OIDC.Issuer))
	return deps, nil
}

// initStore opens the profile store selected by STORE_DRIVER
func (d *Dependencies) initStore(ctx context.Context, cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMemory {
		repo := memory.NewProfileRepository()
		d.Profiles = repo
		d.Store = repo
		d.Logger.Warn("using in-memory profile store, data is lost on restart")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	return d.useFactory(ctx, factory)
}

func (d *Dependencies) useFactory(ctx context.Context, factory *postgres.RepositoryFactory) error {
	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if d.Config.Database.InitSchema {
		if err := factory.InitSchema(ctx); err != nil {
			_ = factory.Close()
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		d.Logger.Info("database schema initialized")
	}

	repos := factory.NewRepositories()
	d.Profiles = repos.Profiles
	d.Store = d.DB

	d.Logger.Info("repositories initialized")
	return nil
}

// initAuth builds the process-wide key set and the verifier that shares it
func (d *Dependencies) initAuth(cfg *config.Config) {
	d.KeySet = oidc.NewKeySet(oidc.KeySetConfig{
		URL:         cfg.OIDC.JWKSURI,
		HTTPTimeout: cfg.OIDC.HTTPTimeout,
	}, d.Logger)

	d.Verifier = oidc.NewVerifier(oidc.VerifierConfig{
		Issuer:    cfg.OIDC.Issuer,
		Audience:  cfg.OIDC.Audience,
		ClockSkew: cfg.OIDC.ClockSkew,
	}, d.KeySet, d.Logger)

	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Verifier, d.Metrics, d.Logger)
	d.Logger.Info("token verification initialized",
		zap.String("jwks_uri", cfg.OIDC.JWKSURI),
		zap.String("audience", cfg.OIDC.Audience))
}

func (d *Dependencies) initHandlers() error {
	openapi, err := handlers.NewOpenAPIHandler(d.Logger)
	if err != nil {
		return err
	}
	d.OpenAPIHandler = openapi
	d.ProfileHandler = handlers.NewProfileHandler(d.ProfileService, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.Store, d.Logger)
	return nil
}

// Close gracefully shuts down all dependencies. It is safe to call more than once.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Close database connection
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
