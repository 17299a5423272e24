package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bpparchive/archive/internal/app"
	"github.com/bpparchive/archive/internal/auth"
	"github.com/bpparchive/archive/internal/infra"
	"github.com/bpparchive/archive/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
)

// backend is the database and service graph a command runs against.
type backend struct {
	cfg   *infra.Config
	pool  *pgxpool.Pool
	repos service.Repos
	svcs  *app.Services
}

// openBackend connects to Postgres. withBucket also connects the object store
// and enforces the production config checks.
func openBackend(ctx context.Context, logger *slog.Logger, withBucket bool) (*backend, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var store service.ObjectStore
	if withBucket {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		if store, err = infra.NewObjectStore(ctx, cfg); err != nil {
			return nil, fmt.Errorf("object store: %w", err)
		}
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	repos := service.NewRepos()
	svcs, err := app.NewServices(app.RouterDeps{
		Pool:                    pool,
		Repos:                   repos,
		Store:                   store,
		JWTMgr:                  auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAdminExpiry),
		Logger:                  logger,
		ImportUploadConcurrency: cfg.ImportUploadConcurrency,
		ImportMaxBytes:          cfg.ImportMaxBytes,
		DailyExcludedCharacters: cfg.ExcludedCharacters(),
		DailyCacheSize:          cfg.DailyCacheSize,
		AdminLoginRateLimit:     cfg.AdminLoginRateLimit,
	})
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &backend{cfg: cfg, pool: pool, repos: repos, svcs: svcs}, nil
}

func (b *backend) Close() {
	b.pool.Close()
}
