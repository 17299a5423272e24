package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bpparchive/archive/internal/app"
	"github.com/bpparchive/archive/internal/auth"
	"github.com/bpparchive/archive/internal/infra"
	"github.com/bpparchive/archive/internal/service"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	logger.Info("connected to postgres")

	store, err := infra.NewObjectStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("object store: %w", err)
	}

	r, err := app.NewRouter(app.RouterDeps{
		Pool:                    pool,
		Ping:                    func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) },
		Repos:                   service.NewRepos(),
		Store:                   store,
		JWTMgr:                  auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAdminExpiry),
		Logger:                  logger,
		CORSAllowedOrigins:      cfg.CORSAllowedOrigins,
		ImportUploadConcurrency: cfg.ImportUploadConcurrency,
		ImportMaxBytes:          cfg.ImportMaxBytes,
		DailyExcludedCharacters: cfg.ExcludedCharacters(),
		DailyCacheSize:          cfg.DailyCacheSize,
		AdminLoginRateLimit:     cfg.AdminLoginRateLimit,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  60 * time.Second, // imports upload whole exports
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
