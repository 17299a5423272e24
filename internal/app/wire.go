package app

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bpparchive/archive/internal/auth"
	"github.com/bpparchive/archive/internal/guard"
	"github.com/bpparchive/archive/internal/handler"
	adminhandler "github.com/bpparchive/archive/internal/handler/admin"
	"github.com/bpparchive/archive/internal/repository"
	"github.com/bpparchive/archive/internal/service"
	"github.com/go-chi/chi/v5"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Pool   repository.TxBeginner
	Ping   handler.Pinger
	Repos  service.Repos
	Store  service.ObjectStore
	JWTMgr *auth.JWTManager
	Logger *slog.Logger

	CORSAllowedOrigins      string
	ImportUploadConcurrency int
	ImportMaxBytes          int64
	DailyExcludedCharacters []string
	DailyCacheSize          int
	AdminLoginRateLimit     int
}

// Services bundles the services NewRouter builds, for reuse by other entry points.
type Services struct {
	Catalog    *service.CatalogService
	Daily      *service.DailyService
	Import     *service.ImportService
	Characters *service.CharacterService
	Records    *service.RecordService
	Admin      *service.AdminService
	Orphans    *service.OrphanService
}

// NewServices wires the service layer.
func NewServices(deps RouterDeps) (*Services, error) {
	pool, repos, logger := deps.Pool, deps.Repos, deps.Logger

	daily, err := service.NewDailyService(pool, repos, deps.DailyExcludedCharacters, deps.DailyCacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("daily service: %w", err)
	}
	cleaner := service.NewRemoteCleaner(deps.Store, guard.NewCircuitBreaker(5, 30*time.Second), logger)

	return &Services{
		Catalog:    service.NewCatalogService(pool, repos),
		Daily:      daily,
		Import:     service.NewImportService(pool, repos, deps.Store, guard.NewInFlightGuard(), deps.ImportUploadConcurrency, logger),
		Characters: service.NewCharacterService(pool, repos, logger),
		Records:    service.NewRecordService(pool, repos, cleaner, logger),
		Admin:      service.NewAdminService(pool, repos.AdminKeys, deps.JWTMgr, guard.NewRateLimiter(deps.AdminLoginRateLimit, time.Minute), logger),
		Orphans:    service.NewOrphanService(pool, repos, cleaner, logger),
	}, nil
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) (chi.Router, error) {
	svcs, err := NewServices(deps)
	if err != nil {
		return nil, err
	}
	logger := deps.Logger

	// Handlers
	catalogHandler := handler.NewCatalogHandler(svcs.Catalog)
	dailyHandler := handler.NewDailyHandler(svcs.Daily)

	// Admin handlers
	importAdmin := adminhandler.NewImportHandler(svcs.Import, deps.ImportMaxBytes)
	recordAdmin := adminhandler.NewRecordHandler(svcs.Records)
	tagAdmin := adminhandler.NewTagHandler(svcs.Characters)
	keyAdmin := adminhandler.NewKeyHandler(svcs.Admin)
	orphanAdmin := adminhandler.NewOrphanHandler(svcs.Orphans)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(deps.Ping))

	// Public archive
	r.Get("/", catalogHandler.Home)
	r.Get("/search", catalogHandler.Search)
	r.Get("/games", catalogHandler.ListGames)
	r.Get("/games/{id}", catalogHandler.GetGame)
	r.Get("/books/{id}", catalogHandler.GetBook)
	r.Get("/users/{id}", catalogHandler.GetUser)
	r.Get("/characters/{id}", catalogHandler.GetCharacter)

	r.Route("/daily", func(r chi.Router) {
		r.Get("/", dailyHandler.GetPanel)
		r.Post("/guess", dailyHandler.Guess)
	})

	r.Route("/admin", func(r chi.Router) {
		// Login (no auth)
		r.Post("/login", keyAdmin.Login)

		// Admin-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(deps.JWTMgr))

			r.Route("/import", func(r chi.Router) {
				r.Post("/", importAdmin.Import)
				r.Post("/preview", importAdmin.Preview)
			})

			r.Route("/records", func(r chi.Router) {
				r.Get("/kinds", recordAdmin.Kinds)
				r.Get("/{kind}", recordAdmin.List)
				r.Post("/{kind}", recordAdmin.Create)
				r.Get("/{kind}/{id}", recordAdmin.Get)
				r.Patch("/{kind}/{id}", recordAdmin.Update)
				r.Delete("/{kind}/{id}", recordAdmin.Delete)
			})

			r.Post("/pages/{id}/characters/{characterID}", tagAdmin.Tag)
			r.Delete("/pages/{id}/characters/{characterID}", tagAdmin.Untag)

			r.Route("/keys", func(r chi.Router) {
				r.Get("/", keyAdmin.List)
				r.Post("/", keyAdmin.Create)
				r.Delete("/{id}", keyAdmin.Delete)
			})

			r.Post("/orphans/sweep", orphanAdmin.Sweep)
		})
	})

	return r, nil
}
