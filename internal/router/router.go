package router

import (
	"net/http"

	"freshkeep-api/internal/handler"
	"freshkeep-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler           *handler.Handler
	ItemHandler       *handler.ItemHandler
	HistoryHandler    *handler.HistoryHandler
	BackupHandler     *handler.BackupHandler
	RecipeHandler     *handler.RecipeHandler
	AuthHandler       *handler.AuthHandler
	AdminHandler      *handler.AdminHandler
	SessionMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-Token", "X-User-ID", "X-User-Name", "X-User-Email"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// AUTHENTICATED routes (use Group to apply session middleware only to these)
	r.Group(func(r chi.Router) {
		if cfg.SessionMiddleware != nil {
			r.Use(cfg.SessionMiddleware)
		}

		r.Route("/api/v1", func(r chi.Router) {
			// Health check endpoints
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			// Auth endpoints
			if cfg.AuthHandler != nil {
				r.Route("/auth", func(r chi.Router) {
					r.Post("/session", cfg.AuthHandler.CreateSession)
					r.Post("/revoke", cfg.AuthHandler.RevokeSession)
					r.Post("/refresh", cfg.AuthHandler.RefreshSession)
				})
			}

			// Inventory item endpoints
			if cfg.ItemHandler != nil {
				r.Route("/items", func(r chi.Router) {
					r.Get("/", cfg.ItemHandler.List)
					r.Post("/", cfg.ItemHandler.Create)
					r.Delete("/", cfg.ItemHandler.DeleteAll)
					r.Post("/bulk", cfg.ItemHandler.BulkAdd)
					r.Post("/selected:delete", cfg.ItemHandler.DeleteSelected)
					r.Get("/expiring", cfg.ItemHandler.Expiring)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", cfg.ItemHandler.Get)
						r.Patch("/", cfg.ItemHandler.Update)
						r.Delete("/", cfg.ItemHandler.Delete)
					})
				})
			}

			// Immediate undo endpoint
			if cfg.HistoryHandler != nil {
				r.Post("/undo/{token}", cfg.HistoryHandler.InvokeUndo)

				r.Route("/history", func(r chi.Router) {
					r.Get("/", cfg.HistoryHandler.List)
					r.Post("/{id}/undo", cfg.HistoryHandler.UndoEntry)
				})
			}

			// Backup endpoints
			if cfg.BackupHandler != nil {
				r.Route("/backups", func(r chi.Router) {
					r.Get("/", cfg.BackupHandler.List)
					r.Post("/", cfg.BackupHandler.Create)
					r.Post("/restore-latest", cfg.BackupHandler.RestoreLatest)
					r.Route("/{id}", func(r chi.Router) {
						r.Post("/restore", cfg.BackupHandler.Restore)
						r.Post("/rescue", cfg.BackupHandler.Rescue)
						r.Delete("/", cfg.BackupHandler.Delete)
					})
				})
			}

			// Recipe endpoints
			if cfg.RecipeHandler != nil {
				r.Route("/recipes", func(r chi.Router) {
					r.Get("/matches", cfg.RecipeHandler.Matches)
					r.Post("/suggest", cfg.RecipeHandler.Suggest)
				})
			}

			// Admin endpoints
			if cfg.AdminHandler != nil {
				r.Get("/admin/stats", cfg.AdminHandler.Stats)
			}
		})
	})

	return r
}
