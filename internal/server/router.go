package server

import (
	"net/http"

	"github.com/deldesir/gateway/internal/api/handlers"
	"github.com/deldesir/gateway/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

// RouterConfig wires handlers into the HTTP surface. A nil AuthValidator
// leaves every route open. A nil KnowledgeHandler omits the knowledge routes.
type RouterConfig struct {
	AuthValidator    middleware.AuthValidator
	HealthHandler    *handlers.HealthHandler
	ChatHandler      *handlers.ChatHandler
	PersonaHandler   *handlers.PersonaHandler
	KnowledgeHandler *handlers.KnowledgeHandler
	MemoryHandler    *handlers.MemoryHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	health := cfg.HealthHandler
	if health == nil {
		health = handlers.NewHealthHandler(nil)
	}
	r.Get("/health", health.Health)

	r.Group(func(r chi.Router) {
		if cfg.AuthValidator != nil {
			r.Use(middleware.APIKeyAuth(cfg.AuthValidator))
		}

		if cfg.ChatHandler != nil {
			r.Route("/chat", func(r chi.Router) {
				r.With(middleware.OptionalUserID).Get("/ws", cfg.ChatHandler.Stream)

				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireUserID)
					r.Post("/", cfg.ChatHandler.Chat)
					r.Get("/state", cfg.ChatHandler.State)
					r.Delete("/state", cfg.ChatHandler.Reset)
				})
			})
		}

		if cfg.PersonaHandler != nil {
			r.Route("/personas", func(r chi.Router) {
				r.Get("/", cfg.PersonaHandler.List)
				r.Post("/", cfg.PersonaHandler.Create)
				r.Get("/{id}", cfg.PersonaHandler.Get)
				r.Patch("/{id}", cfg.PersonaHandler.Update)
				r.Delete("/{id}", cfg.PersonaHandler.Delete)
			})
		}

		if cfg.KnowledgeHandler != nil {
			r.Route("/knowledge", func(r chi.Router) {
				r.Post("/items", cfg.KnowledgeHandler.Create)
				r.Get("/items", cfg.KnowledgeHandler.List)
				r.Get("/items/{id}", cfg.KnowledgeHandler.Get)
				r.Delete("/items/{id}", cfg.KnowledgeHandler.Delete)
				r.Post("/reindex", cfg.KnowledgeHandler.Reindex)
				r.Get("/reindex/{id}", cfg.KnowledgeHandler.GetReindexJob)
			})
		}

		if cfg.MemoryHandler != nil {
			r.Post("/memory/search", cfg.MemoryHandler.Search)
		}
	})

	return r
}
