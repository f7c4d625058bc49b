package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vantor-labs/vantor/internal/api"
	"github.com/vantor-labs/vantor/internal/api/handlers"
	"github.com/vantor-labs/vantor/internal/api/middleware"
)

type RouterConfig struct {
	AuthValidator    middleware.AuthValidator
	KnowledgeHandler *handlers.KnowledgeHandler
	ChatbotHandler   *handlers.ChatbotHandler
	LeadHandler      *handlers.LeadHandler
	ChatHandler      *handlers.ChatHandler
	StatusHandler    *handlers.StatusHandler
	AuthHandler      *handlers.AuthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/status", cfg.StatusHandler.Get)

	r.Group(func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(cfg.AuthValidator))

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/", cfg.KnowledgeHandler.Create)
			r.Get("/", cfg.KnowledgeHandler.List)
			r.Get("/{id}", cfg.KnowledgeHandler.Get)
			r.Delete("/{id}", cfg.KnowledgeHandler.Delete)
		})

		r.Route("/chatbots", func(r chi.Router) {
			r.Post("/", cfg.ChatbotHandler.Create)
			r.Get("/", cfg.ChatbotHandler.List)
			r.Get("/{id}", cfg.ChatbotHandler.Get)
			r.Put("/{id}", cfg.ChatbotHandler.Update)
			r.Delete("/{id}", cfg.ChatbotHandler.Delete)
		})

		r.Route("/leads", func(r chi.Router) {
			r.Get("/", cfg.LeadHandler.List)
			r.Patch("/{id}/status", cfg.LeadHandler.UpdateStatus)
		})

		r.Post("/chat/{chatbotID}/stream", cfg.ChatHandler.Stream)
	})

	r.Post("/workspaces", cfg.AuthHandler.CreateWorkspace)
	r.Post("/apikeys", cfg.AuthHandler.CreateAPIKey)

	return r
}
