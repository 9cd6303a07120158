package server

import (
	"net/http"

	"github.com/andino-labs/policychat/internal/api"
	"github.com/andino-labs/policychat/internal/api/handlers"
	"github.com/andino-labs/policychat/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	AuthValidator        middleware.AuthValidator
	ChatRateLimiter      *middleware.RateLimiter
	AuthHandler          *handlers.AuthHandler
	ChatHandler          *handlers.ChatHandler
	DocumentHandler      *handlers.DocumentHandler
	KnowledgeBaseHandler *handlers.KnowledgeBaseHandler
	UtilitiesHandler     *handlers.UtilitiesHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// uploads carry whole PDFs
	const maxBodyBytes int64 = 50 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/login", cfg.AuthHandler.Login)

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(cfg.AuthValidator))

		r.Post("/logout", cfg.AuthHandler.Logout)

		r.Route("/chat", func(r chi.Router) {
			if cfg.ChatRateLimiter != nil {
				r.With(cfg.ChatRateLimiter.Middleware).Post("/", cfg.ChatHandler.Stream)
			} else {
				r.Post("/", cfg.ChatHandler.Stream)
			}

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", cfg.ChatHandler.ListSessions)
				r.Get("/{id}", cfg.ChatHandler.GetSession)
				r.Delete("/{id}", cfg.ChatHandler.DeleteSession)
				r.Get("/{id}/download", cfg.ChatHandler.DownloadChat)
				r.Post("/{id}/messages/{messageID}/rate", cfg.ChatHandler.RateMessage)
			})
		})

		r.Route("/knowledge-bases", func(r chi.Router) {
			r.Post("/", cfg.KnowledgeBaseHandler.Create)
			r.Get("/", cfg.KnowledgeBaseHandler.List)
			r.Get("/{id}", cfg.KnowledgeBaseHandler.Get)
			r.Put("/{id}", cfg.KnowledgeBaseHandler.Update)
			r.Delete("/{id}", cfg.KnowledgeBaseHandler.Delete)

			r.Post("/{id}/documents", cfg.DocumentHandler.Upload)
			r.Get("/{id}/documents", cfg.DocumentHandler.ListByKnowledgeBase)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Get("/", cfg.DocumentHandler.List)
			r.Get("/{id}", cfg.DocumentHandler.Get)
			r.Put("/{id}", cfg.DocumentHandler.Update)
			r.Delete("/{id}", cfg.DocumentHandler.Delete)
		})

		r.Post("/utilities/extract-text", cfg.UtilitiesHandler.ExtractText)
	})

	return r
}
