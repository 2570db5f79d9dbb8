package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/helioscope-ai/helioscope/internal/api"
	"github.com/helioscope-ai/helioscope/internal/api/handlers"
	"github.com/helioscope-ai/helioscope/internal/api/middleware"
)

type RouterConfig struct {
	PaperHandler  *handlers.PaperHandler
	SearchHandler *handlers.SearchHandler
	ChatHandler   *handlers.ChatHandler
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

	r.Route("/papers", func(r chi.Router) {
		r.Post("/", cfg.PaperHandler.Ingest)
		r.Get("/", cfg.PaperHandler.List)
		r.Get("/{id}", cfg.PaperHandler.Get)
		r.Put("/{id}", cfg.PaperHandler.Update)
		r.Delete("/{id}", cfg.PaperHandler.Delete)
	})

	r.Post("/search", cfg.SearchHandler.Search)

	r.Post("/chat", cfg.ChatHandler.Chat)
	r.Get("/chat/history/{id}", cfg.ChatHandler.History)
	r.Get("/chat/stats/{id}", cfg.ChatHandler.Stats)

	r.Get("/stats", cfg.PaperHandler.Stats)

	return r
}
