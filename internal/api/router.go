package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/najimovi/starting-ragchatbot-codebase/internal/metrics"
)

// NewRouter wires the API routes. A non-empty staticDir is served at the root.
func NewRouter(apiHandler *APIHandler, staticDir string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Post("/query", apiHandler.QueryHandler)
		r.Get("/courses", apiHandler.CoursesHandler)
		r.Post("/session/clear", apiHandler.ClearSessionHandler)
	})

	r.Handle("/metrics", metrics.Handler())

	if staticDir != "" {
		fs := http.FileServer(http.Dir(staticDir))
		r.Handle("/*", fs)
	}

	return r
}
