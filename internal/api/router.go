package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/vellum/internal/sceneservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *sceneservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/scenes", h.ListScenes)
	r.Post("/scenes", h.CreateScene)
	r.Get("/search", h.Search)
	r.Route("/scenes/{id}", func(r chi.Router) {
		r.Get("/", h.GetScene)
		r.Put("/", h.CommitScene)
		r.Delete("/", h.DeleteScene)

		r.Post("/undo", h.Undo)
		r.Post("/redo", h.Redo)
		r.Get("/history", h.History)
		r.Post("/sync-indices", h.SyncIndices)
		r.Get("/validate", h.Validate)
		r.Post("/export", h.Export)
	})

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
