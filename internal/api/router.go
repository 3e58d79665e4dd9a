package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cpbuild/internal/pageservice"
)

// NewRouter creates a chi router with all API routes mounted.
// POST /convert is public and answers CORS preflight requests; everything
// else sits behind the Bearer token check when authEnabled is true.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *pageservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Preview conversion (public, CORS enabled).
	r.Group(func(r chi.Router) {
		r.Use(PreviewCORS)
		r.Options("/convert", h.ConvertPreflight)
		r.Post("/convert", h.Convert)
	})

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Built pages.
		r.Get("/pages", h.ListPages)
		r.Get("/pages/*", h.GetPage)
		r.Get("/sources/*", h.GetSource)

		// Rebuilds.
		r.Post("/rebuild", h.RebuildAll)
		r.Post("/rebuild/*", h.Rebuild)

		// Search.
		r.Get("/search", h.Search)

		// SSE endpoint (protected by same auth middleware).
		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
