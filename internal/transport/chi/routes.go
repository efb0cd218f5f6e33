package chi

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers the API routes on r.
func Mount(r chi.Router, s *Server) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Post("/chat", s.Chat)
		r.Get("/usage", s.Usage)
	})
}
