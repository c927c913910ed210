package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kailas-cloud/courseadvisor/internal/metrics"
)

// Handler wires the middleware stack and the API routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(JSONRecoverer(s.logger))
	r.Use(SessionMiddleware(s.auth))
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())
	s.Mount(r)
	return r
}
