package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrank/internal/metrics"
)

// NewRouter mounts the API on a chi router with the standard middleware chain.
func NewRouter(s *Server, apiKeys []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEvent(logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(s.NotFound)
	r.MethodNotAllowed(s.MethodNotAllowed)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/plan", s.PlanRequests)
		r.Post("/search", s.Search)
		r.Get("/search", s.SearchGet)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	return r
}
