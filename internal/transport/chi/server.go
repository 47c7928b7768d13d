// Package chi exposes planning and search over HTTP.
package chi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrank/internal/domain"
	"github.com/kailas-cloud/newsrank/internal/domain/search/plan"
	"github.com/kailas-cloud/newsrank/internal/logger"
	"github.com/kailas-cloud/newsrank/internal/usecase/assemble"
	healthuc "github.com/kailas-cloud/newsrank/internal/usecase/health"
	searchuc "github.com/kailas-cloud/newsrank/internal/usecase/search"
)

// maxBodyBytes caps plan request bodies.
const maxBodyBytes = 1 << 20

// SearchService plans and executes retrieval requests.
type SearchService interface {
	Plan(ctx context.Context, q searchuc.Query) (searchuc.Planned, error)
	Search(ctx context.Context, q searchuc.Query) (assemble.Response, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	search        SearchService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(search SearchService, health HealthService, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		search:        search,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// planRequest is the POST body of /v1/plan and /v1/search. A body without a
// "plan" object is itself treated as the plan.
type planRequest struct {
	Plan      map[string]any
	Embedding []float32
}

// PlanRequests handles POST /v1/plan.
func (s *Server) PlanRequests(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlanRequest(w, r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	out, err := s.search.Plan(r.Context(), searchuc.Query{Plan: plan.Normalize(req.Plan), Embedding: req.Embedding})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	req, err := decodePlanRequest(w, r)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.runSearch(w, r, searchuc.Query{Plan: plan.Normalize(req.Plan), Embedding: req.Embedding})
}

// SearchGet handles GET /v1/search.
func (s *Server) SearchGet(w http.ResponseWriter, r *http.Request) {
	params, err := bindSearchParams(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid query parameters: "+err.Error())
		return
	}
	s.runSearch(w, r, searchuc.Query{Plan: plan.Normalize(params.raw())})
}

func (s *Server) runSearch(w http.ResponseWriter, r *http.Request, q searchuc.Query) {
	ctx := logger.With(r.Context(),
		zap.String("intent", string(q.Plan.Intent)),
		zap.String("mode", string(q.Plan.Mode)),
	)
	ctx, usage := domain.NewContextWithUsage(ctx)
	resp, err := s.search.Search(ctx, q)
	if err != nil {
		s.handleDomainError(w, r.WithContext(ctx), err)
		return
	}
	setUsageHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

func setUsageHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens))
	}
	if usage.Fallback {
		w.Header().Set("X-Search-Fallback", "listing")
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// NotFound answers unknown routes with a JSON error.
func (s *Server) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
}

// MethodNotAllowed answers known routes called with the wrong method.
func (s *Server) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logger.FromContextOr(r.Context(), s.logger)
}

func decodePlanRequest(w http.ResponseWriter, r *http.Request) (planRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return planRequest{}, fmt.Errorf("%w: read body: %w", domain.ErrInvalidPlan, err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return planRequest{}, fmt.Errorf("%w: %w", domain.ErrInvalidPlan, err)
	}

	var req planRequest
	planJSON, enveloped := raw["plan"]
	if !enveloped {
		planJSON = body
	}
	if err := json.Unmarshal(planJSON, &req.Plan); err != nil {
		return planRequest{}, fmt.Errorf("%w: plan: %w", domain.ErrInvalidPlan, err)
	}
	if req.Plan == nil {
		return planRequest{}, fmt.Errorf("%w: plan must be an object", domain.ErrInvalidPlan)
	}
	if emb, ok := raw["embedding"]; ok && enveloped {
		if err := json.Unmarshal(emb, &req.Embedding); err != nil {
			return planRequest{}, fmt.Errorf("%w: embedding must be a list of numbers: %w", domain.ErrInvalidPlan, err)
		}
	}
	return req, nil
}
