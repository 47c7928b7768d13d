package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/newsrank/internal/domain"
)

// ErrorCode is the machine-readable error code in API error bodies.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeUnsupportedIntent      ErrorCode = "unsupported_intent"
	CodeMissingEmbedding       ErrorCode = "missing_embedding"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeBackendUnavailable     ErrorCode = "backend_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Intent  string    `json:"intent,omitempty"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrUnsupportedIntent,
		domain.ErrMissingEmbedding,
		domain.ErrInvalidPlan,
		domain.ErrEmbeddingProviderError,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// unsupportedIntentHandler echoes the rejected intent so callers can correct the plan.
func unsupportedIntentHandler(w http.ResponseWriter, err error, msg string) bool {
	var uie *domain.UnsupportedIntentError
	if !errors.As(err, &uie) {
		return false
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:    CodeUnsupportedIntent,
		Message: msg,
		Intent:  uie.Intent,
	})
	return true
}

// missingEmbeddingHandler reports the intent that required a query vector.
func missingEmbeddingHandler(w http.ResponseWriter, err error, msg string) bool {
	var mee *domain.MissingEmbeddingError
	if !errors.As(err, &mee) {
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Code:    CodeMissingEmbedding,
		Message: msg,
		Intent:  mee.Intent,
	})
	return true
}

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		unsupportedIntentHandler,
		missingEmbeddingHandler,
		sentinelHandler(domain.ErrUnsupportedIntent, http.StatusBadRequest, CodeUnsupportedIntent),
		sentinelHandler(domain.ErrMissingEmbedding, http.StatusUnprocessableEntity, CodeMissingEmbedding),
		sentinelHandler(domain.ErrInvalidPlan, http.StatusBadRequest, CodeBadRequest),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, CodeBackendUnavailable),
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := s.requestLogger(r)
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
