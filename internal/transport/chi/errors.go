package chi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/memorag/internal/domain"
	logpkg "github.com/kailas-cloud/memorag/internal/logger"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// upstreamMessage is what clients see when a model, storage or vector backend fails.
const upstreamMessage = "upstream service unavailable"

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrUnsupportedProvider, http.StatusBadRequest, codeUnsupportedProvider, ""),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound, ""),
		sentinelHandler(domain.ErrPlanLimitExceeded, http.StatusPaymentRequired, codePlanLimitExceeded, ""),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, codeRateLimited, ""),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusServiceUnavailable, codeServiceUnavailable, upstreamMessage),
		sentinelHandler(domain.ErrVectorSearch, http.StatusServiceUnavailable, codeServiceUnavailable, upstreamMessage),
		sentinelHandler(domain.ErrStorageUnavailable, http.StatusServiceUnavailable, codeServiceUnavailable, upstreamMessage),
		sentinelHandler(domain.ErrRerankFailed, http.StatusServiceUnavailable, codeServiceUnavailable, upstreamMessage),
		sentinelHandler(domain.ErrGenerationFailed,
			http.StatusServiceUnavailable, codeServiceUnavailable, upstreamMessage),
	}
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// An empty message falls back to the sentinel's own text.
func sentinelHandler(sentinel error, status int, code, message string) errorHandler {
	if message == "" {
		message = sentinel.Error()
	}
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, message)
		return true
	}
}

func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	writeError(w, http.StatusBadRequest, codeValidationFailed, ve.Message)
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	if errors.Is(err, context.Canceled) {
		log.Info("request cancelled by client", zap.Error(err))
		return
	}
	log.Warn("domain error", zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
