package chi

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/kailas-cloud/venuefinder/internal/domain"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeSessionNotFound     ErrorCode = "session_not_found"
	CodeSessionBusy         ErrorCode = "session_busy"
	CodeLocationRequired    ErrorCode = "location_required"
	CodePipelineTimeout     ErrorCode = "pipeline_timeout"
	CodeProviderUnavailable ErrorCode = "provider_unavailable"
	CodeProviderError       ErrorCode = "provider_error"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		retryableHandler(domain.ErrSessionLockTimeout, http.StatusConflict, CodeSessionBusy),
		retryableHandler(domain.ErrPipelineTimeout, http.StatusGatewayTimeout, CodePipelineTimeout),
		sentinelHandler(domain.ErrSessionNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrLocationRequired, http.StatusBadRequest, CodeLocationRequired),
		sentinelHandler(domain.ErrInvalidDirective, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrProviderUnavailable, http.StatusBadGateway, CodeProviderUnavailable),
		sentinelHandler(domain.ErrProviderError, http.StatusBadGateway, CodeProviderError),
	}
}

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
		domain.ErrSessionNotFound,
		domain.ErrSessionLockTimeout,
		domain.ErrPipelineTimeout,
		domain.ErrLocationRequired,
		domain.ErrInvalidDirective,
		domain.ErrProviderUnavailable,
		domain.ErrProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// retryableHandler is sentinelHandler plus a Retry-After header taken from
// domain.RetryableError, rounded up to whole seconds.
func retryableHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		secs := 1
		var re *domain.RetryableError
		if errors.As(err, &re) && re.RetryAfter > 0 {
			secs = int(math.Ceil(re.RetryAfter.Seconds()))
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
