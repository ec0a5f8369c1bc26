package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	domusage "github.com/kailas-cloud/venuefinder/internal/domain/usage"
	"github.com/kailas-cloud/venuefinder/internal/domain/venue"
	healthuc "github.com/kailas-cloud/venuefinder/internal/usecase/health"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Server serves the turn API.
type Server struct {
	turns         TurnRunner
	sessions      SessionManager
	health        HealthChecker
	usage         UsageReporter
	validate      *validator.Validate
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	turns TurnRunner, sessions SessionManager, health HealthChecker, usage UsageReporter, logger *zap.Logger,
) *Server {
	return &Server{
		turns:         turns,
		sessions:      sessions,
		health:        health,
		usage:         usage,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/turns", s.SubmitTurn)
		r.Get("/usage", s.GetUsage)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Get("/venues", s.GetSessionVenues)
			r.Post("/reset", s.ResetSession)
		})
	})
}

// SubmitTurn handles POST /v1/turns.
func (s *Server) SubmitTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequestDTO
	// Unknown fields are ignored so older clients keep working as directives grow.
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, validationMessage(err))
		return
	}

	res, err := s.turns.Run(r.Context(), req.ToTurnRequest())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, turnResponseFromResult(res))
}

// GetSession handles GET /v1/sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToDTO(sess))
}

// GetSessionVenues handles GET /v1/sessions/{id}/venues.
func (s *Server) GetSessionVenues(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	venues := sess.Venues.Records()
	if venues == nil {
		venues = []venue.Record{}
	}
	writeJSON(w, http.StatusOK, VenuesDTO{SessionID: sess.ID, Venues: venues, Count: len(venues)})
}

// ResetSession handles POST /v1/sessions/{id}/reset.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Reset(r.Context(), id); err != nil {
		s.handleDomainError(w, err)
		return
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToDTO(sess))
}

// DeleteSession handles DELETE /v1/sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetUsage handles GET /v1/usage?period=day|month.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, ok := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if !ok {
		writeError(w, http.StatusBadRequest, CodeBadRequest, `period must be "day" or "month"`)
		return
	}
	writeJSON(w, http.StatusOK, usageToDTO(s.usage.GetReport(r.Context(), period)))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, map[string]any{
		"status": report.Status,
		"checks": report.Checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// validationMessage turns validator errors into "field: rule" pairs.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts[i] = fmt.Sprintf("%s: %s", fe.Namespace(), rule)
	}
	return "Validation failed: " + strings.Join(parts, "; ")
}
