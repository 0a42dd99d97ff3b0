package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/toxgate-io/toxgate/internal/domain"
	bulkuc "github.com/toxgate-io/toxgate/internal/usecase/bulk"
	classifyuc "github.com/toxgate-io/toxgate/internal/usecase/classify"
	healthuc "github.com/toxgate-io/toxgate/internal/usecase/health"
)

// Machine-readable error codes returned in error responses.
const (
	codeBadRequest       = "bad_request"
	codeValidationFailed = "validation_failed"
	codeNotFound         = "not_found"
	codeBackendError     = "backend_error"
	codeInternalError    = "internal_error"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// BatchReader loads persisted batch snapshots.
type BatchReader interface {
	Get(ctx context.Context, batchID string) (domain.JobRecord, error)
}

// Server exposes the analysis API over HTTP.
type Server struct {
	bulk          *bulkuc.Service
	classify      *classifyuc.Service
	batches       BatchReader
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	bulk *bulkuc.Service,
	classify *classifyuc.Service,
	batches BatchReader,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		bulk:     bulk,
		classify: classify,
		batches:  batches,
		health:   health,
		logger:   logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidBatch, http.StatusBadRequest, codeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrSubmission, http.StatusBadGateway, codeBackendError),
		sentinelHandler(domain.ErrJobFailed, http.StatusBadGateway, codeBackendError),
		sentinelHandler(domain.ErrJobStopped, http.StatusBadGateway, codeBackendError),
		sentinelHandler(domain.ErrFetch, http.StatusBadGateway, codeBackendError),
		sentinelHandler(domain.ErrClassifierUnavailable, http.StatusBadGateway, codeBackendError),
		sentinelHandler(domain.ErrContextualProviderError, http.StatusBadGateway, codeBackendError),
	}
	return s
}

// Routes mounts all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/api/v1/analyze-batch", s.AnalyzeBatch)
	r.Post("/api/v1/analyze", s.Analyze)
	r.Get("/api/v1/batches/{batchID}", s.GetBatch)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

type analyzeBatchRequest struct {
	Comments []domain.BatchItem `json:"comments"`
}

// AnalyzeBatch handles POST /api/v1/analyze-batch. The connection is held
// open until the backend job finishes.
func (s *Server) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	var req analyzeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Comments) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "comments list is required")
		return
	}

	report, err := s.bulk.AnalyzeBatch(r.Context(), req.Comments)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type analyzeRequest struct {
	Texts []string `json:"texts"`
	// Threshold overrides the configured escalation threshold when set.
	Threshold *float64 `json:"threshold,omitempty"`
}

type analyzeResponse struct {
	Results []domain.Classification `json:"results"`
}

// Analyze handles POST /api/v1/analyze: the synchronous cascade.
func (s *Server) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Texts) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "texts list is required")
		return
	}

	var results []domain.Classification
	var err error
	if req.Threshold != nil {
		if *req.Threshold < 0 || *req.Threshold > 1 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "threshold must be between 0 and 1")
			return
		}
		results, err = s.classify.ClassifyWithThreshold(r.Context(), req.Texts, *req.Threshold)
	} else {
		results, err = s.classify.Classify(r.Context(), req.Texts)
	}
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, analyzeResponse{Results: results})
}

type batchResponse struct {
	BatchID   string `json:"batch_id"`
	JobName   string `json:"job_name,omitempty"`
	Model     string `json:"model"`
	State     string `json:"state"`
	ItemCount int    `json:"item_count"`
	Analyzed  int    `json:"analyzed"`
	Errored   int    `json:"errored"`
	Detail    string `json:"detail,omitempty"`
	UpdatedAt int64  `json:"updated_at"`
}

// GetBatch handles GET /api/v1/batches/{batchID}.
func (s *Server) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batchID")
	if batchID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "batch id is required")
		return
	}

	rec, err := s.batches.Get(r.Context(), batchID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, batchResponse{
		BatchID:   rec.BatchID,
		JobName:   rec.JobName,
		Model:     rec.Model,
		State:     string(rec.State),
		ItemCount: rec.ItemCount,
		Analyzed:  rec.Analyzed,
		Errored:   rec.Errored,
		Detail:    rec.Detail,
		UpdatedAt: rec.UpdatedAt,
	})
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInvalidBatch,
		domain.ErrNotFound,
		domain.ErrSubmission,
		domain.ErrJobFailed,
		domain.ErrJobStopped,
		domain.ErrFetch,
		domain.ErrClassifierUnavailable,
		domain.ErrContextualProviderError,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
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
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
