package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	domdoc "github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
	"github.com/kailas-cloud/recall/internal/logger"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/recall/internal/usecase/ingest"
)

// maxBodyBytes bounds request bodies: the largest document plus JSON overhead.
const maxBodyBytes = domdoc.MaxTextSize + 1<<20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server implements the recall HTTP API.
type Server struct {
	documents     Documents
	search        Searcher
	answers       Asker
	health        HealthChecker
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents Documents,
	search Searcher,
	answers Asker,
	health HealthChecker,
	logger *zap.Logger,
) *Server {
	s := &Server{
		documents: documents,
		search:    search,
		answers:   answers,
		health:    health,
		logger:    logger,
	}
	// Порядок важен: первый совпавший sentinel определяет ответ.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeDocumentNotFound),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, ErrorCodeConflict),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrConfig, http.StatusBadRequest, ErrorCodeValidationFailed),
		sentinelHandler(domain.ErrEmbeddingRejected, http.StatusUnprocessableEntity, ErrorCodeEmbeddingRejected),
		sentinelHandler(domain.ErrVectorDimMismatch, http.StatusBadGateway, ErrorCodeVectorDimMismatch),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrEmbeddingTransient, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
		sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, ErrorCodeEmbeddingProvider),
		sentinelHandler(domain.ErrIndexWrite, http.StatusServiceUnavailable, ErrorCodeIndexUnavailable),
		sentinelHandler(domain.ErrQueryUnavailable, http.StatusServiceUnavailable, ErrorCodeQueryUnavailable),
		sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, ErrorCodeTimeout),
	}
	return s
}

// CreateDocument handles POST /v1/documents.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	doc, err := s.documents.Ingest(r.Context(), inputFromRequest(ownerFromContext(r.Context()), req.ID, &req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/v1/documents/"+doc.ID())
	writeJSON(w, http.StatusCreated, documentToResponse(&doc))
}

// ReindexDocument handles PUT /v1/documents/{id}.
func (s *Server) ReindexDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID != "" && req.ID != id {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "body id does not match path id")
		return
	}

	doc, err := s.documents.Reindex(r.Context(), inputFromRequest(ownerFromContext(r.Context()), id, &req))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// GetDocument handles GET /v1/documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), ownerFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// DeleteDocument handles DELETE /v1/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.documents.Delete(r.Context(), ownerFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Query handles POST /v1/query.
func (s *Server) Query(w http.ResponseWriter, r *http.Request) {
	req, ok := s.queryRequest(w, r)
	if !ok {
		return
	}

	resp, err := s.search.Query(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, queryToResponse(&resp))
}

// Ask handles POST /v1/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	req, ok := s.queryRequest(w, r)
	if !ok {
		return
	}

	res, err := s.answers.Ask(r.Context(), &req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := AskResponse{
		Kind:    string(res.Answer.Kind()),
		Answer:  res.Answer.Text(),
		Reason:  res.Answer.Reason(),
		Sources: make([]SourceResponse, 0, len(res.Answer.Sources())),
		Query:   queryToResponse(&res.Query),
	}
	for _, src := range res.Answer.Sources() {
		out.Sources = append(out.Sources, sourceToResponse(src))
	}
	writeJSON(w, http.StatusOK, out)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) queryRequest(w http.ResponseWriter, r *http.Request) (request.Request, bool) {
	var body QueryRequest
	if !decodeBody(w, r, &body) {
		return request.Request{}, false
	}

	var rng *temporal.Range
	if body.Range != nil {
		tr, err := temporal.New(body.Range.Start, body.Range.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "invalid range: "+err.Error())
			return request.Request{}, false
		}
		rng = &tr
	}
	if body.MaxChunks < 0 || body.MaxChunks > request.MaxMaxChunks {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed,
			fmt.Sprintf("max_chunks must be between 1 and %d", request.MaxMaxChunks))
		return request.Request{}, false
	}

	req, err := request.New(ownerFromContext(r.Context()), body.Query, body.MaxChunks, rng)
	if err != nil {
		s.handleDomainError(w, r, err)
		return request.Request{}, false
	}
	return req, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, ErrorCodeBadRequest, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func inputFromRequest(ownerID, id string, req *DocumentRequest) ingestuc.Input {
	in := ingestuc.Input{
		ID:          id,
		OwnerID:     ownerID,
		ContentType: domdoc.ContentType(req.ContentType),
		Text:        req.Text,
		Metadata: domdoc.Metadata{
			Title:     req.Title,
			Author:    req.Author,
			Tags:      req.Tags,
			SourceURL: req.SourceURL,
		},
	}
	if req.ContentTime != nil {
		in.ContentTime = req.ContentTime.UTC()
	}
	return in
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
// Validation errors keep their detail, it only describes the client's own input.
func safeDomainMessage(err error) string {
	if errors.Is(err, domain.ErrInvalidInput) || errors.Is(err, domain.ErrConfig) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrEmbeddingRejected,
		domain.ErrVectorDimMismatch,
		domain.ErrRateLimited,
		domain.ErrEmbeddingTransient,
		domain.ErrEmbeddingProviderError,
		domain.ErrEmbedding,
		domain.ErrIndexWrite,
		domain.ErrQueryUnavailable,
		context.DeadlineExceeded,
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

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

func documentToResponse(doc *domdoc.Document) DocumentResponse {
	meta := doc.Metadata()
	return DocumentResponse{
		ID:          doc.ID(),
		OwnerID:     doc.OwnerID(),
		ContentType: string(doc.ContentType()),
		Title:       doc.DisplayTitle(),
		Author:      meta.Author,
		Tags:        meta.Tags,
		SourceURL:   meta.SourceURL,
		ContentTime: doc.ContentTime().UTC(),
		IngestedAt:  doc.IngestedAt().UTC(),
		ChunkCount:  doc.ChunkCount(),
		Chars:       utf8.RuneCountInString(doc.Text()),
	}
}

func rangeToResponse(rng *temporal.Range) *TimeRange {
	if rng == nil {
		return nil
	}
	return &TimeRange{Start: rng.Start().UTC(), End: rng.End().UTC()}
}

func durationMs(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
