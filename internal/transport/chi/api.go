package chi

import "time"

// ErrorCode is a machine-readable error code returned to clients.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest        ErrorCode = "bad_request"
	ErrorCodeValidationFailed  ErrorCode = "validation_failed"
	ErrorCodeUnauthorized      ErrorCode = "unauthorized"
	ErrorCodeMissingOwner      ErrorCode = "missing_owner"
	ErrorCodeDocumentNotFound  ErrorCode = "document_not_found"
	ErrorCodeConflict          ErrorCode = "conflict"
	ErrorCodeEmbeddingRejected ErrorCode = "embedding_rejected"
	ErrorCodeEmbeddingProvider ErrorCode = "embedding_provider_error"
	ErrorCodeVectorDimMismatch ErrorCode = "vector_dim_mismatch"
	ErrorCodeRateLimited       ErrorCode = "rate_limited"
	ErrorCodeIndexUnavailable  ErrorCode = "index_unavailable"
	ErrorCodeQueryUnavailable  ErrorCode = "query_unavailable"
	ErrorCodeTimeout           ErrorCode = "timeout"
	ErrorCodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DocumentRequest is the body of POST /v1/documents and PUT /v1/documents/{id}.
type DocumentRequest struct {
	ID          string     `json:"id,omitempty"`
	ContentType string     `json:"content_type,omitempty"`
	Text        string     `json:"text"`
	ContentTime *time.Time `json:"content_time,omitempty"`
	Title       string     `json:"title,omitempty"`
	Author      string     `json:"author,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	SourceURL   string     `json:"source_url,omitempty"`
}

// DocumentResponse describes an indexed document.
type DocumentResponse struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	ContentType string    `json:"content_type"`
	Title       string    `json:"title"`
	Author      string    `json:"author,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	ContentTime time.Time `json:"content_time"`
	IngestedAt  time.Time `json:"ingested_at"`
	ChunkCount  int       `json:"chunk_count"`
	Chars       int       `json:"chars"`
}

// TimeRange is an explicit half-open [start, end) constraint.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// QueryRequest is the body of POST /v1/query and POST /v1/ask.
type QueryRequest struct {
	Query     string     `json:"query"`
	MaxChunks int        `json:"max_chunks,omitempty"`
	Range     *TimeRange `json:"range,omitempty"`
}

// SourceResponse is the provenance of a context item.
type SourceResponse struct {
	DocumentID  string    `json:"document_id"`
	Title       string    `json:"title"`
	ContentType string    `json:"content_type"`
	ContentTime time.Time `json:"content_time"`
	SourceURL   string    `json:"source_url,omitempty"`
}

// ContextItem is one selected chunk.
type ContextItem struct {
	ChunkID    string         `json:"chunk_id"`
	ChunkIndex int            `json:"chunk_index"`
	Start      int            `json:"start"`
	End        int            `json:"end"`
	Text       string         `json:"text"`
	Score      float64        `json:"score"`
	Strategies []string       `json:"strategies"`
	Truncated  bool           `json:"truncated,omitempty"`
	Source     SourceResponse `json:"source"`
}

// StrategyReport tells how one retrieval strategy finished.
type StrategyReport struct {
	Strategy   string  `json:"strategy"`
	Outcome    string  `json:"outcome"`
	Results    int     `json:"results"`
	DurationMs float64 `json:"duration_ms"`
	Error      string  `json:"error,omitempty"`
}

// QueryResponse is the body of a successful POST /v1/query.
type QueryResponse struct {
	Items      []ContextItem    `json:"items"`
	Chars      int              `json:"chars"`
	Truncated  bool             `json:"truncated"`
	Strategies []StrategyReport `json:"strategies"`
	Range      *TimeRange       `json:"range,omitempty"`
	Relaxed    bool             `json:"relaxed"`
	Keywords   []string         `json:"keywords"`
}

// AskResponse is the body of a successful POST /v1/ask.
type AskResponse struct {
	Kind    string           `json:"kind"`
	Answer  string           `json:"answer"`
	Reason  string           `json:"reason,omitempty"`
	Sources []SourceResponse `json:"sources"`
	Query   QueryResponse    `json:"query"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
