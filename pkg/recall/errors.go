package recall

import "github.com/kailas-cloud/recall/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrConflict               = domain.ErrConflict
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrConfig                 = domain.ErrConfig
	ErrEmbedding              = domain.ErrEmbedding
	ErrEmbeddingTransient     = domain.ErrEmbeddingTransient
	ErrEmbeddingRejected      = domain.ErrEmbeddingRejected
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrRateLimited            = domain.ErrRateLimited
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrIndexWrite             = domain.ErrIndexWrite
	ErrQueryUnavailable       = domain.ErrQueryUnavailable
)
