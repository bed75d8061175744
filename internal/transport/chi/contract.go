package chi

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	answeruc "github.com/kailas-cloud/recall/internal/usecase/answer"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/recall/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
)

// Documents ingests, re-indexes, reads and deletes documents.
type Documents interface {
	Ingest(ctx context.Context, in ingestuc.Input) (document.Document, error)
	Reindex(ctx context.Context, in ingestuc.Input) (document.Document, error)
	Get(ctx context.Context, ownerID, id string) (document.Document, error)
	Delete(ctx context.Context, ownerID, id string) error
}

// Searcher answers retrieval queries.
type Searcher interface {
	Query(ctx context.Context, req *request.Request) (searchuc.Response, error)
}

// Asker answers questions with generation and fallback.
type Asker interface {
	Ask(ctx context.Context, req *request.Request) (answeruc.Result, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
