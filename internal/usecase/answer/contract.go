package answer

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/usecase/search"
)

// Searcher retrieves the assembled context for a question.
type Searcher interface {
	Query(ctx context.Context, req *request.Request) (search.Response, error)
}
