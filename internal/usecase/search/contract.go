package search

import (
	"context"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
	"github.com/kailas-cloud/recall/internal/usecase/analyze"
)

// Repository defines the storage contract for retrieval. A nil range means unfiltered.
type Repository interface {
	SearchVector(
		ctx context.Context, ownerID string, rng *temporal.Range, vec []float32, topN int,
	) (result.List, error)

	SearchLexical(
		ctx context.Context, ownerID string, rng *temporal.Range, keywords []string, topN int,
	) (result.List, error)

	// CountCandidates returns how many of the owner's chunks fall inside rng.
	CountCandidates(ctx context.Context, ownerID string, rng *temporal.Range) (int, error)

	// LiveDocuments reports which of ids still exist for the owner.
	LiveDocuments(ctx context.Context, ownerID string, ids []string) (map[string]bool, error)
}

// Embedder vectorizes the query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Analyzer extracts keywords and a temporal constraint from query text.
type Analyzer interface {
	Analyze(text string, explicit *temporal.Range) analyze.Analysis
}
