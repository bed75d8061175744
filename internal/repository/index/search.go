package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
)

// SearchVector ranks the owner's chunks by cosine similarity to vec.
// Equal scores put the newer content first.
func (r *Repo) SearchVector(
	ctx context.Context, ownerID string, rng *temporal.Range, vec []float32, topN int,
) (result.List, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    r.indexName(),
		VectorField:  fieldVector,
		Filter:       r.filter(ownerID, rng),
		Vector:       vec,
		K:            topN,
		ReturnFields: chunkReturnFields,
	})
	if err != nil {
		return result.List{}, fmt.Errorf("search knn: %w", err)
	}

	hits := toHits(sr)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].chunk.Source().ContentTime.After(hits[j].chunk.Source().ContentTime)
	})
	return hitsToList(strategy.Vector, hits), nil
}

// SearchLexical ranks the owner's chunks by BM25 over the keyword set.
// Equal scores put the earlier chunk first.
func (r *Repo) SearchLexical(
	ctx context.Context, ownerID string, rng *temporal.Range, keywords []string, topN int,
) (result.List, error) {
	if len(keywords) == 0 {
		return result.List{Strategy: strategy.Lexical}, nil
	}
	sr, err := r.store.SearchBM25(ctx, &db.TextQuery{
		IndexName:    r.indexName(),
		Field:        fieldLexical,
		Terms:        keywords,
		Filter:       r.filter(ownerID, rng),
		TopK:         topN,
		ReturnFields: chunkReturnFields,
	})
	if err != nil {
		return result.List{}, fmt.Errorf("search bm25: %w", err)
	}

	hits := toHits(sr)
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].chunk.Index() != hits[j].chunk.Index() {
			return hits[i].chunk.Index() < hits[j].chunk.Index()
		}
		return hits[i].chunk.DocumentID() < hits[j].chunk.DocumentID()
	})
	return hitsToList(strategy.Lexical, hits), nil
}

// CountCandidates returns the size of the owner's chunk pool inside rng.
func (r *Repo) CountCandidates(ctx context.Context, ownerID string, rng *temporal.Range) (int, error) {
	n, err := r.store.SearchCount(ctx, r.indexName(), r.filter(ownerID, rng))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("search count: %w", err)
	}
	return n, nil
}

func (r *Repo) filter(ownerID string, rng *temporal.Range) db.Filter {
	f := db.Filter{Tags: []db.TagFilter{{Field: fieldOwner, Value: ownerID}}}
	if rng != nil {
		f.Ranges = append(f.Ranges, db.NumericRange{
			Field: fieldContentTS,
			Min:   float64(rng.Start().UnixMilli()),
			Max:   float64(rng.End().UnixMilli()),
		})
	}
	return f
}

type hit struct {
	chunk chunk.Chunk
	score float64
}

func toHits(sr *db.SearchResult) []hit {
	if sr == nil {
		return nil
	}
	hits := make([]hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if math.IsNaN(e.Score) {
			continue
		}
		hits = append(hits, hit{chunk: parseChunkFields(e.Fields), score: e.Score})
	}
	return hits
}

func hitsToList(s strategy.Strategy, hits []hit) result.List {
	chunks := make([]chunk.Chunk, len(hits))
	scores := make([]float64, len(hits))
	for i := range hits {
		chunks[i] = hits[i].chunk
		scores[i] = hits[i].score
	}
	return result.NewList(s, chunks, scores)
}
