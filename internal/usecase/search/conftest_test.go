package search

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
	"github.com/kailas-cloud/recall/internal/usecase/analyze"
	"github.com/kailas-cloud/recall/internal/usecase/assemble"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

type mockRepo struct {
	searchVectorFn    func(ctx context.Context, owner string, rng *temporal.Range, vec []float32, n int) (result.List, error)
	searchLexicalFn   func(ctx context.Context, owner string, rng *temporal.Range, kw []string, n int) (result.List, error)
	countCandidatesFn func(ctx context.Context, owner string, rng *temporal.Range) (int, error)
	liveDocumentsFn   func(ctx context.Context, owner string, ids []string) (map[string]bool, error)

	vectorCalls  atomic.Int32
	lexicalCalls atomic.Int32
}

func (m *mockRepo) SearchVector(
	ctx context.Context, owner string, rng *temporal.Range, vec []float32, n int,
) (result.List, error) {
	m.vectorCalls.Add(1)
	if m.searchVectorFn != nil {
		return m.searchVectorFn(ctx, owner, rng, vec, n)
	}
	return result.List{Strategy: strategy.Vector}, nil
}

func (m *mockRepo) SearchLexical(
	ctx context.Context, owner string, rng *temporal.Range, kw []string, n int,
) (result.List, error) {
	m.lexicalCalls.Add(1)
	if m.searchLexicalFn != nil {
		return m.searchLexicalFn(ctx, owner, rng, kw, n)
	}
	return result.List{Strategy: strategy.Lexical}, nil
}

func (m *mockRepo) CountCandidates(ctx context.Context, owner string, rng *temporal.Range) (int, error) {
	if m.countCandidatesFn != nil {
		return m.countCandidatesFn(ctx, owner, rng)
	}
	return 1, nil
}

func (m *mockRepo) LiveDocuments(ctx context.Context, owner string, ids []string) (map[string]bool, error) {
	if m.liveDocumentsFn != nil {
		return m.liveDocumentsFn(ctx, owner, ids)
	}
	live := make(map[string]bool, len(ids))
	for _, id := range ids {
		live[id] = true
	}
	return live, nil
}

type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
	calls   atomic.Int32
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{1, 0, 0}}, nil
}

func newTestService(t *testing.T, repo *mockRepo, emb *mockEmbedder, opts Options) *Service {
	t.Helper()
	if opts.Limits.MaxChunks == 0 {
		opts.Limits = assemble.Limits{MaxChunks: 10, MaxChars: 10000, PerDocumentCap: 3}
	}
	an := analyze.New(func() time.Time { return testNow })
	return New(repo, emb, an, opts, zap.NewNop())
}

// testChunk builds a chunk of doc with content time offset by age before testNow.
func testChunk(doc string, idx int, age time.Duration) chunk.Chunk {
	src := chunk.Source{DocumentID: doc, Title: doc, ContentTime: testNow.Add(-age)}
	text := doc + " chunk text"
	return chunk.New("u1", src, idx, 0, len(text), text)
}

func list(s strategy.Strategy, chunks ...chunk.Chunk) result.List {
	scores := make([]float64, len(chunks))
	for i := range scores {
		scores[i] = float64(len(chunks) - i)
	}
	return result.NewList(s, chunks, scores)
}
