package index

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	hgetAllFn      func(ctx context.Context, key string) (map[string]string, error)
	hgetAllMultiFn func(ctx context.Context, keys []string) ([]map[string]string, error)
	atomicFn       func(ctx context.Context, ops []db.Op) error
	createIndexFn  func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn  func(ctx context.Context, name string) (bool, error)
	searchKNNFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	searchBM25Fn   func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	searchCountFn  func(ctx context.Context, index string, f db.Filter) (int, error)
}

func (m *mockStore) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if m.hgetAllFn != nil {
		return m.hgetAllFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error) {
	if m.hgetAllMultiFn != nil {
		return m.hgetAllMultiFn(ctx, keys)
	}
	return make([]map[string]string, len(keys)), nil
}

func (m *mockStore) Atomic(ctx context.Context, ops []db.Op) error {
	if m.atomicFn != nil {
		return m.atomicFn(ctx, ops)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return true, nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchBM25Fn != nil {
		return m.searchBM25Fn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) SearchCount(ctx context.Context, index string, f db.Filter) (int, error) {
	if m.searchCountFn != nil {
		return m.searchCountFn(ctx, index, f)
	}
	return 0, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	repo := New(ms, Options{KeyPrefix: "recall:", Dimensions: 3, HNSWM: 16, HNSWEFConstruct: 200})
	return repo, ms
}

func testDocument(t *testing.T, chunkCount int) document.Document {
	t.Helper()
	doc, err := document.New("doc-1", "owner-1", document.TypeText, "alpha beta gamma",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), document.Metadata{Title: "Greek", Tags: []string{"x"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return doc.Indexed(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), chunkCount)
}

func testChunks(doc *document.Document) []chunk.Chunk {
	src := chunk.SourceOf(doc)
	c0 := chunk.New(doc.OwnerID(), src, 0, 0, 10, "alpha beta")
	c0.SetVector([]float32{1, 0, 0})
	c0.SetSignature(map[string]int{"alpha": 1, "beta": 1})
	c1 := chunk.New(doc.OwnerID(), src, 1, 6, 16, "beta gamma")
	c1.SetVector([]float32{0, 1, 0})
	c1.SetSignature(map[string]int{"beta": 1, "gamma": 1})
	return []chunk.Chunk{c0, c1}
}
