package index

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
)

func TestEnsureIndex_Creates(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected CreateIndex call")
	}
	if created.Name != "recall:chunks:idx" {
		t.Errorf("index name = %q", created.Name)
	}
	if len(created.Prefixes) != 1 || created.Prefixes[0] != "recall:chunk:" {
		t.Errorf("prefixes = %v", created.Prefixes)
	}
	if !created.NoStopWords {
		t.Error("expected STOPWORDS 0")
	}
}

func TestEnsureIndex_ExistsSkipsCreate(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error {
		t.Fatal("CreateIndex should not be called")
		return nil
	}
	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_RaceIsIgnored(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(_ context.Context, _ string) (bool, error) { return false, nil }
	ms.createIndexFn = func(_ context.Context, _ *db.IndexDefinition) error { return db.ErrIndexExists }

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetDocument_RoundTrip(t *testing.T) {
	repo, ms := newTestRepo(t)
	doc := testDocument(t, 2)
	fields := buildDocFields(&doc)
	ms.hgetAllFn = func(_ context.Context, key string) (map[string]string, error) {
		if key != "recall:doc:doc-1" {
			t.Errorf("unexpected key %q", key)
		}
		return fields, nil
	}

	got, err := repo.GetDocument(context.Background(), "owner-1", "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ChunkCount() != 2 || got.Text() != doc.Text() {
		t.Errorf("unexpected document: %+v", got)
	}
	if !got.ContentTime().Equal(doc.ContentTime()) {
		t.Errorf("content time = %v, want %v", got.ContentTime(), doc.ContentTime())
	}
	if tags := got.Metadata().Tags; len(tags) != 1 || tags[0] != "x" {
		t.Errorf("tags = %v", tags)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	repo, ms := newTestRepo(t)
	doc := testDocument(t, 1)

	if _, err := repo.GetDocument(context.Background(), "owner-1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return buildDocFields(&doc), nil
	}
	if _, err := repo.GetDocument(context.Background(), "someone-else", "doc-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("owner mismatch: expected ErrNotFound, got %v", err)
	}
}

func TestReplace_RemovesPreviousChunks(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{fieldOwner: "owner-1", fieldChunkCount: "3"}, nil
	}

	var got []db.Op
	ms.atomicFn = func(_ context.Context, ops []db.Op) error {
		got = ops
		return nil
	}

	doc := testDocument(t, 2)
	if err := repo.Replace(context.Background(), &doc, testChunks(&doc)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 4 {
		t.Fatalf("expected del + 2 chunk writes + doc write, got %d ops", len(got))
	}
	del := got[0]
	if del.Kind != db.OpKindDel {
		t.Fatalf("first op must delete stale keys, got kind %d", del.Kind)
	}
	want := []string{"recall:doc:doc-1", "recall:chunk:doc-1:0", "recall:chunk:doc-1:1", "recall:chunk:doc-1:2"}
	if strings.Join(del.Keys, ",") != strings.Join(want, ",") {
		t.Errorf("stale keys = %v, want %v", del.Keys, want)
	}
	if got[1].Keys[0] != "recall:chunk:doc-1:0" || got[1].Fields[fieldLexical] != "alpha beta" {
		t.Errorf("unexpected chunk op: %+v", got[1])
	}
	if got[3].Keys[0] != "recall:doc:doc-1" || got[3].Fields[fieldChunkCount] != "2" {
		t.Errorf("unexpected doc op: %+v", got[3])
	}
}

func TestReplace_AtomicError(t *testing.T) {
	repo, ms := newTestRepo(t)
	boom := errors.New("connection refused")
	ms.atomicFn = func(_ context.Context, _ []db.Op) error { return boom }

	doc := testDocument(t, 2)
	if err := repo.Replace(context.Background(), &doc, testChunks(&doc)); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{fieldOwner: "owner-1", fieldChunkCount: "2"}, nil
	}
	var deleted []string
	ms.atomicFn = func(_ context.Context, ops []db.Op) error {
		deleted = ops[0].Keys
		return nil
	}

	if err := repo.Delete(context.Background(), "owner-1", "doc-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(deleted) != 3 {
		t.Errorf("expected doc + 2 chunks deleted, got %v", deleted)
	}

	if err := repo.Delete(context.Background(), "intruder", "doc-1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for owner mismatch, got %v", err)
	}
}

func TestLiveDocuments(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.hgetAllMultiFn = func(_ context.Context, keys []string) ([]map[string]string, error) {
		return []map[string]string{
			{fieldOwner: "owner-1"},
			{},
			{fieldOwner: "owner-2"},
		}, nil
	}

	live, err := repo.LiveDocuments(context.Background(), "owner-1", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !live["a"] || live["b"] || live["c"] {
		t.Errorf("live = %v", live)
	}
}

func TestSearchVector_TiesPreferNewerContent(t *testing.T) {
	repo, ms := newTestRepo(t)
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	var gotQuery *db.KNNQuery
	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		gotQuery = q
		return &db.SearchResult{Total: 2, Entries: []db.SearchEntry{
			{Score: 0.9, Fields: map[string]string{fieldDocID: "old", fieldContentTS: formatMillis(older)}},
			{Score: 0.9, Fields: map[string]string{fieldDocID: "new", fieldContentTS: formatMillis(newer)}},
		}}, nil
	}

	list, err := repo.SearchVector(context.Background(), "owner-1", nil, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Strategy != strategy.Vector || len(list.Results) != 2 {
		t.Fatalf("unexpected list: %+v", list)
	}
	first := list.Results[0].Chunk()
	if first.DocumentID() != "new" || list.Results[0].Rank() != 1 {
		t.Errorf("expected newer document first, got %s", first.DocumentID())
	}
	if gotQuery.Filter.Tags[0].Value != "owner-1" || len(gotQuery.Filter.Ranges) != 0 {
		t.Errorf("unexpected filter: %+v", gotQuery.Filter)
	}
}

func TestSearchLexical_TiesPreferLowerChunkIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	rng, err := temporal.New(start, start.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ms.searchBM25Fn = func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		if len(q.Filter.Ranges) != 1 || q.Filter.Ranges[0].Min != float64(start.UnixMilli()) {
			t.Errorf("expected temporal pre-filter, got %+v", q.Filter)
		}
		if q.Filter.Ranges[0].MaxInclusive {
			t.Error("range upper bound must be exclusive")
		}
		return &db.SearchResult{Entries: []db.SearchEntry{
			{Score: 2, Fields: map[string]string{fieldDocID: "d", fieldChunkIdx: "4"}},
			{Score: 2, Fields: map[string]string{fieldDocID: "d", fieldChunkIdx: "1"}},
			{Score: 3, Fields: map[string]string{fieldDocID: "d", fieldChunkIdx: "7"}},
		}}, nil
	}

	list, err := repo.SearchLexical(context.Background(), "owner-1", &rng, []string{"budget"}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var order []int
	for _, r := range list.Results {
		c := r.Chunk()
		order = append(order, c.Index())
	}
	if len(order) != 3 || order[0] != 7 || order[1] != 1 || order[2] != 4 {
		t.Errorf("order = %v, want [7 1 4]", order)
	}
}

func TestSearchLexical_NoKeywords(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchBM25Fn = func(_ context.Context, _ *db.TextQuery) (*db.SearchResult, error) {
		t.Fatal("store should not be queried without keywords")
		return nil, nil
	}
	list, err := repo.SearchLexical(context.Background(), "owner-1", nil, nil, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list.Results) != 0 {
		t.Errorf("expected empty list")
	}
}

func TestCountCandidates_MissingIndex(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchCountFn = func(_ context.Context, _ string, _ db.Filter) (int, error) {
		return 0, db.ErrIndexNotFound
	}
	n, err := repo.CountCandidates(context.Background(), "owner-1", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d", n)
	}
}

func TestOwnerOf(t *testing.T) {
	repo, ms := newTestRepo(t)
	if _, err := repo.OwnerOf(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	ms.hgetAllFn = func(_ context.Context, _ string) (map[string]string, error) {
		return map[string]string{fieldOwner: "owner-1"}, nil
	}
	owner, err := repo.OwnerOf(context.Background(), "doc-1")
	if err != nil || owner != "owner-1" {
		t.Fatalf("OwnerOf = %q, %v", owner, err)
	}
}
