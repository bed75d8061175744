package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/chunker"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/repository/lock"
)

// --- Mocks ---

type mockRepo struct {
	mu        sync.Mutex
	owners    map[string]string
	replaceFn func(doc *document.Document, chunks []chunk.Chunk) error
	replaced  []chunk.Chunk
	replaces  int
	deleteErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{owners: map[string]string{}}
}

func (m *mockRepo) OwnerOf(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner, ok := m.owners[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return owner, nil
}

func (m *mockRepo) GetDocument(_ context.Context, ownerID, id string) (document.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[id] != ownerID {
		return document.Document{}, domain.ErrNotFound
	}
	return document.Reconstruct(id, ownerID, document.TypeText, "", time.Time{}, time.Time{},
		document.Metadata{}, 0), nil
}

func (m *mockRepo) Replace(_ context.Context, doc *document.Document, chunks []chunk.Chunk) error {
	m.mu.Lock()
	m.replaces++
	fn := m.replaceFn
	m.mu.Unlock()
	if fn != nil {
		if err := fn(doc, chunks); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[doc.ID()] = doc.OwnerID()
	m.replaced = chunks
	return nil
}

func (m *mockRepo) Delete(_ context.Context, ownerID, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owners[id] != ownerID {
		return domain.ErrNotFound
	}
	delete(m.owners, id)
	return nil
}

type mockEmbedder struct {
	dims   int
	err    error
	failOn string
	calls  atomic.Int32
}

func (m *mockEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	m.calls.Add(1)
	if m.err != nil && (m.failOn == "" || strings.Contains(text, m.failOn)) {
		return domain.EmbeddingResult{}, m.err
	}
	vec := make([]float32, m.dims)
	for i := range vec {
		vec[i] = float32(len(text) + i)
	}
	return domain.EmbeddingResult{Embedding: vec}, nil
}

func newTestService(t *testing.T, repo *mockRepo, emb *mockEmbedder) *Service {
	t.Helper()
	ch, err := chunker.New(chunker.Config{Size: 40, Overlap: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := NewWriter(repo, emb, 3, 4, WritePolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, zap.NewNop())
	w.sleep = func(context.Context, time.Duration) error { return nil }
	return New(repo, ch, w, lock.NewKeyed(), zap.NewNop())
}

const longText = "The quarterly budget review is on Friday. Bring the spreadsheet.\n\n" +
	"Marketing wants more money for the autumn campaign."

// --- Tests ---

func TestIngest_GeneratesIDAndIndexesChunks(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo, &mockEmbedder{dims: 3})

	doc, err := svc.Ingest(context.Background(), Input{OwnerID: "u1", Text: longText})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() == "" {
		t.Fatal("expected generated ID")
	}
	if doc.ChunkCount() < 2 || doc.ChunkCount() != len(repo.replaced) {
		t.Fatalf("chunk count = %d, written = %d", doc.ChunkCount(), len(repo.replaced))
	}
	if doc.IngestedAt().IsZero() || doc.ContentTime().IsZero() {
		t.Error("timestamps not stamped")
	}
	for i := range repo.replaced {
		c := &repo.replaced[i]
		if c.Index() != i {
			t.Errorf("chunk %d has index %d", i, c.Index())
		}
		if len(c.Vector()) != 3 {
			t.Errorf("chunk %d has no vector", i)
		}
		if len(c.Signature()) == 0 {
			t.Errorf("chunk %d has no lexical signature", i)
		}
		if c.OwnerID() != "u1" || c.DocumentID() != doc.ID() {
			t.Errorf("chunk %d has wrong back-reference", i)
		}
	}
	last := repo.replaced[len(repo.replaced)-1]
	if last.End() != len([]rune(longText)) {
		t.Errorf("last chunk ends at %d, want %d", last.End(), len([]rune(longText)))
	}
}

func TestIngest_InvalidInput(t *testing.T) {
	svc := newTestService(t, newMockRepo(), &mockEmbedder{dims: 3})
	_, err := svc.Ingest(context.Background(), Input{OwnerID: "", Text: "x"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngest_EmbeddingFailureWritesNothing(t *testing.T) {
	repo := newMockRepo()
	emb := &mockEmbedder{
		dims:   3,
		err:    domain.NewRejectedEmbeddingError(errors.New("413")),
		failOn: "Marketing",
	}
	svc := newTestService(t, repo, emb)

	_, err := svc.Ingest(context.Background(), Input{ID: "d1", OwnerID: "u1", Text: longText})
	if !errors.Is(err, domain.ErrEmbeddingRejected) {
		t.Fatalf("expected ErrEmbeddingRejected, got %v", err)
	}
	if repo.replaces != 0 {
		t.Errorf("expected no write, got %d", repo.replaces)
	}
	if _, err := repo.OwnerOf(context.Background(), "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Error("document must stay non-indexed")
	}
}

func TestIngest_DimensionMismatch(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo, &mockEmbedder{dims: 5})

	_, err := svc.Ingest(context.Background(), Input{OwnerID: "u1", Text: "short note"})
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Fatalf("expected ErrVectorDimMismatch, got %v", err)
	}
	if repo.replaces != 0 {
		t.Error("mismatched vectors must not be written")
	}
}

func TestIngest_WriteRetried(t *testing.T) {
	repo := newMockRepo()
	failures := 2
	repo.replaceFn = func(*document.Document, []chunk.Chunk) error {
		if failures > 0 {
			failures--
			return errors.New("connection refused")
		}
		return nil
	}
	svc := newTestService(t, repo, &mockEmbedder{dims: 3})

	if _, err := svc.Ingest(context.Background(), Input{OwnerID: "u1", Text: "short note"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.replaces != 3 {
		t.Errorf("replaces = %d, want 3", repo.replaces)
	}
}

func TestIngest_WriteExhausted(t *testing.T) {
	repo := newMockRepo()
	boom := errors.New("connection refused")
	repo.replaceFn = func(*document.Document, []chunk.Chunk) error { return boom }
	svc := newTestService(t, repo, &mockEmbedder{dims: 3})

	_, err := svc.Ingest(context.Background(), Input{ID: "d1", OwnerID: "u1", Text: "short note"})
	if !errors.Is(err, domain.ErrIndexWrite) || !errors.Is(err, boom) {
		t.Fatalf("expected IndexWriteError wrapping cause, got %v", err)
	}
	var iw *domain.IndexWriteError
	if !errors.As(err, &iw) || iw.Attempts != 3 || iw.DocumentID != "d1" {
		t.Errorf("unexpected error details: %+v", iw)
	}
}

func TestIngest_ForeignIDConflicts(t *testing.T) {
	repo := newMockRepo()
	repo.owners["d1"] = "someone-else"
	svc := newTestService(t, repo, &mockEmbedder{dims: 3})

	_, err := svc.Ingest(context.Background(), Input{ID: "d1", OwnerID: "u1", Text: "hijack"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestReindex_RequiresExisting(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(t, repo, &mockEmbedder{dims: 3})

	_, err := svc.Reindex(context.Background(), Input{ID: "d1", OwnerID: "u1", Text: "new text"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	repo.owners["d1"] = "u1"
	doc, err := svc.Reindex(context.Background(), Input{ID: "d1", OwnerID: "u1", Text: "new text"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ChunkCount() != 1 {
		t.Errorf("chunk count = %d", doc.ChunkCount())
	}
}

func TestReindex_ConcurrentWritersSerialize(t *testing.T) {
	repo := newMockRepo()
	repo.owners["d1"] = "u1"
	var active, overlap atomic.Int32
	repo.replaceFn = func(*document.Document, []chunk.Chunk) error {
		if active.Add(1) > 1 {
			overlap.Add(1)
		}
		time.Sleep(2 * time.Millisecond)
		active.Add(-1)
		return nil
	}
	svc := newTestService(t, repo, &mockEmbedder{dims: 3})

	var wg sync.WaitGroup
	for i := range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text := strings.Repeat("v", i+1) + " revision"
			if _, err := svc.Reindex(context.Background(), Input{ID: "d1", OwnerID: "u1", Text: text}); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if overlap.Load() != 0 {
		t.Errorf("writers of the same document overlapped %d times", overlap.Load())
	}
}

func TestDelete(t *testing.T) {
	repo := newMockRepo()
	repo.owners["d1"] = "u1"
	svc := newTestService(t, repo, &mockEmbedder{dims: 3})

	if err := svc.Delete(context.Background(), "u2", "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for owner mismatch, got %v", err)
	}
	if err := svc.Delete(context.Background(), "u1", "d1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), "u1", "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
