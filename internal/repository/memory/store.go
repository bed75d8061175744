// Package memory is an in-process arena holding documents and their chunks.
// It serves single-node deployments and tests with the same contract as the Redis index.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
	"github.com/kailas-cloud/recall/internal/lexical"
)

type record struct {
	doc    document.Document
	chunks []chunk.Chunk
}

type kvEntry struct {
	value     []byte
	expiresAt time.Time
}

// Store keeps the arena behind a RWMutex. Readers see either the previous or
// the next chunk set of a document, never a mix.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*record
	kv   map[string]kvEntry
	now  func() time.Time
}

// New creates an empty arena.
func New() *Store {
	return &Store{
		docs: make(map[string]*record),
		kv:   make(map[string]kvEntry),
		now:  time.Now,
	}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// OwnerOf returns the owner of document id.
func (s *Store) OwnerOf(_ context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok {
		return "", domain.ErrNotFound
	}
	return rec.doc.OwnerID(), nil
}

// GetDocument returns an owner's document.
func (s *Store) GetDocument(_ context.Context, ownerID, id string) (document.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.docs[id]
	if !ok || rec.doc.OwnerID() != ownerID {
		return document.Document{}, domain.ErrNotFound
	}
	return rec.doc, nil
}

// Replace swaps the document and its whole chunk set.
func (s *Store) Replace(_ context.Context, doc *document.Document, chunks []chunk.Chunk) error {
	rec := &record{doc: *doc, chunks: append([]chunk.Chunk(nil), chunks...)}

	s.mu.Lock()
	s.docs[doc.ID()] = rec
	s.mu.Unlock()
	return nil
}

// Delete removes the document with all its chunks.
func (s *Store) Delete(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.docs[id]
	if !ok || rec.doc.OwnerID() != ownerID {
		return domain.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// LiveDocuments reports which of ids still exist for ownerID.
func (s *Store) LiveDocuments(_ context.Context, ownerID string, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	live := make(map[string]bool, len(ids))
	for _, id := range ids {
		if rec, ok := s.docs[id]; ok && rec.doc.OwnerID() == ownerID {
			live[id] = true
		}
	}
	return live, nil
}

// CountCandidates returns the size of the owner's chunk pool inside rng.
func (s *Store) CountCandidates(_ context.Context, ownerID string, rng *temporal.Range) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pool(ownerID, rng)), nil
}

// SearchVector ranks the pool by cosine similarity, clamped to [0,1].
// Equal scores put the newer content first.
func (s *Store) SearchVector(
	_ context.Context, ownerID string, rng *temporal.Range, vec []float32, topN int,
) (result.List, error) {
	s.mu.RLock()
	pool := s.pool(ownerID, rng)
	s.mu.RUnlock()

	scored := make([]scoredChunk, 0, len(pool))
	for _, c := range pool {
		v := c.Vector()
		if len(v) != len(vec) {
			continue
		}
		scored = append(scored, scoredChunk{chunk: c, score: max(0, cosine(vec, v))})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		ti := scored[i].chunk.Source().ContentTime
		tj := scored[j].chunk.Source().ContentTime
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return chunkLess(&scored[i].chunk, &scored[j].chunk)
	})
	return toList(strategy.Vector, scored, topN), nil
}

// SearchLexical ranks the pool by BM25 against keywords. Chunks matching no
// keyword are left out. Equal scores put the earlier chunk first.
func (s *Store) SearchLexical(
	_ context.Context, ownerID string, rng *temporal.Range, keywords []string, topN int,
) (result.List, error) {
	if len(keywords) == 0 {
		return result.List{Strategy: strategy.Lexical}, nil
	}

	s.mu.RLock()
	pool := s.pool(ownerID, rng)
	s.mu.RUnlock()

	corpus := lexical.Corpus{Docs: len(pool), DocFreq: make(map[string]int, len(keywords))}
	var totalLen int
	for _, c := range pool {
		sig := lexical.Signature(c.Signature())
		totalLen += sig.Len()
		for _, kw := range keywords {
			if sig[kw] > 0 {
				corpus.DocFreq[kw]++
			}
		}
	}
	if len(pool) > 0 {
		corpus.AvgLen = float64(totalLen) / float64(len(pool))
	}

	scored := make([]scoredChunk, 0, len(pool))
	for _, c := range pool {
		score := corpus.BM25(keywords, c.Signature())
		if score <= 0 {
			continue
		}
		scored = append(scored, scoredChunk{chunk: c, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].chunk.Index() != scored[j].chunk.Index() {
			return scored[i].chunk.Index() < scored[j].chunk.Index()
		}
		return scored[i].chunk.DocumentID() < scored[j].chunk.DocumentID()
	})
	return toList(strategy.Lexical, scored, topN), nil
}

// pool collects the owner's chunks inside rng. Caller holds the read lock.
func (s *Store) pool(ownerID string, rng *temporal.Range) []chunk.Chunk {
	var out []chunk.Chunk
	for _, rec := range s.docs {
		if rec.doc.OwnerID() != ownerID {
			continue
		}
		if rng != nil && !rng.Contains(rec.doc.ContentTime()) {
			continue
		}
		out = append(out, rec.chunks...)
	}
	return out
}

// Get returns a cached value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.kv[key]
	s.mu.RUnlock()

	if !ok || (!e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)) {
		return nil, db.ErrKeyNotFound
	}
	return e.value, nil
}

// Set stores a value without expiration.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl. Zero ttl never expires.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := kvEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	s.kv[key] = e
	s.mu.Unlock()
	return nil
}

type scoredChunk struct {
	chunk chunk.Chunk
	score float64
}

func toList(st strategy.Strategy, scored []scoredChunk, topN int) result.List {
	if topN > 0 && len(scored) > topN {
		scored = scored[:topN]
	}
	chunks := make([]chunk.Chunk, len(scored))
	scores := make([]float64, len(scored))
	for i := range scored {
		chunks[i] = scored[i].chunk
		scores[i] = scored[i].score
	}
	return result.NewList(st, chunks, scores)
}

func chunkLess(a, b *chunk.Chunk) bool {
	if a.DocumentID() != b.DocumentID() {
		return a.DocumentID() < b.DocumentID()
	}
	return a.Index() < b.Index()
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
