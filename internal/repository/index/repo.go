package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/recall/internal/db"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/document"
)

// store is the consumer interface for the chunk index (ISP).
type store interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Atomic(ctx context.Context, ops []db.Op) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchBM25(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, f db.Filter) (int, error)
}

// Options configures the vector field of the chunk index.
type Options struct {
	KeyPrefix       string
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Repo keeps documents and their chunks in Redis hashes covered by one FT index.
//
// Layout:
//
//	{prefix}doc:{id}          document hash, never indexed
//	{prefix}chunk:{id}:{idx}  chunk hash, indexed by {prefix}chunks:idx
type Repo struct {
	store store
	opts  Options
}

// New creates a Redis-backed index repository.
func New(s store, opts Options) *Repo {
	return &Repo{store: s, opts: opts}
}

func (r *Repo) docKey(id string) string {
	return r.opts.KeyPrefix + "doc:" + id
}

func (r *Repo) chunkKey(docID string, idx int) string {
	return r.opts.KeyPrefix + "chunk:" + chunk.Key(docID, idx)
}

func (r *Repo) indexName() string {
	return r.opts.KeyPrefix + "chunks:idx"
}

// EnsureIndex creates the chunk index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index %s: %w", r.indexName(), err)
	}
	if exists {
		return nil
	}

	def, err := db.NewIndex(r.indexName()).
		Prefix(r.opts.KeyPrefix+"chunk:").
		NoStopWords().
		Tag(fieldOwner).
		Tag(fieldDocID).
		Tag(fieldContentType).
		Numeric(fieldChunkIdx).
		Numeric(fieldContentTS).
		TextNoStem(fieldLexical).
		VectorHNSW(fieldVector, r.opts.Dimensions, db.DistanceCosine, r.opts.HNSWM, r.opts.HNSWEFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build index definition: %w", err)
	}

	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", r.indexName(), err)
	}
	return nil
}

// GetDocument returns an owner's document. Another owner's document is reported as not found.
func (r *Repo) GetDocument(ctx context.Context, ownerID, id string) (document.Document, error) {
	m, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return document.Document{}, domain.ErrNotFound
		}
		return document.Document{}, fmt.Errorf("hgetall %s: %w", r.docKey(id), err)
	}
	if m[fieldOwner] != ownerID {
		return document.Document{}, domain.ErrNotFound
	}
	return parseDocFields(id, m), nil
}

// Replace swaps the document's chunk set in one MULTI/EXEC: the previous chunks
// and document hash are removed and the new ones written together.
func (r *Repo) Replace(ctx context.Context, doc *document.Document, chunks []chunk.Chunk) error {
	prevCount, err := r.chunkCount(ctx, doc.ID())
	if err != nil {
		return err
	}

	stale := make([]string, 0, prevCount+1)
	stale = append(stale, r.docKey(doc.ID()))
	for i := range prevCount {
		stale = append(stale, r.chunkKey(doc.ID(), i))
	}

	ops := make([]db.Op, 0, len(chunks)+2)
	ops = append(ops, db.DelOp(stale...))
	for i := range chunks {
		c := &chunks[i]
		ops = append(ops, db.HSetOp(r.chunkKey(doc.ID(), c.Index()), buildChunkFields(c)))
	}
	ops = append(ops, db.HSetOp(r.docKey(doc.ID()), buildDocFields(doc)))

	if err := r.store.Atomic(ctx, ops); err != nil {
		return fmt.Errorf("replace %s: %w", doc.ID(), err)
	}
	return nil
}

// Delete removes the document and every chunk in one MULTI/EXEC.
func (r *Repo) Delete(ctx context.Context, ownerID, id string) error {
	m, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("hgetall %s: %w", r.docKey(id), err)
	}
	if m[fieldOwner] != ownerID {
		return domain.ErrNotFound
	}

	n, _ := strconv.Atoi(m[fieldChunkCount])
	keys := make([]string, 0, n+1)
	keys = append(keys, r.docKey(id))
	for i := range n {
		keys = append(keys, r.chunkKey(id, i))
	}
	if err := r.store.Atomic(ctx, []db.Op{db.DelOp(keys...)}); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// LiveDocuments reports which of ids still exist for ownerID.
func (r *Repo) LiveDocuments(ctx context.Context, ownerID string, ids []string) (map[string]bool, error) {
	if len(ids) == 0 {
		return map[string]bool{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.docKey(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("hgetall multi: %w", err)
	}
	live := make(map[string]bool, len(ids))
	for i, m := range hashes {
		if len(m) > 0 && m[fieldOwner] == ownerID {
			live[ids[i]] = true
		}
	}
	return live, nil
}

func (r *Repo) chunkCount(ctx context.Context, id string) (int, error) {
	m, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("hgetall %s: %w", r.docKey(id), err)
	}
	n, _ := strconv.Atoi(m[fieldChunkCount])
	return n, nil
}

// OwnerOf returns the owner of document id.
func (r *Repo) OwnerOf(ctx context.Context, id string) (string, error) {
	m, err := r.store.HGetAll(ctx, r.docKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("hgetall %s: %w", r.docKey(id), err)
	}
	return m[fieldOwner], nil
}
