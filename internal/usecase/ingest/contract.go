package ingest

import (
	"context"

	"github.com/kailas-cloud/recall/internal/chunker"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/document"
)

// Repository defines the storage contract for indexed documents.
type Repository interface {
	// OwnerOf returns the owner of document id, domain.ErrNotFound when absent.
	OwnerOf(ctx context.Context, id string) (string, error)
	GetDocument(ctx context.Context, ownerID, id string) (document.Document, error)
	// Replace atomically swaps the document's previous chunk set for chunks.
	Replace(ctx context.Context, doc *document.Document, chunks []chunk.Chunk) error
	Delete(ctx context.Context, ownerID, id string) error
}

// Embedder vectorizes text into embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Chunker splits document text into overlapping spans.
type Chunker interface {
	Chunk(text string) []chunker.Span
}

// Locker provides the per-document single-writer section.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}
