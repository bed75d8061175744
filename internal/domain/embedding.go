package domain

import (
	"context"
	"fmt"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// HealthChecker verifies external provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// InstructionEmbedder is a domain decorator that prepends instruction text before embedding.
// Asymmetric models expect different prefixes for passages and for queries.
type InstructionEmbedder struct {
	inner       Embedder
	instruction string
}

// NewInstructionEmbedder creates a decorator that prepends instruction text.
func NewInstructionEmbedder(inner Embedder, instruction string) *InstructionEmbedder {
	return &InstructionEmbedder{inner: inner, instruction: instruction}
}

// Embed prepends instruction and delegates to inner embedder.
func (e *InstructionEmbedder) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	result, err := e.inner.Embed(ctx, e.instruction+text)
	if err != nil {
		return EmbeddingResult{}, fmt.Errorf("instruction embed: %w", err)
	}
	return result, nil
}

// DimensionGuard rejects vectors whose length differs from the configured dimension.
// A zero dimension disables the check.
type DimensionGuard struct {
	inner      Embedder
	dimensions int
}

// NewDimensionGuard wraps inner with a vector length check.
func NewDimensionGuard(inner Embedder, dimensions int) *DimensionGuard {
	return &DimensionGuard{inner: inner, dimensions: dimensions}
}

// Embed delegates and verifies the returned vector length.
func (g *DimensionGuard) Embed(ctx context.Context, text string) (EmbeddingResult, error) {
	res, err := g.inner.Embed(ctx, text)
	if err != nil {
		return EmbeddingResult{}, err
	}
	if g.dimensions > 0 && len(res.Embedding) != g.dimensions {
		return EmbeddingResult{}, fmt.Errorf("%w: got %d, want %d",
			ErrVectorDimMismatch, len(res.Embedding), g.dimensions)
	}
	return res, nil
}
