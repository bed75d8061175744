package recall

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/recall/internal/domain"
)

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// Passage is one piece of context handed to a Generator.
type Passage struct {
	Title string
	Text  string
}

// Generator produces an answer to question from the retrieved passages.
type Generator interface {
	Generate(ctx context.Context, question string, passages []Passage) (string, error)
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// generatorAdapter wraps public Generator to satisfy internal domain.Generator.
type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(ctx context.Context, question string, passages []domain.Passage) (string, error) {
	ps := make([]Passage, len(passages))
	for i, p := range passages {
		ps[i] = Passage{Title: p.Title, Text: p.Text}
	}
	text, err := a.inner.Generate(ctx, question, ps)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return text, nil
}
