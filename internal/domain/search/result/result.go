package result

import (
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
)

// Result is a single hit from one retrieval strategy.
type Result struct {
	chunk    chunk.Chunk
	strategy strategy.Strategy
	rank     int
	score    float64
}

// New creates a strategy hit. Rank is 1-indexed.
func New(c chunk.Chunk, s strategy.Strategy, rank int, score float64) Result {
	return Result{chunk: c, strategy: s, rank: rank, score: score}
}

// Chunk returns the matched chunk.
func (r *Result) Chunk() chunk.Chunk { return r.chunk }

// Strategy returns the strategy that produced the hit.
func (r *Result) Strategy() strategy.Strategy { return r.strategy }

// Rank returns the 1-indexed position within the strategy's list.
func (r *Result) Rank() int { return r.rank }

// Score returns the strategy's raw score.
func (r *Result) Score() float64 { return r.score }

// List is one strategy's ranked output.
type List struct {
	Strategy strategy.Strategy
	Results  []Result
}

// NewList ranks chunks in the given order. scores must align with chunks.
func NewList(s strategy.Strategy, chunks []chunk.Chunk, scores []float64) List {
	out := make([]Result, len(chunks))
	for i := range chunks {
		out[i] = New(chunks[i], s, i+1, scores[i])
	}
	return List{Strategy: s, Results: out}
}

// Fused is a chunk after rank fusion.
type Fused struct {
	chunk      chunk.Chunk
	score      float64
	strategies []strategy.Strategy
}

// NewFused creates a fused result.
func NewFused(c chunk.Chunk, score float64, strategies []strategy.Strategy) Fused {
	return Fused{chunk: c, score: score, strategies: strategies}
}

// Chunk returns the fused chunk.
func (f *Fused) Chunk() chunk.Chunk { return f.chunk }

// Score returns the fused score.
func (f *Fused) Score() float64 { return f.score }

// Strategies returns the strategies whose lists contained the chunk.
func (f *Fused) Strategies() []strategy.Strategy { return f.strategies }
