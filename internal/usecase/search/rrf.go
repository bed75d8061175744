package search

import (
	"sort"

	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
)

// DefaultRRFK is the Reciprocal Rank Fusion constant (Cormack et al. 2009).
const DefaultRRFK = 60

// scoreEpsilon treats fused scores closer than this as equal.
const scoreEpsilon = 1e-12

// Fuse merges ranked lists via Reciprocal Rank Fusion.
// score(c) = sum of 1/(k + rank_i(c)) over every list containing c, rank 1-indexed.
// Ordering: score desc, then number of contributing strategies desc, then content
// time desc, then document ID and chunk index asc.
func Fuse(lists []result.List, k int) []result.Fused {
	if k <= 0 {
		k = DefaultRRFK
	}

	type acc struct {
		chunk      chunk.Chunk
		score      float64
		strategies []strategy.Strategy
	}
	merged := make(map[string]*acc)
	var order []string

	for _, l := range lists {
		seen := make(map[string]bool, len(l.Results))
		for i := range l.Results {
			r := &l.Results[i]
			c := r.Chunk()
			id := c.ID()
			// Один и тот же чанк учитывается в списке только по лучшему рангу.
			if seen[id] {
				continue
			}
			seen[id] = true

			contrib := 1.0 / float64(k+r.Rank())
			a, ok := merged[id]
			if !ok {
				a = &acc{chunk: c}
				merged[id] = a
				order = append(order, id)
			}
			a.score += contrib
			a.strategies = append(a.strategies, l.Strategy)
		}
	}

	out := make([]result.Fused, 0, len(merged))
	for _, id := range order {
		a := merged[id]
		out = append(out, result.NewFused(a.chunk, a.score, a.strategies))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return fusedLess(&out[i], &out[j])
	})
	return out
}

func fusedLess(a, b *result.Fused) bool {
	if d := a.Score() - b.Score(); d > scoreEpsilon || d < -scoreEpsilon {
		return d > 0
	}
	if na, nb := len(a.Strategies()), len(b.Strategies()); na != nb {
		return na > nb
	}
	ca, cb := a.Chunk(), b.Chunk()
	ta, tb := ca.Source().ContentTime, cb.Source().ContentTime
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	if ca.DocumentID() != cb.DocumentID() {
		return ca.DocumentID() < cb.DocumentID()
	}
	return ca.Index() < cb.Index()
}
