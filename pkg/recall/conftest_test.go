package recall

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode"
)

var testNow = time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)

const testDims = 64

// hashEmbedder maps each word to a hashed dimension: texts sharing words
// point in similar directions.
type hashEmbedder struct {
	dims  int
	err   error
	calls atomic.Int64
}

func (h *hashEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	h.calls.Add(1)
	if h.err != nil {
		return EmbeddingResult{}, h.err
	}
	vec := make([]float32, h.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		f := fnv.New32a()
		_, _ = f.Write([]byte(w))
		vec[f.Sum32()%uint32(h.dims)]++
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return EmbeddingResult{Embedding: vec, PromptTokens: len(words), TotalTokens: len(words)}, nil
}

type stubGenerator struct {
	text     string
	err      error
	question string
	passages []Passage
}

func (g *stubGenerator) Generate(_ context.Context, question string, passages []Passage) (string, error) {
	g.question = question
	g.passages = passages
	return g.text, g.err
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithMemory(),
		WithEmbedder(&hashEmbedder{dims: testDims}),
		WithDimensions(testDims),
		WithClock(func() time.Time { return testNow }),
	}
	c, err := New(context.Background(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func mustIngest(t *testing.T, c *Client, owner string, doc Document) string {
	t.Helper()
	id, err := c.Ingest(context.Background(), owner, doc)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	return id
}

func documentIDs(res *Result) map[string]bool {
	ids := make(map[string]bool)
	for _, it := range res.Items {
		ids[it.DocumentID] = true
	}
	return ids
}
