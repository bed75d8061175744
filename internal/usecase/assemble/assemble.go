// Package assemble selects fused chunks into a bounded, attributed context.
package assemble

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
)

// Limits bounds the assembled context. Zero MaxChars or PerDocumentCap disables that limit.
type Limits struct {
	MaxChunks        int
	MaxChars         int
	PerDocumentCap   int
	MinTruncateChars int
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{MaxChunks: 8, MaxChars: 8000, PerDocumentCap: 2, MinTruncateChars: 200}
}

// Validate checks that the limits can produce a context at all.
func (l Limits) Validate() error {
	switch {
	case l.MaxChunks <= 0:
		return domain.NewConfigError("context.max_chunks", "must be positive")
	case l.MaxChars < 0:
		return domain.NewConfigError("context.max_chars", "must not be negative")
	case l.PerDocumentCap < 0:
		return domain.NewConfigError("context.per_document_cap", "must not be negative")
	case l.MinTruncateChars < 0:
		return domain.NewConfigError("context.min_truncate_chars", "must not be negative")
	}
	return nil
}

// WithMaxChunks returns a copy with MaxChunks overridden when n is positive.
func (l Limits) WithMaxChunks(n int) Limits {
	if n > 0 {
		l.MaxChunks = n
	}
	return l
}

// Item is one selected chunk with its provenance.
type Item struct {
	Chunk      chunk.Chunk
	Text       string
	Score      float64
	Source     chunk.Source
	Strategies []strategy.Strategy
	Truncated  bool
}

// Context is the ordered selection handed to the caller or the answer generator.
type Context struct {
	Items     []Item
	Chars     int
	Truncated bool
}

// Sources returns the provenance of every item in order, one entry per document.
func (c *Context) Sources() []chunk.Source {
	seen := make(map[string]bool, len(c.Items))
	out := make([]chunk.Source, 0, len(c.Items))
	for i := range c.Items {
		src := c.Items[i].Source
		if seen[src.DocumentID] {
			continue
		}
		seen[src.DocumentID] = true
		out = append(out, src)
	}
	return out
}

// Passages converts the context into generator input.
func (c *Context) Passages() []domain.Passage {
	out := make([]domain.Passage, len(c.Items))
	for i := range c.Items {
		out[i] = domain.Passage{Title: c.Items[i].Source.Title, Text: c.Items[i].Text}
	}
	return out
}

// Assemble walks fused results in order and keeps chunks until MaxChunks is reached
// or the character budget runs out. A chunk that overflows the budget is cut at a
// word boundary, marked Truncated, and ends assembly; when less than MinTruncateChars
// remain it is skipped instead.
func Assemble(fused []result.Fused, lim Limits) Context {
	var ctx Context
	perDoc := make(map[string]int)

	for i := range fused {
		if len(ctx.Items) >= lim.MaxChunks {
			break
		}
		f := &fused[i]
		c := f.Chunk()
		docID := c.DocumentID()
		if lim.PerDocumentCap > 0 && perDoc[docID] >= lim.PerDocumentCap {
			continue
		}

		text := c.Text()
		n := utf8.RuneCountInString(text)
		item := Item{
			Chunk:      c,
			Text:       text,
			Score:      f.Score(),
			Source:     c.Source(),
			Strategies: f.Strategies(),
		}

		if lim.MaxChars <= 0 || ctx.Chars+n <= lim.MaxChars {
			ctx.Items = append(ctx.Items, item)
			ctx.Chars += n
			perDoc[docID]++
			continue
		}

		remaining := lim.MaxChars - ctx.Chars
		if remaining <= 0 || remaining < lim.MinTruncateChars {
			continue
		}
		cut := TruncateWords(text, remaining)
		if cut == "" {
			continue
		}
		item.Text = cut
		item.Truncated = true
		ctx.Items = append(ctx.Items, item)
		ctx.Chars += utf8.RuneCountInString(cut)
		ctx.Truncated = true
		break
	}
	return ctx
}

// TruncateWords cuts text to at most maxRunes runes, backing off to the last
// whitespace so no word is split. A single word longer than maxRunes is cut hard.
func TruncateWords(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	cut := runes[:maxRunes]
	if !unicode.IsSpace(runes[maxRunes]) {
		for i := len(cut) - 1; i > 0; i-- {
			if unicode.IsSpace(cut[i]) {
				cut = cut[:i]
				break
			}
		}
	}
	return strings.TrimRightFunc(string(cut), unicode.IsSpace)
}
