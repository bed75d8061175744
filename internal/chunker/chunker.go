// Package chunker splits document text into overlapping, size-bounded spans.
//
// Offsets are measured in characters (runes). Text is first split recursively
// by the separator hierarchy until every piece fits, then pieces are merged
// greedily into windows. Every window after the first starts exactly Overlap
// characters before the end of the previous one, so dropping the first Overlap
// characters of each later chunk and concatenating reproduces the text.
package chunker

import (
	"github.com/kailas-cloud/recall/internal/domain"
)

// Defaults used when the configuration leaves a value unset.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// DefaultSeparators is the split hierarchy: paragraph, line, sentence, word.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Config controls chunk size and overlap, in characters.
type Config struct {
	Size       int
	Overlap    int
	Separators []string
}

// Span is a chunk of the input text with its character offsets.
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunker is a pure, deterministic text splitter. Safe for concurrent use.
type Chunker struct {
	size       int
	overlap    int
	separators [][]rune
}

// New validates cfg and builds a Chunker.
func New(cfg Config) (*Chunker, error) {
	if cfg.Size <= 0 {
		return nil, domain.NewConfigError("chunking.size", "must be positive")
	}
	if cfg.Overlap < 0 {
		return nil, domain.NewConfigError("chunking.overlap", "must not be negative")
	}
	if cfg.Overlap >= cfg.Size {
		return nil, domain.NewConfigError("chunking.overlap", "must be smaller than size")
	}
	seps := cfg.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	c := &Chunker{size: cfg.Size, overlap: cfg.Overlap}
	for _, s := range seps {
		if s == "" {
			return nil, domain.NewConfigError("chunking.separators", "empty separator")
		}
		c.separators = append(c.separators, []rune(s))
	}
	return c, nil
}

// Size returns the maximum chunk length.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap between consecutive chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk splits text into spans. Empty text yields no spans.
func (c *Chunker) Chunk(text string) []Span {
	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= c.size {
		return []Span{{Start: 0, End: n, Text: text}}
	}

	// a piece must fit next to the overlap carried from the previous chunk
	pieces := c.split(runes, 0, n, 0, nil)

	var spans []Span
	start, i := 0, 0
	for {
		end := start
		for i < len(pieces) && pieces[i].end-start <= c.size {
			end = pieces[i].end
			i++
		}
		spans = append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
		if i >= len(pieces) {
			return spans
		}
		start = end - c.overlap
	}
}

type piece struct{ start, end int }

func (c *Chunker) maxPiece() int { return c.size - c.overlap }

// split appends to out pieces of runes[lo:hi] no longer than maxPiece.
func (c *Chunker) split(runes []rune, lo, hi, level int, out []piece) []piece {
	limit := c.maxPiece()
	if hi-lo <= limit {
		return append(out, piece{lo, hi})
	}
	if level >= len(c.separators) {
		for s := lo; s < hi; s += limit {
			e := s + limit
			if e > hi {
				e = hi
			}
			out = append(out, piece{s, e})
		}
		return out
	}

	sep := c.separators[level]
	s := lo
	for s < hi {
		idx := indexRunes(runes, s, hi, sep)
		e := hi
		if idx >= 0 {
			// separator stays with the preceding piece
			e = idx + len(sep)
		}
		if e-s <= limit {
			out = append(out, piece{s, e})
		} else {
			out = c.split(runes, s, e, level+1, out)
		}
		s = e
	}
	return out
}

// indexRunes returns the first position of sep in runes[lo:hi], or -1.
func indexRunes(runes []rune, lo, hi int, sep []rune) int {
	last := hi - len(sep)
outer:
	for i := lo; i <= last; i++ {
		for j, r := range sep {
			if runes[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
