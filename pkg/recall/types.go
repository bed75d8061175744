package recall

import (
	"time"

	domanswer "github.com/kailas-cloud/recall/internal/domain/answer"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	domdoc "github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
)

// ContentType is the kind of source a document's text was extracted from.
type ContentType string

// Content types.
const (
	TypeDocument ContentType = "document"
	TypeAudio    ContentType = "audio"
	TypeWeb      ContentType = "web"
	TypeImage    ContentType = "image"
	TypeText     ContentType = "text"
)

// Document is normalized text handed over by a content processor.
// An empty ID is generated; an empty ContentType means TypeText; a zero
// ContentTime defaults to the ingestion time.
type Document struct {
	ID          string
	ContentType ContentType
	Text        string
	ContentTime time.Time
	Title       string
	Author      string
	Tags        []string
	SourceURL   string
}

// DocumentInfo describes an indexed document.
type DocumentInfo struct {
	ID          string
	OwnerID     string
	ContentType ContentType
	Title       string
	Author      string
	Tags        []string
	SourceURL   string
	ContentTime time.Time
	IngestedAt  time.Time
	ChunkCount  int
}

// TimeRange is a half-open [Start, End) interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Query is a natural-language question. MaxChunks <= 0 uses the configured
// limit. Range, when set, overrides any time phrase in Text.
type Query struct {
	Text      string
	MaxChunks int
	Range     *TimeRange
}

// Source is the provenance of a context item.
type Source struct {
	DocumentID  string
	Title       string
	ContentType ContentType
	ContentTime time.Time
	SourceURL   string
}

// Item is one chunk selected into the context.
type Item struct {
	ChunkID    string
	DocumentID string
	ChunkIndex int
	Start      int
	End        int
	Text       string
	Score      float64
	Strategies []string
	Truncated  bool
	Source     Source
}

// StrategyReport tells how one retrieval strategy finished:
// "ok", "failed", "timeout" or "skipped".
type StrategyReport struct {
	Strategy string
	Outcome  string
	Results  int
	Elapsed  time.Duration
	Err      error
}

// Result is the assembled context of a query.
type Result struct {
	Items      []Item
	Chars      int
	Truncated  bool
	Strategies []StrategyReport
	Range      *TimeRange
	Relaxed    bool
	Keywords   []string
}

// Answer kinds.
const (
	AnswerGenerated = string(domanswer.Generated)
	AnswerFallback  = string(domanswer.Fallback)
)

// Answer is the reply to Ask. Kind is AnswerGenerated or AnswerFallback;
// Reason explains a fallback.
type Answer struct {
	Kind    string
	Text    string
	Reason  string
	Sources []Source
	Result  Result
}

// IsFallback reports whether no generated answer was produced.
func (a *Answer) IsFallback() bool { return a.Kind == AnswerFallback }

func documentInfo(d *domdoc.Document) DocumentInfo {
	meta := d.Metadata()
	return DocumentInfo{
		ID:          d.ID(),
		OwnerID:     d.OwnerID(),
		ContentType: ContentType(d.ContentType()),
		Title:       d.DisplayTitle(),
		Author:      meta.Author,
		Tags:        meta.Tags,
		SourceURL:   meta.SourceURL,
		ContentTime: d.ContentTime(),
		IngestedAt:  d.IngestedAt(),
		ChunkCount:  d.ChunkCount(),
	}
}

func sourceFrom(s chunk.Source) Source {
	return Source{
		DocumentID:  s.DocumentID,
		Title:       s.Title,
		ContentType: ContentType(s.ContentType),
		ContentTime: s.ContentTime,
		SourceURL:   s.SourceURL,
	}
}

func rangeFrom(r *temporal.Range) *TimeRange {
	if r == nil {
		return nil
	}
	return &TimeRange{Start: r.Start(), End: r.End()}
}

func resultFrom(resp *searchuc.Response) Result {
	out := Result{
		Items:      make([]Item, 0, len(resp.Context.Items)),
		Chars:      resp.Context.Chars,
		Truncated:  resp.Context.Truncated,
		Strategies: make([]StrategyReport, 0, len(resp.Strategies)),
		Range:      rangeFrom(resp.Range),
		Relaxed:    resp.Relaxed,
		Keywords:   resp.Keywords,
	}
	for i := range resp.Context.Items {
		it := &resp.Context.Items[i]
		strategies := make([]string, len(it.Strategies))
		for j, s := range it.Strategies {
			strategies[j] = string(s)
		}
		out.Items = append(out.Items, Item{
			ChunkID:    it.Chunk.ID(),
			DocumentID: it.Chunk.DocumentID(),
			ChunkIndex: it.Chunk.Index(),
			Start:      it.Chunk.Start(),
			End:        it.Chunk.End(),
			Text:       it.Text,
			Score:      it.Score,
			Strategies: strategies,
			Truncated:  it.Truncated,
			Source:     sourceFrom(it.Source),
		})
	}
	for _, rep := range resp.Strategies {
		out.Strategies = append(out.Strategies, StrategyReport{
			Strategy: string(rep.Strategy),
			Outcome:  string(rep.Outcome),
			Results:  rep.Results,
			Elapsed:  rep.Elapsed,
			Err:      rep.Err,
		})
	}
	return out
}
