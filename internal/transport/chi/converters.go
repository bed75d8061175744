package chi

import (
	"errors"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
)

func sourceToResponse(src chunk.Source) SourceResponse {
	return SourceResponse{
		DocumentID:  src.DocumentID,
		Title:       src.Title,
		ContentType: string(src.ContentType),
		ContentTime: src.ContentTime.UTC(),
		SourceURL:   src.SourceURL,
	}
}

func queryToResponse(resp *searchuc.Response) QueryResponse {
	out := QueryResponse{
		Items:      make([]ContextItem, 0, len(resp.Context.Items)),
		Chars:      resp.Context.Chars,
		Truncated:  resp.Context.Truncated,
		Strategies: make([]StrategyReport, 0, len(resp.Strategies)),
		Range:      rangeToResponse(resp.Range),
		Relaxed:    resp.Relaxed,
		Keywords:   resp.Keywords,
	}
	if out.Keywords == nil {
		out.Keywords = []string{}
	}

	for i := range resp.Context.Items {
		it := &resp.Context.Items[i]
		strategies := make([]string, len(it.Strategies))
		for j, s := range it.Strategies {
			strategies[j] = string(s)
		}
		out.Items = append(out.Items, ContextItem{
			ChunkID:    it.Chunk.ID(),
			ChunkIndex: it.Chunk.Index(),
			Start:      it.Chunk.Start(),
			End:        it.Chunk.End(),
			Text:       it.Text,
			Score:      it.Score,
			Strategies: strategies,
			Truncated:  it.Truncated,
			Source:     sourceToResponse(it.Source),
		})
	}

	for _, rep := range resp.Strategies {
		sr := StrategyReport{
			Strategy:   string(rep.Strategy),
			Outcome:    string(rep.Outcome),
			Results:    rep.Results,
			DurationMs: durationMs(rep.Elapsed),
		}
		if rep.Err != nil {
			sr.Error = domain.ErrStrategyFailed.Error()
			if errors.Is(rep.Err, domain.ErrStrategyTimeout) {
				sr.Error = domain.ErrStrategyTimeout.Error()
			}
		}
		out.Strategies = append(out.Strategies, sr)
	}
	return out
}
