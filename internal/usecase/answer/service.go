package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	domanswer "github.com/kailas-cloud/recall/internal/domain/answer"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	"github.com/kailas-cloud/recall/internal/usecase/search"
)

// Fallback reasons.
const (
	ReasonNoContext = "no_context"
	ReasonDisabled  = "generator_disabled"
	ReasonFailed    = "generator_failed"
)

// Result pairs the answer with the retrieval that produced its context.
type Result struct {
	Answer domanswer.Answer
	Query  search.Response
}

// Service answers questions over the owner's content.
type Service struct {
	searcher  Searcher
	generator domain.Generator
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates an answer service. generator may be nil, every answer is then a fallback.
func New(searcher Searcher, generator domain.Generator, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{searcher: searcher, generator: generator, timeout: timeout, logger: logger}
}

// Ask retrieves context for the question and generates an answer from it.
// Generator failures degrade to a fallback that lists the sources; retrieval
// failures are returned as errors.
func (s *Service) Ask(ctx context.Context, req *request.Request) (Result, error) {
	resp, err := s.searcher.Query(ctx, req)
	if err != nil {
		return Result{}, err
	}

	sources := resp.Context.Sources()
	if len(resp.Context.Items) == 0 {
		return s.fallback(resp, sources, ReasonNoContext), nil
	}
	if s.generator == nil {
		return s.fallback(resp, sources, ReasonDisabled), nil
	}

	gctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	text, err := s.generator.Generate(gctx, req.Text(), resp.Context.Passages())
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("generate answer: %w", ctx.Err())
		}
		logger.FromContextOr(ctx, s.logger).Warn("answer generation failed, falling back",
			zap.String("owner_id", req.OwnerID()),
			zap.Error(err),
		)
		return s.fallback(resp, sources, ReasonFailed), nil
	}

	metrics.AnswersTotal.WithLabelValues(string(domanswer.Generated), "").Inc()
	return Result{Answer: domanswer.NewGenerated(text, sources), Query: resp}, nil
}

func (s *Service) fallback(resp search.Response, sources []chunk.Source, reason string) Result {
	metrics.AnswersTotal.WithLabelValues(string(domanswer.Fallback), reason).Inc()
	return Result{
		Answer: domanswer.NewFallback(FallbackText(sources), sources, reason),
		Query:  resp,
	}
}

// FallbackText renders the templated response listing sources.
func FallbackText(sources []chunk.Source) string {
	if len(sources) == 0 {
		return "No matching content was found."
	}
	var b strings.Builder
	b.WriteString("An answer could not be generated. These sources look relevant:\n")
	for i, src := range sources {
		fmt.Fprintf(&b, "%d. %s", i+1, src.Title)
		if !src.ContentTime.IsZero() {
			fmt.Fprintf(&b, " (%s)", src.ContentTime.UTC().Format("2006-01-02"))
		}
		if src.SourceURL != "" {
			fmt.Fprintf(&b, " %s", src.SourceURL)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
