package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recall/internal/chunker"
	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/chunk"
	"github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/lexical"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// WritePolicy bounds retries of a failed index write.
type WritePolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Writer turns chunked documents into index entries. Either every chunk of a
// document becomes queryable or none does.
type Writer struct {
	repo        Repository
	embedder    Embedder
	concurrency int
	policy      WritePolicy
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *zap.Logger
}

// NewWriter creates an index writer. Vectors whose length differs from dims are
// rejected before anything is written; zero dims disables the check.
func NewWriter(repo Repository, emb Embedder, dims, concurrency int, policy WritePolicy, logger *zap.Logger) *Writer {
	if concurrency < 1 {
		concurrency = 1
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Writer{
		repo:        repo,
		embedder:    domain.NewDimensionGuard(emb, dims),
		concurrency: concurrency,
		policy:      policy,
		now:         time.Now,
		sleep:       sleepCtx,
		logger:      logger,
	}
}

// Index embeds every span, derives lexical signatures and writes the document
// with its chunks, replacing any previous chunk set.
func (w *Writer) Index(ctx context.Context, doc *document.Document, spans []chunker.Span) (document.Document, error) {
	start := time.Now()

	indexed := doc.Indexed(w.now().UTC(), len(spans))
	src := chunk.SourceOf(&indexed)

	chunks := make([]chunk.Chunk, len(spans))
	for i, sp := range spans {
		c := chunk.New(indexed.OwnerID(), src, i, sp.Start, sp.End, sp.Text)
		c.SetSignature(lexical.NewSignature(sp.Text))
		chunks[i] = c
	}

	if err := w.embedAll(ctx, chunks); err != nil {
		metrics.IndexFailuresTotal.WithLabelValues("embedding").Inc()
		return document.Document{}, err
	}

	if err := w.write(ctx, &indexed, chunks); err != nil {
		metrics.IndexFailuresTotal.WithLabelValues("write").Inc()
		return document.Document{}, err
	}

	metrics.IndexDuration.Observe(time.Since(start).Seconds())
	metrics.IndexedChunks.Observe(float64(len(chunks)))
	return indexed, nil
}

// embedAll vectorizes chunks concurrently. The first failure cancels the rest.
func (w *Writer) embedAll(ctx context.Context, chunks []chunk.Chunk) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for i := range chunks {
		c := &chunks[i]
		g.Go(func() error {
			res, err := w.embedder.Embed(gctx, c.Text())
			if err != nil {
				return fmt.Errorf("embed chunk %d: %w", c.Index(), err)
			}
			c.SetVector(res.Embedding)
			return nil
		})
	}
	return g.Wait()
}

// write persists the document, retrying storage failures with capped exponential backoff.
func (w *Writer) write(ctx context.Context, doc *document.Document, chunks []chunk.Chunk) error {
	backoff := w.policy.InitialBackoff
	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= w.policy.MaxAttempts; attempt++ {
		attempts = attempt
		err := w.repo.Replace(ctx, doc, chunks)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			break
		}
		if attempt == w.policy.MaxAttempts {
			break
		}

		w.logger.Warn("Index write failed, retrying",
			zap.String("document_id", doc.ID()),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		if err := w.sleep(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff *= 2
		if w.policy.MaxBackoff > 0 && backoff > w.policy.MaxBackoff {
			backoff = w.policy.MaxBackoff
		}
	}
	return &domain.IndexWriteError{DocumentID: doc.ID(), Attempts: attempts, Err: lastErr}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
