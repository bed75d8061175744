package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/metrics"
)

// RetryPolicy bounds the exponential backoff between attempts.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Backoff returns the wait before attempt n+1 (n is 1-based): initial * 2^(n-1), capped.
func (p RetryPolicy) Backoff(n int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// RetryingEmbedder retries transient provider failures. Rejected content fails at once.
type RetryingEmbedder struct {
	inner  domain.Embedder
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// NewRetryingEmbedder wraps inner with bounded retries.
func NewRetryingEmbedder(inner domain.Embedder, policy RetryPolicy, logger *zap.Logger) *RetryingEmbedder {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &RetryingEmbedder{inner: inner, policy: policy, sleep: sleepCtx, logger: logger}
}

// Embed calls inner until success, a non-transient error, or attempts run out.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		res, err := r.inner.Embed(ctx, text)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !errors.Is(err, domain.ErrEmbeddingTransient) || attempt == r.policy.MaxAttempts {
			break
		}

		wait := r.policy.Backoff(attempt)
		r.logger.Warn("Transient embedding failure, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		metrics.EmbeddingRetriesTotal.Inc()
		if err := r.sleep(ctx, wait); err != nil {
			return domain.EmbeddingResult{}, fmt.Errorf("retry wait: %w", err)
		}
	}
	return domain.EmbeddingResult{}, lastErr
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
