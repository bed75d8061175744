package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recall/internal/domain"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/search/result"
	"github.com/kailas-cloud/recall/internal/domain/search/strategy"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
	"github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	"github.com/kailas-cloud/recall/internal/usecase/analyze"
	"github.com/kailas-cloud/recall/internal/usecase/assemble"
)

// EmptyPoolPolicy decides what happens when the temporal filter leaves no candidates.
type EmptyPoolPolicy string

// Empty pool policies.
const (
	// PolicyStrict returns empty lists.
	PolicyStrict EmptyPoolPolicy = "strict"
	// PolicyRelax re-runs vector and lexical search without the temporal constraint.
	PolicyRelax EmptyPoolPolicy = "relax"
)

// Outcome is how a strategy finished.
type Outcome string

// Strategy outcomes.
const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
	OutcomeSkipped Outcome = "skipped"
)

// Options configures the retriever.
type Options struct {
	TopN            int
	RRFK            int
	StrategyTimeout time.Duration
	EmptyPoolPolicy EmptyPoolPolicy
	Limits          assemble.Limits
}

// Report describes one strategy's contribution to a query.
type Report struct {
	Strategy strategy.Strategy
	Outcome  Outcome
	Results  int
	Elapsed  time.Duration
	Err      error
}

// Response is the result of a query.
type Response struct {
	Context    assemble.Context
	Strategies []Report
	Range      *temporal.Range
	Relaxed    bool
	Keywords   []string
}

// Service runs the multi-strategy retriever, fuses the lists and assembles context.
type Service struct {
	repo     Repository
	embed    Embedder
	analyzer Analyzer
	opts     Options
	logger   *zap.Logger
}

// New creates a search service.
func New(repo Repository, embed Embedder, analyzer Analyzer, opts Options, logger *zap.Logger) *Service {
	if opts.TopN <= 0 {
		opts.TopN = 50
	}
	if opts.RRFK <= 0 {
		opts.RRFK = DefaultRRFK
	}
	if opts.StrategyTimeout <= 0 {
		opts.StrategyTimeout = 2 * time.Second
	}
	if opts.EmptyPoolPolicy == "" {
		opts.EmptyPoolPolicy = PolicyStrict
	}
	if opts.Limits.MaxChunks <= 0 {
		opts.Limits = assemble.DefaultLimits()
	}
	return &Service{repo: repo, embed: embed, analyzer: analyzer, opts: opts, logger: logger}
}

// Query answers a retrieval request with an ordered, attributed context.
func (s *Service) Query(ctx context.Context, req *request.Request) (Response, error) {
	log := logger.FromContextOr(ctx, s.logger).With(zap.String("owner_id", req.OwnerID()))

	an := s.analyzer.Analyze(req.Text(), req.Range())
	if an.Dropped != nil {
		log.Debug("temporal constraint dropped", zap.Error(an.Dropped))
	}

	pass, err := s.retrieve(ctx, req.OwnerID(), &an, an.Range, nil)
	if err != nil {
		return Response{}, err
	}

	relaxed := false
	if an.Range != nil && pass.emptyPool() && s.opts.EmptyPoolPolicy == PolicyRelax {
		log.Debug("temporal pool empty, relaxing", zap.Stringer("range", an.Range))
		metrics.PoolRelaxedTotal.Inc()
		relaxedPass, err := s.retrieve(ctx, req.OwnerID(), &an, nil, pass.vector)
		if err != nil {
			return Response{}, err
		}
		relaxedPass.reports[2] = pass.reports[2]
		pass = relaxedPass
		relaxed = true
	}

	if err := pass.available(); err != nil {
		return Response{}, err
	}

	fused := Fuse(pass.lists(), s.opts.RRFK)
	fused, err = s.dropDeleted(ctx, req.OwnerID(), fused)
	if err != nil {
		return Response{}, err
	}
	metrics.FusedResults.Observe(float64(len(fused)))

	assembled := assemble.Assemble(fused, s.opts.Limits.WithMaxChunks(req.MaxChunks()))
	log.Debug("query served",
		zap.Int("fused", len(fused)),
		zap.Int("items", len(assembled.Items)),
		zap.Bool("relaxed", relaxed),
	)

	resp := Response{
		Context:    assembled,
		Strategies: pass.reports[:],
		Relaxed:    relaxed,
		Keywords:   an.Keywords,
	}
	if an.Range != nil {
		r := *an.Range
		resp.Range = &r
	}
	return resp, nil
}

// retrieval is one fan-out over the three strategies.
type retrieval struct {
	vector  []float32
	vecList result.List
	lexList result.List
	pool    int
	reports [3]Report // vector, lexical, temporal
}

func (r *retrieval) lists() []result.List {
	return []result.List{r.vecList, r.lexList}
}

// emptyPool reports whether the temporal count succeeded and found nothing.
func (r *retrieval) emptyPool() bool {
	return r.reports[2].Outcome == OutcomeOK && r.pool == 0
}

// available fails the query when every attempted ranked strategy failed.
func (r *retrieval) available() error {
	attempted, failed := 0, 0
	var errs []error
	for _, rep := range r.reports[:2] {
		if rep.Outcome == OutcomeSkipped {
			continue
		}
		attempted++
		if rep.Outcome == OutcomeFailed || rep.Outcome == OutcomeTimeout {
			failed++
			errs = append(errs, rep.Err)
		}
	}
	if attempted > 0 && failed == attempted {
		return fmt.Errorf("%w: %w", domain.ErrQueryUnavailable, errors.Join(errs...))
	}
	return nil
}

// retrieve runs vector, lexical and temporal sub-searches in parallel under one
// cancellation context. A strategy failure or timeout yields an empty list and a
// report; only cancellation of ctx itself aborts the query.
func (s *Service) retrieve(
	ctx context.Context, ownerID string, an *analyze.Analysis, rng *temporal.Range, vec []float32,
) (*retrieval, error) {
	out := &retrieval{
		vector:  vec,
		vecList: result.List{Strategy: strategy.Vector},
		lexList: result.List{Strategy: strategy.Lexical},
	}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		out.reports[0] = s.run(gctx, strategy.Vector, func(sctx context.Context) (int, error) {
			if out.vector == nil {
				res, err := s.embed.Embed(sctx, an.Raw)
				if err != nil {
					return 0, fmt.Errorf("embed query: %w", err)
				}
				out.vector = res.Embedding
			}
			l, err := s.repo.SearchVector(sctx, ownerID, rng, out.vector, s.opts.TopN)
			if err != nil {
				return 0, err
			}
			out.vecList = l
			return len(l.Results), nil
		})
		return nil
	})

	g.Go(func() error {
		if len(an.Keywords) == 0 {
			out.reports[1] = skipped(strategy.Lexical)
			return nil
		}
		out.reports[1] = s.run(gctx, strategy.Lexical, func(sctx context.Context) (int, error) {
			l, err := s.repo.SearchLexical(sctx, ownerID, rng, an.Keywords, s.opts.TopN)
			if err != nil {
				return 0, err
			}
			out.lexList = l
			return len(l.Results), nil
		})
		return nil
	})

	g.Go(func() error {
		if rng == nil {
			out.reports[2] = skipped(strategy.Temporal)
			return nil
		}
		out.reports[2] = s.run(gctx, strategy.Temporal, func(sctx context.Context) (int, error) {
			n, err := s.repo.CountCandidates(sctx, ownerID, rng)
			if err != nil {
				return 0, err
			}
			out.pool = n
			return n, nil
		})
		return nil
	})

	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("query canceled: %w", err)
	}
	return out, nil
}

// run executes one strategy under its own deadline and records metrics.
func (s *Service) run(
	ctx context.Context, st strategy.Strategy, fn func(context.Context) (int, error),
) Report {
	sctx, cancel := context.WithTimeout(ctx, s.opts.StrategyTimeout)
	defer cancel()

	start := time.Now()
	n, err := fn(sctx)
	elapsed := time.Since(start)
	metrics.StrategyDuration.WithLabelValues(string(st)).Observe(elapsed.Seconds())

	rep := Report{Strategy: st, Outcome: OutcomeOK, Results: n, Elapsed: elapsed}
	switch {
	case err == nil:
	case errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		rep.Outcome = OutcomeTimeout
		rep.Results = 0
		rep.Err = &domain.StrategyError{
			Strategy: string(st), Elapsed: elapsed, Err: fmt.Errorf("%w: %w", domain.ErrStrategyTimeout, err),
		}
	default:
		rep.Outcome = OutcomeFailed
		rep.Results = 0
		rep.Err = &domain.StrategyError{
			Strategy: string(st), Elapsed: elapsed, Err: fmt.Errorf("%w: %w", domain.ErrStrategyFailed, err),
		}
	}
	metrics.StrategyOutcomesTotal.WithLabelValues(string(st), string(rep.Outcome)).Inc()
	if rep.Err != nil {
		logger.FromContextOr(ctx, s.logger).Warn("retrieval strategy degraded",
			zap.String("strategy", string(st)),
			zap.String("outcome", string(rep.Outcome)),
			zap.Duration("duration", elapsed),
			zap.Error(rep.Err),
		)
	}
	return rep
}

func skipped(st strategy.Strategy) Report {
	metrics.StrategyOutcomesTotal.WithLabelValues(string(st), string(OutcomeSkipped)).Inc()
	return Report{Strategy: st, Outcome: OutcomeSkipped}
}

// dropDeleted removes chunks whose document was deleted while the query ran.
func (s *Service) dropDeleted(ctx context.Context, ownerID string, fused []result.Fused) ([]result.Fused, error) {
	if len(fused) == 0 {
		return fused, nil
	}
	seen := make(map[string]bool)
	var ids []string
	for i := range fused {
		c := fused[i].Chunk()
		if !seen[c.DocumentID()] {
			seen[c.DocumentID()] = true
			ids = append(ids, c.DocumentID())
		}
	}
	live, err := s.repo.LiveDocuments(ctx, ownerID, ids)
	if err != nil {
		return nil, fmt.Errorf("check live documents: %w", err)
	}
	out := fused[:0]
	for i := range fused {
		c := fused[i].Chunk()
		if live[c.DocumentID()] {
			out = append(out, fused[i])
		}
	}
	return out, nil
}
