package recall

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/chunker"
	dbRedis "github.com/kailas-cloud/recall/internal/db/redis"
	"github.com/kailas-cloud/recall/internal/domain"
	domdoc "github.com/kailas-cloud/recall/internal/domain/document"
	"github.com/kailas-cloud/recall/internal/domain/search/request"
	"github.com/kailas-cloud/recall/internal/domain/temporal"
	"github.com/kailas-cloud/recall/internal/metrics"
	"github.com/kailas-cloud/recall/internal/repository/embcache"
	"github.com/kailas-cloud/recall/internal/repository/index"
	"github.com/kailas-cloud/recall/internal/repository/lock"
	"github.com/kailas-cloud/recall/internal/repository/memory"
	analyzeuc "github.com/kailas-cloud/recall/internal/usecase/analyze"
	answeruc "github.com/kailas-cloud/recall/internal/usecase/answer"
	"github.com/kailas-cloud/recall/internal/usecase/assemble"
	embeddinguc "github.com/kailas-cloud/recall/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/recall/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultKeyPrefix        = "recall:"
	defaultConcurrency      = 4
	generationTimeout       = 30 * time.Second
	lockLease               = 30 * time.Second
)

// Внутренние интерфейсы для подмены в тестах.
type ingestUseCase interface {
	Ingest(ctx context.Context, in ingestuc.Input) (domdoc.Document, error)
	Reindex(ctx context.Context, in ingestuc.Input) (domdoc.Document, error)
	Get(ctx context.Context, ownerID, id string) (domdoc.Document, error)
	Delete(ctx context.Context, ownerID, id string) error
}

type searchUseCase interface {
	Query(ctx context.Context, req *request.Request) (searchuc.Response, error)
}

type answerUseCase interface {
	Ask(ctx context.Context, req *request.Request) (answeruc.Result, error)
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}

// backend is a storage driver as the client wires it.
type backend interface {
	ingestuc.Repository
	searchuc.Repository
	healthuc.DBPinger
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Client is the recall entry point. Safe for concurrent use.
type Client struct {
	closer    func()
	ingestSvc ingestUseCase
	searchSvc searchUseCase
	answerSvc answerUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client. With WithRedis the provided context bounds the
// initial readiness check and index creation.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{keyPrefix: defaultKeyPrefix}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.driver == "" {
		return nil, errors.New("recall: storage required (use WithMemory or WithRedis)")
	}
	if cfg.embedder == nil {
		return nil, errors.New("recall: embedder required (use WithEmbedder)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	store, locker, closer, err := openBackend(ctx, cfg, obs.logger)
	if err != nil {
		return nil, err
	}

	c, err := wireClient(store, locker, cfg, obs)
	if err != nil {
		closer()
		return nil, err
	}
	c.closer = closer
	return c, nil
}

func openBackend(ctx context.Context, cfg *clientConfig, logger *zap.Logger) (backend, ingestuc.Locker, func(), error) {
	switch cfg.driver {
	case driverMemory:
		return memory.New(), lock.NewKeyed(), func() {}, nil
	case driverRedis:
		s, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.addrs,
			Password: cfg.password,
		})
		if err != nil {
			return nil, nil, nil, fmt.Errorf("recall: create redis store: %w", err)
		}
		if err := s.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			s.Close()
			return nil, nil, nil, fmt.Errorf("recall: database not ready: %w", err)
		}
		repo := index.New(s, index.Options{
			KeyPrefix:  cfg.keyPrefix,
			Dimensions: cfg.dimensions,
		})
		if err := repo.EnsureIndex(ctx); err != nil {
			s.Close()
			return nil, nil, nil, fmt.Errorf("recall: ensure index: %w", err)
		}
		locker := lock.NewDistributed(s, cfg.keyPrefix, lockLease, logger)
		return &redisBackend{Repo: repo, Store: s}, locker, s.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("recall: unknown driver %q", cfg.driver)
	}
}

// redisBackend joins the chunk index with the raw store's ping and KV commands.
type redisBackend struct {
	*index.Repo
	*dbRedis.Store
}

func wireClient(store backend, locker ingestuc.Locker, cfg *clientConfig, obs *observer) (*Client, error) {
	size, overlap := cfg.chunkSize, cfg.chunkOverlap
	if size == 0 {
		size = chunker.DefaultSize
		if overlap == 0 {
			overlap = chunker.DefaultOverlap
		}
	}
	ch, err := chunker.New(chunker.Config{Size: size, Overlap: overlap})
	if err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}

	limits := assemble.DefaultLimits()
	if cfg.maxChunks > 0 {
		limits.MaxChunks = cfg.maxChunks
	}
	if cfg.maxChars > 0 {
		limits.MaxChars = cfg.maxChars
		if limits.MinTruncateChars > limits.MaxChars {
			limits.MinTruncateChars = limits.MaxChars
		}
	}
	if cfg.perDocumentCap > 0 {
		limits.PerDocumentCap = cfg.perDocumentCap
	}
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("recall: %w", err)
	}

	logger := obs.logger

	// Embedder chain: user embedder -> Retrying -> Cached -> Instrumented
	var emb domain.Embedder = &embedderAdapter{inner: cfg.embedder}
	emb = embeddinguc.NewRetryingEmbedder(emb, embeddinguc.RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}, logger)
	emb = embcache.New(emb, store, cfg.keyPrefix, 0, metrics.EmbeddingCacheTotal, logger)
	emb = embeddinguc.NewInstrumentedEmbedder(emb, "client", logger)

	writer := ingestuc.NewWriter(store, emb, cfg.dimensions, defaultConcurrency, ingestuc.WritePolicy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}, logger)
	ingestSvc := ingestuc.New(store, ch, writer, locker, logger)

	policy := searchuc.PolicyStrict
	if cfg.relaxEmptyPool {
		policy = searchuc.PolicyRelax
	}
	searchSvc := searchuc.New(store, domain.NewDimensionGuard(emb, cfg.dimensions), analyzeuc.New(cfg.now),
		searchuc.Options{
			StrategyTimeout: cfg.strategyTimeout,
			EmptyPoolPolicy: policy,
			Limits:          limits,
		}, logger)

	// Pass nil interface (not typed nil pointer!) if generation is disabled.
	var gen domain.Generator
	if cfg.generator != nil {
		gen = &generatorAdapter{inner: cfg.generator}
	}
	answerSvc := answeruc.New(searchSvc, gen, generationTimeout, logger)

	return &Client{
		closer:    func() {},
		ingestSvc: ingestSvc,
		searchSvc: searchSvc,
		answerSvc: answerSvc,
		healthSvc: healthuc.New(store, nil, nil),
		obs:       obs,
	}, nil
}

// Close releases all resources.
func (c *Client) Close() {
	if c.closer != nil {
		c.closer()
	}
}

// Ingest chunks, embeds and indexes doc for ownerID and returns its ID.
// Ingesting an ID the owner already has replaces that document; an ID owned
// by someone else fails with ErrConflict.
func (c *Client) Ingest(ctx context.Context, ownerID string, doc Document) (id string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	indexed, err := c.ingestSvc.Ingest(ctx, inputFrom(ownerID, &doc))
	if err != nil {
		return "", fmt.Errorf("ingest: %w", err)
	}
	return indexed.ID(), nil
}

// Reindex replaces an existing document's text. Fails with ErrNotFound when
// the owner has no document doc.ID.
func (c *Client) Reindex(ctx context.Context, ownerID string, doc Document) (info DocumentInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reindex", start, err) }()

	indexed, err := c.ingestSvc.Reindex(ctx, inputFrom(ownerID, &doc))
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("reindex: %w", err)
	}
	return documentInfo(&indexed), nil
}

// Get returns an owner's document.
func (c *Client) Get(ctx context.Context, ownerID, id string) (info DocumentInfo, err error) {
	start := time.Now()
	defer func() { c.obs.observe("get", start, err) }()

	doc, err := c.ingestSvc.Get(ctx, ownerID, id)
	if err != nil {
		return DocumentInfo{}, fmt.Errorf("get: %w", err)
	}
	return documentInfo(&doc), nil
}

// Delete removes a document and all its chunks. Queries that start after
// Delete returns never see them.
func (c *Client) Delete(ctx context.Context, ownerID, id string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	if err = c.ingestSvc.Delete(ctx, ownerID, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Query retrieves the context for q from ownerID's content.
func (c *Client) Query(ctx context.Context, ownerID string, q Query) (res Result, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err) }()

	req, err := requestFrom(ownerID, &q)
	if err != nil {
		return Result{}, err
	}
	resp, err := c.searchSvc.Query(ctx, &req)
	if err != nil {
		return Result{}, fmt.Errorf("query: %w", err)
	}
	return resultFrom(&resp), nil
}

// Ask answers q from ownerID's content.
func (c *Client) Ask(ctx context.Context, ownerID string, q Query) (ans Answer, err error) {
	start := time.Now()
	defer func() { c.obs.observe("ask", start, err) }()

	req, err := requestFrom(ownerID, &q)
	if err != nil {
		return Answer{}, err
	}
	res, err := c.answerSvc.Ask(ctx, &req)
	if err != nil {
		return Answer{}, fmt.Errorf("ask: %w", err)
	}

	out := Answer{
		Kind:   string(res.Answer.Kind()),
		Text:   res.Answer.Text(),
		Reason: res.Answer.Reason(),
		Result: resultFrom(&res.Query),
	}
	for _, s := range res.Answer.Sources() {
		out.Sources = append(out.Sources, sourceFrom(s))
	}
	return out, nil
}

func inputFrom(ownerID string, doc *Document) ingestuc.Input {
	return ingestuc.Input{
		ID:          doc.ID,
		OwnerID:     ownerID,
		ContentType: domdoc.ContentType(doc.ContentType),
		Text:        doc.Text,
		ContentTime: doc.ContentTime,
		Metadata: domdoc.Metadata{
			Title:     doc.Title,
			Author:    doc.Author,
			Tags:      doc.Tags,
			SourceURL: doc.SourceURL,
		},
	}
}

func requestFrom(ownerID string, q *Query) (request.Request, error) {
	var rng *temporal.Range
	if q.Range != nil {
		r, err := temporal.New(q.Range.Start, q.Range.End)
		if err != nil {
			return request.Request{}, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}
		rng = &r
	}
	req, err := request.New(ownerID, q.Text, q.MaxChunks, rng)
	if err != nil {
		return request.Request{}, fmt.Errorf("query: %w", err)
	}
	return req, nil
}
