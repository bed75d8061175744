package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/chunker"
	"github.com/kailas-cloud/recall/internal/config"
	dbRedis "github.com/kailas-cloud/recall/internal/db/redis"
	"github.com/kailas-cloud/recall/internal/domain"
	logpkg "github.com/kailas-cloud/recall/internal/logger"
	"github.com/kailas-cloud/recall/internal/metrics"
	"github.com/kailas-cloud/recall/internal/repository/embcache"
	"github.com/kailas-cloud/recall/internal/repository/index"
	"github.com/kailas-cloud/recall/internal/repository/lock"
	"github.com/kailas-cloud/recall/internal/repository/memory"
	chiTransport "github.com/kailas-cloud/recall/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/recall/internal/transport/openai"
	analyzeuc "github.com/kailas-cloud/recall/internal/usecase/analyze"
	answeruc "github.com/kailas-cloud/recall/internal/usecase/answer"
	"github.com/kailas-cloud/recall/internal/usecase/assemble"
	embeddinguc "github.com/kailas-cloud/recall/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/recall/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/recall/internal/usecase/ingest"
	searchuc "github.com/kailas-cloud/recall/internal/usecase/search"
	"github.com/kailas-cloud/recall/internal/version"
)

// backend is what the composition root needs from a storage driver.
type backend interface {
	ingestuc.Repository
	searchuc.Repository
	healthuc.DBPinger
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting recall API server",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	// Register metrics explicitly (no init())
	metrics.Register()

	ctx := context.Background()
	store, locker, closeStore := openBackend(ctx, &cfg, logger)
	defer closeStore()

	// Build embedder chains — composition root
	provider := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		HTTPClient: &http.Client{Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second},
		Logger:     logger,
	})
	docEmbedder := buildEmbedder(provider, &cfg, cfg.Embedding.DocumentInstruction, store, logger)
	queryEmbedder := domain.NewDimensionGuard(
		buildEmbedder(provider, &cfg, cfg.Embedding.QueryInstruction, store, logger),
		cfg.Embedding.Dimensions,
	)
	logger.Info("Embedders created",
		zap.String("model", cfg.Embedding.Model),
		zap.Int("dimensions", cfg.Embedding.Dimensions),
	)

	ch, err := chunker.New(chunker.Config{
		Size:       cfg.Chunking.Size,
		Overlap:    cfg.Chunking.Overlap,
		Separators: cfg.Chunking.Separators,
	})
	if err != nil {
		logger.Fatal("Invalid chunking config", zap.Error(err))
	}

	writer := ingestuc.NewWriter(store, docEmbedder, cfg.Embedding.Dimensions, cfg.Embedding.Concurrency,
		ingestuc.WritePolicy{
			MaxAttempts:    cfg.Retrieval.WriteRetry.MaxAttempts,
			InitialBackoff: time.Duration(cfg.Retrieval.WriteRetry.InitialBackoffMs) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.Retrieval.WriteRetry.MaxBackoffMs) * time.Millisecond,
		}, logger)
	ingestSvc := ingestuc.New(store, ch, writer, locker, logger)

	limits := assemble.Limits{
		MaxChunks:        cfg.Context.MaxChunks,
		MaxChars:         cfg.Context.MaxChars,
		PerDocumentCap:   cfg.Context.PerDocumentCap,
		MinTruncateChars: cfg.Context.MinTruncateChars,
	}
	if err := limits.Validate(); err != nil {
		logger.Fatal("Invalid context config", zap.Error(err))
	}
	policy := searchuc.PolicyStrict
	if cfg.Retrieval.EmptyPoolPolicy == config.PolicyRelax {
		policy = searchuc.PolicyRelax
	}
	searchSvc := searchuc.New(store, queryEmbedder, analyzeuc.New(time.Now), searchuc.Options{
		TopN:            cfg.Retrieval.TopN,
		RRFK:            cfg.Retrieval.RRFK,
		StrategyTimeout: time.Duration(cfg.Retrieval.StrategyTimeoutMs) * time.Millisecond,
		EmptyPoolPolicy: policy,
		Limits:          limits,
	}, logger)

	// Pass nil interface (not typed nil pointer!) if generation is disabled.
	// Go gotcha: (*Generator)(nil) wrapped in domain.Generator != nil.
	var (
		generator       domain.Generator
		generatorHealth healthuc.Checker
	)
	if cfg.Generation.Enabled {
		gen := openaiTransport.NewGenerator(&openaiTransport.Config{
			APIKey:    cfg.Generation.APIKey,
			BaseURL:   cfg.Generation.BaseURL,
			Model:     cfg.Generation.Model,
			MaxTokens: cfg.Generation.MaxTokens,
			Logger:    logger,
		})
		generator = gen
		generatorHealth = gen
		logger.Info("Answer generation enabled", zap.String("model", cfg.Generation.Model))
	}
	answerSvc := answeruc.New(searchSvc, generator,
		time.Duration(cfg.Generation.TimeoutSec)*time.Second, logger)

	healthSvc := healthuc.New(store, provider, generatorHealth)

	server := chiTransport.NewServer(ingestSvc, searchSvc, answerSvc, healthSvc, logger)
	handler := chiTransport.NewRouter(server, cfg.Auth.APIKeys, logger)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// openBackend connects the configured storage driver and returns it with the
// matching per-document lock.
func openBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (backend, ingestuc.Locker, func()) {
	if cfg.Database.Driver == config.DriverMemory {
		logger.Warn("Using in-memory store, content is lost on restart")
		return memory.New(), lock.NewKeyed(), func() {}
	}

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	repo := &redisBackend{
		Repo: index.New(store, index.Options{
			KeyPrefix:       cfg.Storage.KeyPrefix,
			Dimensions:      cfg.Embedding.Dimensions,
			HNSWM:           cfg.Index.HNSWM,
			HNSWEFConstruct: cfg.Index.HNSWEFConstruct,
		}),
		Store: store,
	}
	if err := repo.EnsureIndex(ctx); err != nil {
		store.Close()
		logger.Fatal("Failed to create chunk index", zap.Error(err))
	}

	locker := lock.NewDistributed(store, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Retrieval.LockTimeoutMs)*time.Millisecond, logger)
	return repo, locker, store.Close
}

// redisBackend joins the chunk index with the raw store's ping and KV commands.
type redisBackend struct {
	*index.Repo
	*dbRedis.Store
}

// buildEmbedder assembles the decorator chain:
// OpenAI -> RateLimited -> Retrying -> Cached -> Instrumented -> Instruction.
func buildEmbedder(
	provider domain.Embedder,
	cfg *config.Config,
	instruction string,
	kv embcacheStore,
	logger *zap.Logger,
) domain.Embedder {
	embedder := provider

	if rps := cfg.Embedding.RequestsPerSecond; rps > 0 {
		embedder = embeddinguc.NewRateLimitedEmbedder(embedder, rps, int(rps))
	}

	embedder = embeddinguc.NewRetryingEmbedder(embedder, embeddinguc.RetryPolicy{
		MaxAttempts:    cfg.Embedding.Retry.MaxAttempts,
		InitialBackoff: time.Duration(cfg.Embedding.Retry.InitialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(cfg.Embedding.Retry.MaxBackoffMs) * time.Millisecond,
	}, logger)

	embedder = embcache.New(embedder, kv, cfg.Storage.KeyPrefix,
		time.Duration(cfg.Embedding.CacheTTLHours)*time.Hour, metrics.EmbeddingCacheTotal, logger)

	embedder = embeddinguc.NewInstrumentedEmbedder(embedder, cfg.Embedding.Model, logger)

	// Instruction prefix (outermost)
	if instruction != "" {
		return domain.NewInstructionEmbedder(embedder, instruction)
	}
	return embedder
}

type embcacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
