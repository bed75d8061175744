package recall

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Storage drivers.
const (
	driverMemory = "memory"
	driverRedis  = "redis"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver    string
	addrs     []string
	password  string
	keyPrefix string

	embedder   Embedder
	generator  Generator
	dimensions int

	chunkSize    int
	chunkOverlap int

	maxChunks      int
	maxChars       int
	perDocumentCap int

	strategyTimeout time.Duration
	relaxEmptyPool  bool
	now             func() time.Time

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

// WithMemory keeps the index in process memory. Content is lost on Close.
func WithMemory() Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverMemory
		c.addrs = nil
	})
}

// WithRedis stores the index in a Redis 8 instance with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = driverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithKeyPrefix namespaces every Redis key. Default: "recall:".
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.keyPrefix = prefix
	})
}

// WithEmbedder sets the text embedding provider. Required.
//
// Returning an error that wraps ErrEmbeddingTransient makes the engine retry
// the call; ErrEmbeddingRejected fails the document at once.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithDimensions sets the expected vector length. Vectors of any other length
// are rejected with ErrVectorDimMismatch. Zero disables the check.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithGenerator enables answer generation for Ask.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithChunking sets chunk size and overlap in characters.
// Defaults: 1000 and 200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithContextLimits bounds the assembled context.
// Defaults: 8 chunks, 8000 characters, 2 chunks per document.
func WithContextLimits(maxChunks, maxChars, perDocumentCap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.maxChunks = maxChunks
		c.maxChars = maxChars
		c.perDocumentCap = perDocumentCap
	})
}

// WithStrategyTimeout bounds each retrieval strategy. Default: 2s.
func WithStrategyTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.strategyTimeout = d
	})
}

// WithRelaxedTemporalFilter drops a time constraint that matches no content
// instead of returning an empty result.
func WithRelaxedTemporalFilter() Option {
	return optionFunc(func(c *clientConfig) {
		c.relaxEmptyPool = true
	})
}

// WithClock overrides the instant relative time phrases resolve against.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *clientConfig) {
		c.now = now
	})
}

// WithLogger enables structured logging. Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
