package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/recall/internal/domain"
)

// Config holds the recall service configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Index      IndexConfig      `yaml:"index"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Context    ContextConfig    `yaml:"context"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// Database drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// IndexConfig holds HNSW parameters of the chunk index.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
}

// EmbeddingConfig holds embedding provider and pipeline settings.
type EmbeddingConfig struct {
	APIKey              string      `yaml:"api_key"`
	BaseURL             string      `yaml:"base_url"`
	Model               string      `yaml:"model"`
	Dimensions          int         `yaml:"dimensions"`
	DocumentInstruction string      `yaml:"document_instruction"`
	QueryInstruction    string      `yaml:"query_instruction"`
	Concurrency         int         `yaml:"concurrency"`
	RequestsPerSecond   float64     `yaml:"requests_per_second"` // 0 = unlimited
	TimeoutSec          int         `yaml:"timeout_sec"`
	CacheTTLHours       int         `yaml:"cache_ttl_hours"` // 0 = no expiry
	Retry               RetryConfig `yaml:"retry"`
}

// RetryConfig holds bounded exponential backoff settings.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms"`
}

// GenerationConfig holds answer generator settings.
type GenerationConfig struct {
	Enabled    bool   `yaml:"enabled"`
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	MaxTokens  int    `yaml:"max_tokens"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// ChunkingConfig holds chunk size and overlap in characters.
// Overlap defaults only when size is defaulted too.
type ChunkingConfig struct {
	Size       int      `yaml:"size"`
	Overlap    int      `yaml:"overlap"`
	Separators []string `yaml:"separators"`
}

// Empty pool policies.
const (
	PolicyStrict = "strict"
	PolicyRelax  = "relax"
)

// RetrievalConfig holds retriever and fusion settings.
type RetrievalConfig struct {
	TopN              int         `yaml:"top_n"`
	RRFK              int         `yaml:"rrf_k"`
	StrategyTimeoutMs int         `yaml:"strategy_timeout_ms"`
	EmptyPoolPolicy   string      `yaml:"empty_pool_policy"` // strict, relax
	WriteRetry        RetryConfig `yaml:"write_retry"`
	LockTimeoutMs     int         `yaml:"lock_timeout_ms"`
}

// ContextConfig holds context assembly limits.
type ContextConfig struct {
	MaxChunks        int `yaml:"max_chunks"`
	MaxChars         int `yaml:"max_chars"`
	PerDocumentCap   int `yaml:"per_document_cap"`
	MinTruncateChars int `yaml:"min_truncate_chars"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", configPath, err)
	}
	return cfg, nil
}

// Parse decodes YAML with ${VAR} substitution, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocognit,gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverRedis
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "recall:"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}

	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 4
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	c.Embedding.Retry.applyDefaults(3, 200, 5000)

	if c.Generation.MaxTokens <= 0 {
		c.Generation.MaxTokens = 512
	}
	if c.Generation.TimeoutSec <= 0 {
		c.Generation.TimeoutSec = 30
	}

	if c.Chunking.Size == 0 {
		c.Chunking.Size = 1000
		if c.Chunking.Overlap == 0 {
			c.Chunking.Overlap = 200
		}
	}

	if c.Retrieval.TopN <= 0 {
		c.Retrieval.TopN = 50
	}
	if c.Retrieval.RRFK == 0 {
		c.Retrieval.RRFK = 60
	}
	if c.Retrieval.StrategyTimeoutMs <= 0 {
		c.Retrieval.StrategyTimeoutMs = 2000
	}
	if c.Retrieval.EmptyPoolPolicy == "" {
		c.Retrieval.EmptyPoolPolicy = PolicyStrict
	}
	if c.Retrieval.LockTimeoutMs <= 0 {
		c.Retrieval.LockTimeoutMs = 30000
	}
	c.Retrieval.WriteRetry.applyDefaults(3, 100, 2000)

	if c.Context.MaxChunks <= 0 {
		c.Context.MaxChunks = 8
	}
	if c.Context.MaxChars <= 0 {
		c.Context.MaxChars = 8000
	}
	if c.Context.PerDocumentCap <= 0 {
		c.Context.PerDocumentCap = 2
	}
	if c.Context.MinTruncateChars <= 0 {
		c.Context.MinTruncateChars = 200
	}
}

func (r *RetryConfig) applyDefaults(attempts, initialMs, maxMs int) {
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = attempts
	}
	if r.InitialBackoffMs <= 0 {
		r.InitialBackoffMs = initialMs
	}
	if r.MaxBackoffMs <= 0 {
		r.MaxBackoffMs = maxMs
	}
}

// Validate checks the configuration for correctness.
// Chunking and retrieval problems are reported as domain.ConfigError.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverRedis:
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverMemory, DriverRedis, c.Database.Driver)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must not be negative")
	}

	var errs []error
	if c.Chunking.Size <= 0 {
		errs = append(errs, domain.NewConfigError("chunking.size", "must be positive"))
	}
	if c.Chunking.Overlap < 0 {
		errs = append(errs, domain.NewConfigError("chunking.overlap", "must not be negative"))
	}
	if c.Chunking.Size > 0 && c.Chunking.Overlap >= c.Chunking.Size {
		errs = append(errs, domain.NewConfigError("chunking.overlap", "must be smaller than size"))
	}
	if c.Retrieval.RRFK < 0 {
		errs = append(errs, domain.NewConfigError("retrieval.rrf_k", "must not be negative"))
	}
	switch c.Retrieval.EmptyPoolPolicy {
	case PolicyStrict, PolicyRelax:
	default:
		errs = append(errs, domain.NewConfigError("retrieval.empty_pool_policy",
			fmt.Sprintf("must be %q or %q, got %q", PolicyStrict, PolicyRelax, c.Retrieval.EmptyPoolPolicy)))
	}
	if c.Context.MinTruncateChars > c.Context.MaxChars {
		errs = append(errs, domain.NewConfigError("context.min_truncate_chars", "must not exceed max_chars"))
	}
	return errors.Join(errs...)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
