package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend kinds.
const (
	BackendOpenSearch = "opensearch"
	BackendQdrant     = "qdrant"
)

// Config holds the newsrank API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Backend   BackendConfig   `yaml:"backend"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Cache     CacheConfig     `yaml:"cache"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
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

// BackendConfig selects and configures the search backends. Kinds lists
// every backend to wire; a keyword and a vector backend may coexist.
type BackendConfig struct {
	Kinds      []string         `yaml:"kinds"`
	OpenSearch OpenSearchConfig `yaml:"opensearch"`
	Qdrant     QdrantConfig     `yaml:"qdrant"`
}

// OpenSearchConfig holds keyword backend settings.
type OpenSearchConfig struct {
	URL           string `yaml:"url"`
	ArticlesIndex string `yaml:"articles_index"`
	ChunksIndex   string `yaml:"chunks_index"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	ExactSubfield string `yaml:"exact_subfield"`
}

// QdrantConfig holds vector backend settings.
type QdrantConfig struct {
	URL                string `yaml:"url"`
	ArticlesCollection string `yaml:"articles_collection"`
	ChunksCollection   string `yaml:"chunks_collection"`
	APIKey             string `yaml:"api_key"`
	HNSWEf             int    `yaml:"hnsw_ef"`
	Exact              bool   `yaml:"exact"`
	IndexedOnly        bool   `yaml:"indexed_only"`
}

// ExecutorConfig bounds outbound backend traffic.
type ExecutorConfig struct {
	TimeoutSec  int     `yaml:"timeout_sec"`
	MaxParallel int     `yaml:"max_parallel"`
	RatePerSec  float64 `yaml:"rate_per_sec"` // 0 = unlimited
	Burst       int     `yaml:"burst"`
}

// ScoringConfig holds recency scoring settings. RecencyBias is a pointer so
// an explicit 0 (pure relevance) survives ApplyDefaults.
type ScoringConfig struct {
	HalfLifeHours float64  `yaml:"half_life_hours"`
	RecencyBias   *float64 `yaml:"recency_bias"`
}

// EmbeddingConfig holds query embedding settings. An empty APIKey disables
// server-side embedding: callers must then supply vectors.
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	APIKey           string `yaml:"api_key"`
	BaseURL          string `yaml:"base_url"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
}

// CacheConfig holds embedding cache settings. Empty Addrs keeps the
// in-process LRU only.
type CacheConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLHours         int      `yaml:"ttl_hours"`
	LRUSize          int      `yaml:"lru_size"`
	KeyPrefix        string   `yaml:"key_prefix"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse decodes YAML, expands ${VAR} references, applies defaults and validates.
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
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

	if len(c.Backend.Kinds) == 0 {
		c.Backend.Kinds = []string{BackendOpenSearch}
	}
	if c.Backend.OpenSearch.ArticlesIndex == "" {
		c.Backend.OpenSearch.ArticlesIndex = "articles"
	}
	if c.Backend.OpenSearch.ChunksIndex == "" {
		c.Backend.OpenSearch.ChunksIndex = "chunks"
	}
	if c.Backend.OpenSearch.ExactSubfield == "" {
		c.Backend.OpenSearch.ExactSubfield = "keyword"
	}
	if c.Backend.Qdrant.ArticlesCollection == "" {
		c.Backend.Qdrant.ArticlesCollection = "articles"
	}
	if c.Backend.Qdrant.ChunksCollection == "" {
		c.Backend.Qdrant.ChunksCollection = "chunks"
	}
	if c.Backend.Qdrant.HNSWEf <= 0 {
		c.Backend.Qdrant.HNSWEf = 256
	}

	if c.Executor.TimeoutSec <= 0 {
		c.Executor.TimeoutSec = 15
	}
	if c.Executor.MaxParallel <= 0 {
		c.Executor.MaxParallel = 4
	}
	if c.Executor.Burst <= 0 {
		c.Executor.Burst = 1
	}

	if c.Scoring.HalfLifeHours <= 0 {
		c.Scoring.HalfLifeHours = 36
	}
	if c.Scoring.RecencyBias == nil {
		bias := 0.35
		c.Scoring.RecencyBias = &bias
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}

	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 168
	}
	if c.Cache.LRUSize <= 0 {
		c.Cache.LRUSize = 1024
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "newsrank:emb_cache:"
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	seen := map[string]bool{}
	for _, kind := range c.Backend.Kinds {
		if seen[kind] {
			return fmt.Errorf("backend.kinds lists %q twice", kind)
		}
		seen[kind] = true
		switch kind {
		case BackendOpenSearch:
			if c.Backend.OpenSearch.URL == "" {
				return fmt.Errorf("backend.opensearch.url is required")
			}
		case BackendQdrant:
			if c.Backend.Qdrant.URL == "" {
				return fmt.Errorf("backend.qdrant.url is required")
			}
		default:
			return fmt.Errorf("backend.kinds: unknown backend %q (want %q or %q)", kind, BackendOpenSearch, BackendQdrant)
		}
	}
	if c.Executor.RatePerSec < 0 {
		return fmt.Errorf("executor.rate_per_sec must be >= 0, got %v", c.Executor.RatePerSec)
	}
	if b := c.Scoring.RecencyBias; b != nil && (*b < 0 || *b > 0.9) {
		return fmt.Errorf("scoring.recency_bias must be between 0 and 0.9, got %v", *b)
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	if c.Embedding.Dimensions < 0 {
		return fmt.Errorf("embedding.dimensions must be >= 0, got %d", c.Embedding.Dimensions)
	}
	return nil
}

// HasBackend reports whether kind is configured.
func (c *Config) HasBackend(kind string) bool {
	for _, k := range c.Backend.Kinds {
		if k == kind {
			return true
		}
	}
	return false
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
