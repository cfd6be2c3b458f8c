// Package config loads service settings from defaults, an optional YAML
// file and BRAIN_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/iammorganparry/clive/apps/brain/internal/ingest"
	"github.com/iammorganparry/clive/apps/brain/internal/similarity"
)

// EnvPrefix is prepended to every environment variable.
const EnvPrefix = "BRAIN"

// Embedding providers and vector backends.
const (
	EmbeddingNone   = "none"
	EmbeddingOllama = "ollama"

	VectorFlat   = "flat"
	VectorQdrant = "qdrant"
)

type Config struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	APIKey   string `mapstructure:"api_key"`

	DBDriver string `mapstructure:"db_driver"`
	DBDSN    string `mapstructure:"db_dsn"`

	// Matching
	SimilarityThreshold float64            `mapstructure:"similarity_threshold"`
	CaveatThreshold     float64            `mapstructure:"caveat_threshold"`
	Weights             similarity.Weights `mapstructure:"weights"`
	KeywordMax          int                `mapstructure:"keyword_max"`
	MinTokenLength      int                `mapstructure:"min_token_length"`
	LexiconPath         string             `mapstructure:"lexicon_path"`
	MaxAlternatives     int                `mapstructure:"max_alternatives"`

	// Answer cache
	CacheCapacity int           `mapstructure:"cache_capacity"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	RedisURL      string        `mapstructure:"redis_url"`

	// Embeddings and vector index
	EmbeddingProvider string `mapstructure:"embedding_provider"`
	OllamaBaseURL     string `mapstructure:"ollama_base_url"`
	EmbeddingModel    string `mapstructure:"embedding_model"`
	EmbeddingDim      int    `mapstructure:"embedding_dim"`
	VectorBackend     string `mapstructure:"vector_backend"`
	QdrantURL         string `mapstructure:"qdrant_url"`
	QdrantCollection  string `mapstructure:"qdrant_collection"`
	QdrantAPIKey      string `mapstructure:"qdrant_api_key"`

	// Ingestion
	Ingest   ingest.Options `mapstructure:"ingest"`
	InboxDir string         `mapstructure:"inbox_dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8742)
	v.SetDefault("log_level", "info")
	v.SetDefault("api_key", "")
	v.SetDefault("db_driver", "sqlite3")
	v.SetDefault("db_dsn", "./data/brain.db")

	w := similarity.DefaultWeights()
	v.SetDefault("similarity_threshold", 0.6)
	v.SetDefault("caveat_threshold", 0.8)
	v.SetDefault("weights.exact", w.Exact)
	v.SetDefault("weights.partial", w.Partial)
	v.SetDefault("weights.word_overlap", w.WordOverlap)
	v.SetDefault("weights.keyword_overlap", w.KeywordOverlap)
	v.SetDefault("weights.length_ratio", w.LengthRatio)
	v.SetDefault("keyword_max", similarity.DefaultKeywordMax)
	v.SetDefault("min_token_length", 2)
	v.SetDefault("lexicon_path", "")
	v.SetDefault("max_alternatives", 2)

	v.SetDefault("cache_capacity", 10000)
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("sweep_interval", time.Minute)
	v.SetDefault("redis_url", "")

	v.SetDefault("embedding_provider", EmbeddingNone)
	v.SetDefault("ollama_base_url", "http://localhost:11434")
	v.SetDefault("embedding_model", "nomic-embed-text")
	v.SetDefault("embedding_dim", 768)
	v.SetDefault("vector_backend", VectorFlat)
	v.SetDefault("qdrant_url", "http://localhost:6333")
	v.SetDefault("qdrant_collection", "brain_knowledge")
	v.SetDefault("qdrant_api_key", "")

	o := ingest.DefaultOptions()
	v.SetDefault("ingest.window", o.Window)
	v.SetDefault("ingest.min_score", o.MinScore)
	v.SetDefault("ingest.marker", o.Marker)
	v.SetDefault("ingest.structured_confidence", o.StructuredConfidence)
	v.SetDefault("inbox_dir", "")
}

// Load reads configuration. An empty path looks for brain.yaml in the
// working directory and tolerates its absence; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("brain")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db_dsn must not be empty")
	}
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("db_driver must be sqlite3 or postgres, got %q", c.DBDriver)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be within [0,1], got %v", c.SimilarityThreshold)
	}
	if c.CaveatThreshold < 0 || c.CaveatThreshold > 1 {
		return fmt.Errorf("caveat_threshold must be within [0,1], got %v", c.CaveatThreshold)
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("weights: %w", err)
	}
	if c.MinTokenLength < 1 {
		return fmt.Errorf("min_token_length must be positive, got %d", c.MinTokenLength)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("cache_capacity must be positive, got %d", c.CacheCapacity)
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("cache_ttl must be positive, got %v", c.CacheTTL)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %v", c.SweepInterval)
	}
	switch c.EmbeddingProvider {
	case EmbeddingNone:
	case EmbeddingOllama:
		if c.OllamaBaseURL == "" {
			return fmt.Errorf("ollama_base_url must not be empty")
		}
		if c.EmbeddingDim < 1 {
			return fmt.Errorf("embedding_dim must be positive, got %d", c.EmbeddingDim)
		}
	default:
		return fmt.Errorf("embedding_provider must be none or ollama, got %q", c.EmbeddingProvider)
	}
	switch c.VectorBackend {
	case VectorFlat:
	case VectorQdrant:
		if c.QdrantURL == "" {
			return fmt.Errorf("qdrant_url must not be empty")
		}
	default:
		return fmt.Errorf("vector_backend must be flat or qdrant, got %q", c.VectorBackend)
	}
	if c.Ingest.Window < 1 {
		return fmt.Errorf("ingest.window must be positive, got %d", c.Ingest.Window)
	}
	if strings.TrimSpace(c.Ingest.Marker) == "" {
		return fmt.Errorf("ingest.marker must not be empty")
	}
	if c.Ingest.MinScore < 0 {
		return fmt.Errorf("ingest.min_score must not be negative, got %v", c.Ingest.MinScore)
	}
	if c.Ingest.StructuredConfidence < 0 || c.Ingest.StructuredConfidence > 100 {
		return fmt.Errorf("ingest.structured_confidence must be within [0,100], got %v", c.Ingest.StructuredConfidence)
	}
	return nil
}

// EmbeddingEnabled reports whether an embedding provider is configured.
func (c *Config) EmbeddingEnabled() bool {
	return c.EmbeddingProvider != EmbeddingNone
}
