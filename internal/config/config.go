package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"
)

// Prefix is prepended to every environment key.
const Prefix = "GATEWAY"

// Backends
const (
	VectorBackendFlat     = "flat"
	VectorBackendPgvector = "pgvector"
)

type Config struct {
	Port      string `envconfig:"PORT" default:"8080"`
	Debug     bool   `envconfig:"DEBUG" default:"false"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
	// APIKey, when set, is required as a bearer token on every API route.
	APIKey    string `envconfig:"API_KEY"`

	DatabaseURL string `envconfig:"DATABASE_URL"`
	RedisURL    string `envconfig:"REDIS_URL"`

	CheckpointBackend string        `envconfig:"CHECKPOINT_BACKEND" default:"sqlite"`
	CheckpointPath    string        `envconfig:"CHECKPOINT_PATH" default:"data/checkpoints.db"`
	CheckpointTTL     time.Duration `envconfig:"CHECKPOINT_TTL" default:"0"`

	VectorBackend       string `envconfig:"VECTOR_BACKEND" default:"flat"`
	VectorStorePath     string `envconfig:"VECTORSTORE_PATH" default:"data/vectorstore"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" required:"true"`

	EmbeddingProvider string        `envconfig:"EMBEDDING_PROVIDER" default:"openai"`
	EmbeddingModel    string        `envconfig:"EMBEDDING_MODEL"`
	OpenAIAPIKey      string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL     string        `envconfig:"OPENAI_BASE_URL"`
	GeminiAPIKey      string        `envconfig:"GEMINI_API_KEY"`
	LLMModel          string        `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMSummaryModel   string        `envconfig:"LLM_SUMMARY_MODEL"`
	LLMTemperature    float32       `envconfig:"LLM_TEMPERATURE" default:"0.7"`
	LLMMaxTokens      int           `envconfig:"LLM_MAX_TOKENS" default:"0"`
	LLMTimeout        time.Duration `envconfig:"LLM_TIMEOUT" default:"60s"`

	PersonaRegistryPath string        `envconfig:"PERSONA_REGISTRY_PATH"`
	PersonaCacheSize    int           `envconfig:"PERSONA_CACHE_SIZE" default:"256"`
	PersonaCacheTTL     time.Duration `envconfig:"PERSONA_CACHE_TTL" default:"5m"`
	KnowledgeDir        string        `envconfig:"KNOWLEDGE_DIR" default:"data/knowledge"`
	KnowledgeS3Prefix   string        `envconfig:"KNOWLEDGE_S3_PREFIX" default:"personas"`
	CorpusPaths         []string      `envconfig:"CORPUS_PATHS"`

	HostileKeywords  []string `envconfig:"HOSTILE_KEYWORDS"`
	PoliteKeywords   []string `envconfig:"POLITE_KEYWORDS"`
	HistoryThreshold int      `envconfig:"HISTORY_THRESHOLD" default:"20"`
	RetrievalK       int      `envconfig:"RETRIEVAL_K" default:"5"`
	RecallK          int      `envconfig:"RECALL_K" default:"20"`

	PersistSchedule     string        `envconfig:"PERSIST_SCHEDULE" default:"@every 1m"`
	ReindexPollInterval time.Duration `envconfig:"REINDEX_POLL_INTERVAL" default:"10s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"gateway-knowledge"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	return cfg
}

// Validate rejects combinations that cannot start.
func (c *Config) Validate() error {
	var problems []string

	if c.EmbeddingDimensions <= 0 {
		problems = append(problems, "EMBEDDING_DIMENSIONS must be positive")
	}

	switch c.VectorBackend {
	case VectorBackendFlat:
		if c.VectorStorePath == "" {
			problems = append(problems, "VECTORSTORE_PATH is required for the flat vector backend")
		}
	case VectorBackendPgvector:
		if !c.HasDatabase() {
			problems = append(problems, "DATABASE_URL is required for the pgvector backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown VECTOR_BACKEND %q", c.VectorBackend))
	}

	switch c.CheckpointBackend {
	case "memory":
	case "sqlite":
		if c.CheckpointPath == "" {
			problems = append(problems, "CHECKPOINT_PATH is required for the sqlite checkpoint backend")
		}
	case "redis":
		if !c.HasRedis() {
			problems = append(problems, "REDIS_URL is required for the redis checkpoint backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown CHECKPOINT_BACKEND %q", c.CheckpointBackend))
	}

	switch c.EmbeddingProvider {
	case "openai":
		if !c.HasOpenAI() {
			problems = append(problems, "OPENAI_API_KEY or OPENAI_BASE_URL is required for openai embeddings")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			problems = append(problems, "GEMINI_API_KEY is required for gemini embeddings")
		}
	case "hash":
	default:
		problems = append(problems, fmt.Sprintf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider))
	}

	if c.HistoryThreshold <= 0 || c.RetrievalK <= 0 || c.RecallK <= 0 {
		problems = append(problems, "HISTORY_THRESHOLD, RETRIEVAL_K and RECALL_K must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// HasOpenAI reports whether an OpenAI-compatible endpoint is reachable: a key
// for the hosted API, or a base URL for self-hosted servers.
func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != "" || c.OpenAIBaseURL != ""
}
