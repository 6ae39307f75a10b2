// Package config provides application configuration loaded from environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Embedding backends.
const (
	EmbeddingBackendLocal = "local"
	EmbeddingBackendCLIP  = "clip"
	EmbeddingBackendMock  = "mock"
)

// Tag backends.
const (
	TagBackendCLIP   = "clip"
	TagBackendOpenAI = "openai"
	TagBackendOllama = "ollama"
	TagBackendMock   = "mock"
	TagBackendNone   = "none"
)

// Clustering strategies.
const (
	StrategyHybrid     = "hybrid"
	StrategySimilarity = "similarity"
)

// Tag threshold bounds. The default floor is 0.5; anything below 0.45 lets noise through.
const (
	DefaultTagThreshold = 0.5
	MinTagThreshold     = 0.45
)

// DefaultMaxPixels is the default MAX_PIXELS (64 megapixels).
const DefaultMaxPixels = 64 << 20

// Config holds all application configuration.
type Config struct {
	LogLevel  string
	LogFormat string

	EmbeddingBackend string
	TagBackend       string
	ClusterStrategy  string

	CLIPServiceURL string
	CLIPEmbedModel string
	// CLIPRateLimit is the max requests per second against the CLIP service (0 = unlimited).
	CLIPRateLimit float64

	OpenAIAPIKey string
	OpenAIModel  string

	OllamaBaseURL string
	OllamaModel   string

	TagThreshold float64
	// MaxConcurrency caps concurrent per-image tasks; 0 scales with batch size.
	MaxConcurrency      int
	SubclusterThreshold int
	MaxSubclusters      int
	KMeansSeed          uint64
	PaletteSize         int
	// MaxFileBytes drops larger uploads before decoding; 0 disables the check.
	MaxFileBytes int64
	// MaxPixels rejects images whose header declares more pixels, before decoding.
	MaxPixels        int64
	VocabularyFile   string
	FeatureCacheSize int

	DatabaseURL     string
	CollectionLimit int

	MetricsAddr        string
	OtelTracesExporter string
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value.
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value.
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsUint64 retrieves an environment variable as an unsigned integer or returns a default value.
func getEnvAsUint64(key string, defaultValue uint64) uint64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

// Load reads configuration from environment variables and returns a Config struct.
// It automatically loads .env file if it exists.
// Returns default values for any missing environment variables and an error for
// values that parse but are out of range.
func Load() (*Config, error) {
	// Load .env file if it exists. Skip logging when absent.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	cfg := &Config{
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		EmbeddingBackend: strings.ToLower(getEnv("EMBEDDING_BACKEND", EmbeddingBackendLocal)),
		TagBackend:       strings.ToLower(getEnv("TAG_BACKEND", TagBackendNone)),
		ClusterStrategy:  strings.ToLower(getEnv("CLUSTER_STRATEGY", StrategyHybrid)),

		CLIPServiceURL: getEnv("CLIP_SERVICE_URL", "http://localhost:8000"),
		CLIPEmbedModel: getEnv("CLIP_EMBED_MODEL", "clip-vit-base-patch32"),
		CLIPRateLimit:  getEnvAsFloat("CLIP_RATE_LIMIT", 0),

		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o-mini"),

		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llava"),

		TagThreshold:        getEnvAsFloat("TAG_THRESHOLD", DefaultTagThreshold),
		MaxConcurrency:      getEnvAsInt("MAX_CONCURRENCY", 0),
		SubclusterThreshold: getEnvAsInt("SUBCLUSTER_THRESHOLD", 4),
		MaxSubclusters:      getEnvAsInt("MAX_SUBCLUSTERS", 3),
		KMeansSeed:          getEnvAsUint64("KMEANS_SEED", 42),
		PaletteSize:         getEnvAsInt("PALETTE_SIZE", 5),
		MaxFileBytes:        int64(getEnvAsInt("MAX_FILE_BYTES", 0)),
		MaxPixels:           int64(getEnvAsInt("MAX_PIXELS", DefaultMaxPixels)),
		VocabularyFile:      os.Getenv("VOCABULARY_FILE"),
		FeatureCacheSize:    getEnvAsInt("FEATURE_CACHE_SIZE", 512),

		DatabaseURL:     os.Getenv("DATABASE_URL"),
		CollectionLimit: getEnvAsInt("COLLECTION_LIMIT", 15),

		MetricsAddr:        os.Getenv("METRICS_ADDR"),
		OtelTracesExporter: os.Getenv("OTEL_TRACES_EXPORTER"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first out-of-range or unknown setting.
func (c *Config) Validate() error {
	switch c.EmbeddingBackend {
	case EmbeddingBackendLocal, EmbeddingBackendCLIP, EmbeddingBackendMock:
	default:
		return fmt.Errorf("EMBEDDING_BACKEND must be one of local, clip, mock (got %q)", c.EmbeddingBackend)
	}

	switch c.TagBackend {
	case TagBackendCLIP, TagBackendOpenAI, TagBackendOllama, TagBackendMock, TagBackendNone:
	default:
		return fmt.Errorf("TAG_BACKEND must be one of clip, openai, ollama, mock, none (got %q)", c.TagBackend)
	}

	switch c.ClusterStrategy {
	case StrategyHybrid, StrategySimilarity:
	default:
		return fmt.Errorf("CLUSTER_STRATEGY must be hybrid or similarity (got %q)", c.ClusterStrategy)
	}

	if c.TagBackend == TagBackendOpenAI && c.OpenAIAPIKey == "" {
		return errors.New("OPENAI_API_KEY is required when TAG_BACKEND=openai")
	}

	if c.TagThreshold < MinTagThreshold || c.TagThreshold > 1 {
		return fmt.Errorf("TAG_THRESHOLD must be between %.2f and 1 (got %g)", MinTagThreshold, c.TagThreshold)
	}

	if c.MaxConcurrency < 0 {
		return errors.New("MAX_CONCURRENCY must be zero (adaptive) or a positive integer")
	}

	if c.SubclusterThreshold < 1 {
		return errors.New("SUBCLUSTER_THRESHOLD must be a positive integer")
	}

	if c.MaxSubclusters < 1 {
		return errors.New("MAX_SUBCLUSTERS must be a positive integer")
	}

	if c.PaletteSize < 1 || c.PaletteSize > 5 {
		return fmt.Errorf("PALETTE_SIZE must be between 1 and 5 (got %d)", c.PaletteSize)
	}

	if c.MaxFileBytes < 0 {
		return errors.New("MAX_FILE_BYTES must not be negative")
	}

	if c.MaxPixels <= 0 {
		return errors.New("MAX_PIXELS must be a positive integer")
	}

	if c.CLIPRateLimit < 0 {
		return errors.New("CLIP_RATE_LIMIT must not be negative")
	}

	if c.FeatureCacheSize < 0 {
		return errors.New("FEATURE_CACHE_SIZE must not be negative")
	}

	if c.CollectionLimit <= 0 {
		return errors.New("COLLECTION_LIMIT must be a positive integer")
	}

	return nil
}
