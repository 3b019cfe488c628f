package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type Config struct {
	PostgresDSN string
	LockKey     int64

	DocsDir string
	BaseURL string
	Domain  string

	EmbeddingProvider string
	OllamaURL         string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	EmbeddingModel    string
	EmbeddingDim      int
	EmbedConcurrency  int
	EmbedRateLimit    float64
	EmbedMaxRetries   int

	TokenizerEncoding string
	MaxChunkTokens    int
	MinChunkTokens    int

	ListenAddr     string
	AllowedOrigins []string
	ApiKey         string

	LogLevel slog.Level
}

// Load reads .env (when present) and the process environment. The returned
// value is the only configuration the rest of the program sees.
func Load() (*Config, error) {
	return LoadFile(".env")
}

func LoadFile(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("env file not loaded, using process environment", "file", envFile, "err", err)
	}

	v.AutomaticEnv()

	v.SetDefault("LOCK_KEY", 7264001)
	v.SetDefault("DOCS_DIR", "./build/md")
	v.SetDefault("BASE_URL", "https://www.postgresql.org/docs")
	v.SetDefault("DOMAIN", "postgresql.org")
	v.SetDefault("EMBEDDING_PROVIDER", ProviderOllama)
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("EMBEDDING_DIM", 0)
	v.SetDefault("EMBED_CONCURRENCY", 4)
	v.SetDefault("EMBED_RATE_LIMIT", 0)
	v.SetDefault("EMBED_MAX_RETRIES", 3)
	v.SetDefault("TOKENIZER_ENCODING", "cl100k_base")
	v.SetDefault("MAX_CHUNK_TOKENS", 7000)
	v.SetDefault("MIN_CHUNK_TOKENS", 10)
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost")
	v.SetDefault("LOG_LEVEL", "info")

	provider := strings.ToLower(v.GetString("EMBEDDING_PROVIDER"))
	model := v.GetString("EMBEDDING_MODEL")
	if model == "" {
		model = defaultModel(provider)
	}

	cfg := &Config{
		PostgresDSN:       v.GetString("POSTGRES_DSN"),
		LockKey:           v.GetInt64("LOCK_KEY"),
		DocsDir:           v.GetString("DOCS_DIR"),
		BaseURL:           strings.TrimRight(v.GetString("BASE_URL"), "/"),
		Domain:            v.GetString("DOMAIN"),
		EmbeddingProvider: provider,
		OllamaURL:         strings.TrimRight(v.GetString("OLLAMA_URL"), "/"),
		OpenAIAPIKey:      v.GetString("OPENAI_API_KEY"),
		OpenAIBaseURL:     strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
		EmbeddingModel:    model,
		EmbeddingDim:      v.GetInt("EMBEDDING_DIM"),
		EmbedConcurrency:  v.GetInt("EMBED_CONCURRENCY"),
		EmbedRateLimit:    v.GetFloat64("EMBED_RATE_LIMIT"),
		EmbedMaxRetries:   v.GetInt("EMBED_MAX_RETRIES"),
		TokenizerEncoding: v.GetString("TOKENIZER_ENCODING"),
		MaxChunkTokens:    v.GetInt("MAX_CHUNK_TOKENS"),
		MinChunkTokens:    v.GetInt("MIN_CHUNK_TOKENS"),
		ListenAddr:        v.GetString("LISTEN_ADDR"),
		AllowedOrigins:    strings.Split(v.GetString("ALLOWED_ORIGINS"), ","),
		ApiKey:            v.GetString("API_KEY"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("LOG_LEVEL"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "text-embedding-3-small"
	}
	return "nomic-embed-text"
}

func (c *Config) validate() error {
	var errs []error
	if c.PostgresDSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	switch c.EmbeddingProvider {
	case ProviderOllama:
		if c.OllamaURL == "" {
			errs = append(errs, errors.New("OLLAMA_URL is required"))
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMBEDDING_PROVIDER %q is not supported", c.EmbeddingProvider))
	}
	if c.MaxChunkTokens <= 0 {
		errs = append(errs, errors.New("MAX_CHUNK_TOKENS must be positive"))
	}
	if c.MinChunkTokens < 0 || c.MinChunkTokens > c.MaxChunkTokens {
		errs = append(errs, errors.New("MIN_CHUNK_TOKENS must be between 0 and MAX_CHUNK_TOKENS"))
	}
	if c.EmbedConcurrency <= 0 {
		errs = append(errs, errors.New("EMBED_CONCURRENCY must be positive"))
	}
	if c.EmbedMaxRetries < 0 {
		errs = append(errs, errors.New("EMBED_MAX_RETRIES must not be negative"))
	}
	return errors.Join(errs...)
}
