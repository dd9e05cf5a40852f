package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	LLM      LLMConfig
	Ingest   IngestConfig
	Chat     ChatConfig
	Vector   VectorConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LLMConfig struct {
	OpenAIKey     string
	AnthropicKey  string
	OllamaURL     string
	ChatProvider  string
	ChatModel     string
	EmbedProvider string
	EmbedModel    string
	// EmbedDimension pins the vector dimensionality for this deployment.
	// Mixing dimensionalities corrupts similarity search, so a provider
	// returning anything else is a fatal configuration error.
	EmbedDimension int
}

type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

type ChatConfig struct {
	MaxSearchK      int
	HistoryMaxTurns int
	ContextMaxChars int
}

type VectorConfig struct {
	Backend string // "pgvector" or "memory"
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	embedDim, err := getEnvInt("EMBED_DIMENSION", 768)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBED_DIMENSION: %w", err)
	}

	chunkSize, err := getEnvInt("CHUNK_SIZE", 800)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_SIZE: %w", err)
	}

	chunkOverlap, err := getEnvInt("CHUNK_OVERLAP", 80)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_OVERLAP: %w", err)
	}

	maxSearchK, err := getEnvInt("MAX_SEARCH_K", 50)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_SEARCH_K: %w", err)
	}

	historyMaxTurns, err := getEnvInt("CHAT_HISTORY_MAX_TURNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_HISTORY_MAX_TURNS: %w", err)
	}

	contextMaxChars, err := getEnvInt("CHAT_CONTEXT_MAX_CHARS", 8000)
	if err != nil {
		return nil, fmt.Errorf("invalid CHAT_CONTEXT_MAX_CHARS: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: maxConns,
			MinConns: minConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		LLM: LLMConfig{
			OpenAIKey:      getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:   getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:      getEnv("OLLAMA_URL", "http://localhost:11434"),
			ChatProvider:   getEnv("CHAT_PROVIDER", "ollama"),
			ChatModel:      getEnv("CHAT_MODEL", "llama3"),
			EmbedProvider:  getEnv("EMBED_PROVIDER", "ollama"),
			EmbedModel:     getEnv("EMBED_MODEL", "nomic-embed-text"),
			EmbedDimension: embedDim,
		},
		Ingest: IngestConfig{
			ChunkSize:    chunkSize,
			ChunkOverlap: chunkOverlap,
		},
		Chat: ChatConfig{
			MaxSearchK:      maxSearchK,
			HistoryMaxTurns: historyMaxTurns,
			ContextMaxChars: contextMaxChars,
		},
		Vector: VectorConfig{
			Backend: getEnv("VECTOR_BACKEND", "pgvector"),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) Validate() error {
	// Tenant/source/document metadata lives in Postgres regardless of
	// which vector backend is selected.
	var missing []string
	if c.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
