package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port               string
	DatabaseURL        string
	SlackBotToken      string
	SlackSigningSecret string
	OpenAIAPIKey       string
	LogLevel           string
	LogFormat          string
	Environment        string

	// Models
	CompletionModel string
	EmbeddingModel  string

	// RAG tuning
	ChunkSize      int
	ChunkOverlap   int
	RetrievalTopK  int
	Temperature    float32
	MaxTokens      int

	// Conversation memory
	MemoryWindowTurns          int
	ConversationTimeoutMinutes int
}

func Load() *Config {
	return &Config{
		Port:               getEnvOrDefault("PORT", "8080"),
		DatabaseURL:        getEnvOrDefault("DATABASE_URL", "postgres://localhost/wingman?sslmode=disable"),
		SlackBotToken:      os.Getenv("SLACK_BOT_TOKEN"),
		SlackSigningSecret: os.Getenv("SLACK_SIGNING_SECRET"),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		LogLevel:           getEnvOrDefault("LOG_LEVEL", "INFO"),
		LogFormat:          getEnvOrDefault("LOG_FORMAT", "text"),
		Environment:        getEnvOrDefault("ENVIRONMENT", "development"),

		CompletionModel: getEnvOrDefault("COMPLETION_MODEL", "gpt-4o-mini"),
		EmbeddingModel:  getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-ada-002"),

		ChunkSize:     getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 200),
		RetrievalTopK: getEnvInt("RETRIEVAL_TOP_K", 5),
		Temperature:   getEnvFloat32("LLM_TEMPERATURE", 0.7),
		MaxTokens:     getEnvInt("LLM_MAX_TOKENS", 2000),

		MemoryWindowTurns:          getEnvInt("CONVERSATION_MEMORY_WINDOW", 10),
		ConversationTimeoutMinutes: getEnvInt("CONVERSATION_TIMEOUT_MINUTES", 30),
	}
}

func (c *Config) Validate() error {
	var problems []string

	if c.SlackBotToken == "" {
		problems = append(problems, "SLACK_BOT_TOKEN is required")
	}
	if c.SlackSigningSecret == "" {
		problems = append(problems, "SLACK_SIGNING_SECRET is required")
	}
	if c.OpenAIAPIKey == "" {
		problems = append(problems, "OPENAI_API_KEY is required")
	}
	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}

	if c.SlackBotToken != "" && !strings.HasPrefix(c.SlackBotToken, "xoxb-") {
		problems = append(problems, "SLACK_BOT_TOKEN must start with 'xoxb-'")
	}

	if c.ChunkSize <= 0 {
		problems = append(problems, "CHUNK_SIZE must be positive")
	}
	// The chunker never advances when overlap >= size, so this is enforced
	// here rather than left to fail at indexing time.
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, "CHUNK_OVERLAP must be non-negative and smaller than CHUNK_SIZE")
	}
	if c.RetrievalTopK <= 0 {
		problems = append(problems, "RETRIEVAL_TOP_K must be positive")
	}
	if c.MaxTokens <= 0 {
		problems = append(problems, "LLM_MAX_TOKENS must be positive")
	}
	if c.MemoryWindowTurns <= 0 {
		problems = append(problems, "CONVERSATION_MEMORY_WINDOW must be positive")
	}
	if c.ConversationTimeoutMinutes <= 0 {
		problems = append(problems, "CONVERSATION_TIMEOUT_MINUTES must be positive")
	}

	validLogLevels := []string{"DEBUG", "INFO", "WARN", "ERROR"}
	if !contains(validLogLevels, strings.ToUpper(c.LogLevel)) {
		problems = append(problems, "LOG_LEVEL must be one of: DEBUG, INFO, WARN, ERROR")
	}

	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, strings.ToLower(c.LogFormat)) {
		problems = append(problems, "LOG_FORMAT must be one of: text, json")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(f)
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
