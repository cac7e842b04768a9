package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	GeminiAPIKey string
	DatabaseURL  string
	UploadDir    string
	HTTPPort     string
	LogLevel     string
	JWTSecret    string

	// LLM settings
	ChatModel         string
	MaxTokens         int32
	Temperature       float32
	ContextWindowSize int

	// Embedding settings
	EmbeddingModel     string
	EmbeddingDimension int

	// RAG settings
	ChunkSize         int
	ChunkOverlap      int
	MaxChunksPerQuery int
	HistoryWindow     int

	// Delay between embedding calls while vectorizing, in milliseconds.
	VectorizeDelayMS int
}

func Load() (*Config, error) {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DatabaseURL:  getEnv("DATABASE_URL", "docuchat.db"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		HTTPPort:     getEnv("HTTP_PORT", "8080"),
		LogLevel:     getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:    getEnv("JWT_SECRET", ""),

		ChatModel:         getEnv("CHAT_MODEL", "gemini-1.5-flash-latest"),
		MaxTokens:         int32(getEnvAsInt("MAX_TOKENS", 2048)),
		Temperature:       float32(getEnvAsFloat("TEMPERATURE", 0.7)),
		ContextWindowSize: getEnvAsInt("CONTEXT_WINDOW_SIZE", 6000),

		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),

		ChunkSize:         getEnvAsInt("CHUNK_SIZE", 500),
		ChunkOverlap:      getEnvAsInt("CHUNK_OVERLAP", 50),
		MaxChunksPerQuery: getEnvAsInt("MAX_CHUNKS_PER_QUERY", 3),
		HistoryWindow:     getEnvAsInt("HISTORY_WINDOW", 10),

		VectorizeDelayMS: getEnvAsInt("VECTORIZE_DELAY_MS", 500),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate fails fast on settings that would make the pipeline misbehave
// at runtime rather than at startup.
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("CHUNK_OVERLAP must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxChunksPerQuery <= 0 {
		return fmt.Errorf("MAX_CHUNKS_PER_QUERY must be positive, got %d", c.MaxChunksPerQuery)
	}
	return nil
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}
