package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		GeminiAPIKey:      "key",
		JWTSecret:         "secret",
		ChunkSize:         500,
		ChunkOverlap:      50,
		MaxChunksPerQuery: 3,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.GeminiAPIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.JWTSecret = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.ChunkSize = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.ChunkOverlap = -1
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.ChunkOverlap = cfg.ChunkSize
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.MaxChunksPerQuery = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 3, cfg.MaxChunksPerQuery)
	assert.Equal(t, 6000, cfg.ContextWindowSize)
	assert.Equal(t, 768, cfg.EmbeddingDimension)
	assert.Equal(t, 500, cfg.VectorizeDelayMS)
	assert.Equal(t, "text-embedding-004", cfg.EmbeddingModel)
	assert.InDelta(t, 0.7, float64(cfg.Temperature), 1e-6)
}

func TestLoadReadsTemperature(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TEMPERATURE", "0.2")

	cfg, err := Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, float64(cfg.Temperature), 1e-6)
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CHUNK_SIZE", "200")
	t.Setenv("CHUNK_OVERLAP", "20")
	t.Setenv("MAX_CHUNKS_PER_QUERY", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.ChunkSize)
	assert.Equal(t, 20, cfg.ChunkOverlap)
	assert.Equal(t, 5, cfg.MaxChunksPerQuery)
}

func TestLoadRejectsBadOverlap(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := Load()
	assert.Error(t, err)
}
