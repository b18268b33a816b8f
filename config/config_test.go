package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.True(t, cfg.Debug)
	assert.False(t, cfg.SecureCookies)
	assert.True(t, cfg.UsesDefaultSecret())
	assert.Equal(t, "therapybot", cfg.IndexName)
	assert.Equal(t, "gemini-2.0-flash", cfg.GenerationModel)
	assert.InDelta(t, 0.4, cfg.Temperature, 1e-6)
	assert.Equal(t, int32(200), cfg.MaxOutputTokens)
	assert.Equal(t, 3, cfg.RetrievalK)
	assert.Equal(t, 200, cfg.HistoryLimit)
	assert.Equal(t, 384, cfg.EmbeddingDimension)
	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 20, cfg.ChunkOverlap)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("INDEX_NAME", "counselling")
	t.Setenv("THERAPYBOT_PORT", "9090")
	t.Setenv("DEBUG", "false")
	t.Setenv("SECURE_COOKIES", "true")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("GOOGLE_API_KEY", "key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "counselling", cfg.IndexName)
	assert.Equal(t, "9090", cfg.Port)
	assert.False(t, cfg.Debug)
	assert.True(t, cfg.SecureCookies)
	assert.False(t, cfg.UsesDefaultSecret())
	assert.True(t, cfg.HasGoogle())
}

func TestLoad_RejectsOverlapLargerThanChunk(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CHUNK_SIZE", "20")
	t.Setenv("CHUNK_OVERLAP", "20")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHUNK_OVERLAP")
}
