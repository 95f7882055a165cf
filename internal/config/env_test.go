package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("WFLOW_ENGINE", "whispercpp")
	t.Setenv("WFLOW_WHISPER_BINARY", "/usr/local/bin/whisper")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data/whisperflow.db", cfg.DBPath)
	assert.Equal(t, ":8090", cfg.ListenAddr)
	assert.Equal(t, "large-v3", cfg.DefaultModelSize)
	assert.Equal(t, 64, cfg.QueueSize)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestLoad_WhisperCppRequiresBinary(t *testing.T) {
	t.Setenv("WFLOW_ENGINE", "whispercpp")
	t.Setenv("WFLOW_WHISPER_BINARY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WFLOW_WHISPER_BINARY")
}

func TestLoad_OpenAIRequiresKey(t *testing.T) {
	t.Setenv("WFLOW_ENGINE", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	t.Setenv("OPENAI_API_KEY", "not-a-key")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("OPENAI_API_KEY", "sk-test123")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Engine)
}

func TestLoad_UnknownEngine(t *testing.T) {
	t.Setenv("WFLOW_ENGINE", "parakeet")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WFLOW_ENGINE")
}

func TestLoad_QueueSizeValidation(t *testing.T) {
	t.Setenv("WFLOW_ENGINE", "whispercpp")
	t.Setenv("WFLOW_WHISPER_BINARY", "/usr/local/bin/whisper")
	t.Setenv("WFLOW_QUEUE_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WFLOW_QUEUE_SIZE")
}

func TestArchiveEnabled(t *testing.T) {
	cfg := &Config{MinioEndpoint: "localhost:9000"}
	assert.False(t, cfg.ArchiveEnabled(), "endpoint without credentials")

	cfg.MinioAccessKey = "key"
	cfg.MinioSecretKey = "secret"
	assert.True(t, cfg.ArchiveEnabled())
}
