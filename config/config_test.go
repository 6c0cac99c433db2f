package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
pipeline:
  name: test
log:
  level: debug
services:
  emotion:
    url: http://emotion:9000
  timeout: 5s
faces:
  denominator: detected
sincerity:
  model: gpt-4o-mini
  stage_timeout: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Pipeline.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "http://emotion:9000", cfg.Services.Emotion.URL)
	assert.Equal(t, 5*time.Second, cfg.Services.Timeout)
	assert.Equal(t, "detected", cfg.Faces.Denominator)
	assert.Equal(t, "gpt-4o-mini", cfg.Sincerity.Model)
	assert.Equal(t, 30*time.Second, cfg.Sincerity.StageTimeout)

	// untouched keys keep their defaults
	assert.Equal(t, "base", cfg.Transcription.ModelSize)
	assert.Equal(t, "http://localhost:8002", cfg.Services.ASR.URL)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SINCERITY_TRANSCRIPTION_MODEL_SIZE", "small")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SINCERITY_SINCERITY_BASE_URL", "http://llm.internal/v1")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  name: env\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "small", cfg.Transcription.ModelSize)
	assert.Equal(t, "sk-test", cfg.Sincerity.APIKey)
	assert.Equal(t, "http://llm.internal/v1", cfg.Sincerity.BaseURL)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
