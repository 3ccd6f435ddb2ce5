package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "data/resultado_match_jaccard.csv", cfg.Dataset.Path)
	assert.Equal(t, 5*time.Minute, cfg.Dataset.FetchTimeout)
	assert.False(t, cfg.Dataset.Watch)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9191
  cors_origins: ["https://painel.example.gov.br"]
dataset:
  path: /srv/data/match.csv
  watch: true
log:
  level: debug
  format: console
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, []string{"https://painel.example.gov.br"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/srv/data/match.csv", cfg.Dataset.Path)
	assert.True(t, cfg.Dataset.Watch)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	// Untouched sections keep their defaults.
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CARSIGEF_SERVER_PORT", "7070")
	t.Setenv("CARSIGEF_DATASET_PATH", "/tmp/other.csv")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/other.csv", cfg.Dataset.Path)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port")
}

func TestValidateLogFormat(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 8080},
		Dataset: DatasetConfig{Path: "x.csv"},
		Log:     LogConfig{Format: "xml"},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")
}
