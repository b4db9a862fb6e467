package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loreseek/loreseek/internal/errors"
)

// isolateUserConfig keeps tests from reading a developer's real user
// config file.
func isolateUserConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func TestDefaultsValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.InDelta(t, 1.0, cfg.Search.DenseWeight+cfg.Search.SparseWeight+cfg.Search.KeywordWeight, 1e-9)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 60*time.Second, cfg.QueryTimeout())
	assert.Equal(t, "stdio", cfg.Server.Transport)
}

func TestLoadProjectConfigOverridesDefaults(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	content := `
search:
  dense_weight: 0.6
  sparse_weight: 0.25
  keyword_weight: 0.15
  default_limit: 10
sources:
  spool_dir: /var/spool/loreseek
  collections:
    - phb
    - dmg
embeddings:
  provider: static
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, cfg.Search.DenseWeight, 1e-9)
	assert.InDelta(t, 0.25, cfg.Search.SparseWeight, 1e-9)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, "/var/spool/loreseek", cfg.Sources.SpoolDir)
	assert.Equal(t, []string{"phb", "dmg"}, cfg.Sources.Collections)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	// Untouched sections keep their defaults.
	assert.Equal(t, "nomic-embed-text", cfg.Embeddings.Model)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
}

func TestEnvOverridesBeatProjectConfig(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	content := `
embeddings:
  provider: static
  model: project-model
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(content), 0o644))

	t.Setenv("LORESEEK_EMBEDDINGS_PROVIDER", "ollama")
	t.Setenv("LORESEEK_EMBEDDINGS_MODEL", "env-model")
	t.Setenv("LORESEEK_LOG_LEVEL", "debug")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, "env-model", cfg.Embeddings.Model)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	content := `
search:
  dense_weight: 0.9
  sparse_weight: 0.9
  keyword_weight: 0.9
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte(content), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidWeights))
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectFileName), []byte("search: ["), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigInvalid))
}

func TestLoadFileMissingIsNotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeConfigNotFound))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero default limit", func(c *Config) { c.Search.DefaultLimit = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxLimit = 2 }},
		{"bad timeout", func(c *Config) { c.Search.QueryTimeout = "soon" }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "mlx" }},
		{"bad transport", func(c *Config) { c.Server.Transport = "sse" }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := NewConfig()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ProjectFileName)

	cfg := NewConfig()
	cfg.Sources.Collections = []string{"phb"}
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"phb"}, loaded.Sources.Collections)
}

func TestBackupFileKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	backup, err := BackupFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, backup)
	assert.FileExists(t, backup)

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 1)
}

func TestBackupFileMissingIsNoop(t *testing.T) {
	backup, err := BackupFile(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Empty(t, backup)
}
