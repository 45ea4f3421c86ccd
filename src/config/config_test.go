package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.Equal(t, []string{".brs", ".wbs"}, cfg.Extensions)
	assert.True(t, cfg.UseGitignore)
	assert.True(t, cfg.Rules.Syntax)
	assert.True(t, cfg.Rules.ParameterCheck)
	require.NoError(t, validateConfig(cfg))
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `extensions: [".brs"]
workers: 2
rules:
  syntax: true
  unused_variables: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{".brs"}, cfg.Extensions)
	assert.Equal(t, 2, cfg.Workers)
	assert.True(t, cfg.Rules.Syntax)
	assert.False(t, cfg.Rules.UnusedVariables)
}

func TestLoadConfigKeepsDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 4\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, []string{".brs", ".wbs"}, cfg.Extensions)
	assert.True(t, cfg.UseGitignore)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extensions: [broken\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extensions: [\"brs\"]\n"), 0o644))
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must start with a dot")
}

func TestLoadConfigRejectsNegativeWorkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: -1\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestSaveAndReloadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := GetDefaultConfig()
	cfg.Workers = 3
	cfg.Rules.ParameterCheck = false

	require.NoError(t, SaveConfig(cfg, path))
	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestWorkerCount(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Workers = 5
	assert.Equal(t, 5, cfg.WorkerCount())

	cfg.Workers = 0
	assert.Greater(t, cfg.WorkerCount(), 0)
}
