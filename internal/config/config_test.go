package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
	t.Setenv(EnvConfigDir, dir)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(EnvConfigDir, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.SQLURL)
}

func TestLoadFromFile(t *testing.T) {
	writeConfigFile(t, `
sql_url: postgres://profiler@mz.example.com:6875/materialize
cluster: analytics
replica: r1
`)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://profiler@mz.example.com:6875/materialize", cfg.SQLURL)
	assert.Equal(t, "analytics", cfg.Cluster)
	assert.Equal(t, "r1", cfg.Replica)
	assert.Equal(t, "info", cfg.LogLevel, "defaults survive partial files")
}

func TestEnvOverridesFile(t *testing.T) {
	writeConfigFile(t, "cluster: from-file\n")
	t.Setenv("MZPROF_CLUSTER", "from-env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Cluster)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	writeConfigFile(t, "cluster: [unterminated\n")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}
