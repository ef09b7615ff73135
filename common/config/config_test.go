package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()
	path := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadFromFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config.yaml", `
database:
  host: ch.internal
  port: 9440
  database: analytics
  user: deployer
  password: secret
log:
  level: debug
`)

	cfg, err := Load(root, "dev")
	require.NoError(t, err)

	assert.Equal(t, "ch.internal", cfg.Database.Host)
	assert.Equal(t, 9440, cfg.Database.Port)
	assert.Equal(t, "analytics", cfg.Database.Database)
	assert.Equal(t, "changelog_state", cfg.Database.StateTable)
	assert.Equal(t, "debug", cfg.Service.LogLevel)
	assert.Equal(t, "dev", cfg.Service.Environment)
}

func TestLoadRequiresDatabaseName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "config.yaml", `
database:
  host: localhost
`)

	_, err := Load(root, "dev")
	require.Error(t, err)
	assert.ErrorContains(t, err, "database name")
}

func TestDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host:     "localhost",
		Port:     9000,
		Database: "analytics",
		User:     "deployer",
		Password: "pw",
	}}
	assert.Equal(t, "clickhouse://deployer:pw@localhost:9000/analytics", cfg.DSN())
}

func TestVariablesEnvOverridesCommon(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, filepath.Join("variables", "common.yaml"), `
db: analytics
cluster: shared
`)
	writeFile(t, root, filepath.Join("variables", "prd.yaml"), `
cluster: prod-cluster
`)

	vars, err := Variables(root, "prd")
	require.NoError(t, err)
	assert.Equal(t, "analytics", vars["db"])
	assert.Equal(t, "prod-cluster", vars["cluster"])
}

func TestVariablesMissingFilesAreEmpty(t *testing.T) {
	vars, err := Variables(t.TempDir(), "dev")
	require.NoError(t, err)
	assert.Empty(t, vars)
}
