package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, 20, cfg.RAG.TopK)
	assert.Equal(t, 0.7, cfg.RAG.PublishThreshold)
	assert.Equal(t, time.Hour, cfg.RAG.EmbeddingTTL)
	assert.Equal(t, 24*time.Hour, cfg.RAG.ResponseTTL)
	assert.Equal(t, 5, cfg.Reranker.TopN)
	assert.Equal(t, 50, cfg.Ingest.BatchSize)
	assert.Equal(t, 3, cfg.Jobs.MaxAttempts)
	assert.True(t, cfg.InlineWorkers())
}

func TestLoadParsesDurationsAndNestedSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
env: Production
database:
  driver: sqlite3
  dsn: file::memory:
rag:
  stage_timeout: 5s
  response_ttl: 2h
jobs:
  inline: false
  stale_after: 90s
`))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "file::memory:", cfg.Database.DSNValue())
	assert.Equal(t, 5*time.Second, cfg.RAG.StageTimeout)
	assert.Equal(t, 2*time.Hour, cfg.RAG.ResponseTTL)
	assert.Equal(t, 90*time.Second, cfg.Jobs.StaleAfter)
	assert.False(t, cfg.InlineWorkers())
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "prot: 80\n"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	_, err := Load(writeConfig(t, "storage:\n  backend: ftp\n"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "ingest:\n  chunk_size: 100\n  chunk_overlap: 100\n"))
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("SOMA_PORT", "7070")
	t.Setenv("SOMA_REDIS_URL", "cache:6380")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(writeConfig(t, "port: 9000\n"))
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "redis://cache:6380", cfg.Redis.URLValue())
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestDSNValueBuildsMySQLDSN(t *testing.T) {
	cfg := Default()
	cfg.Database.Password = "secret"

	assert.Equal(t,
		"root:secret@tcp(127.0.0.1:3306)/somaai?charset=utf8mb4&loc=Local&parseTime=true",
		cfg.Database.DSNValue())
}

func TestRedisURLValueFromParts(t *testing.T) {
	cfg := Default()
	cfg.Redis.Password = "pw"
	cfg.Redis.DB = 2

	assert.Equal(t, "redis://:pw@localhost:6379/2", cfg.Redis.URLValue())
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.yml"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 15*time.Second, cfg.HTTP.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Jobs.ReclaimInterval)
	assert.True(t, cfg.InlineWorkers())
}

func TestRuntimeDirsResolveAgainstHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("SOMA_HOME", home)

	cfg := &AppConfig{}
	assert.Equal(t, filepath.Join(home, "logs"), cfg.LogDir())
	assert.Equal(t, filepath.Join(home, "uploads"), cfg.UploadsDir())

	cfg.Paths.Logs = "var/log/soma"
	assert.Equal(t, filepath.Join(home, "var", "log", "soma"), cfg.LogDir())

	abs := filepath.Join(t.TempDir(), "blobs")
	cfg.Paths.Uploads = abs + "/"
	assert.Equal(t, abs, cfg.UploadsDir())

	cfg.Storage.LocalDir = "store"
	assert.Equal(t, filepath.Join(home, "store"), cfg.UploadsDir())

	userHome, err := os.UserHomeDir()
	require.NoError(t, err)
	cfg.Paths.Logs = "~/soma-logs"
	assert.Equal(t, filepath.Join(userHome, "soma-logs"), cfg.LogDir())
}
