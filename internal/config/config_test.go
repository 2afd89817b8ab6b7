package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, DefaultWorkerPort, cfg.WorkerPort)
	assert.Equal(t, DefaultEmbeddingModel, cfg.EmbeddingModel)
	assert.Equal(t, DefaultEmbeddingDimensions, cfg.EmbeddingDimensions)
	assert.Equal(t, 4, cfg.MaxConns)
	assert.NotEmpty(t, cfg.DBPath)
	assert.Equal(t, 5, cfg.Clustering.MinClusterSize)
}

func TestGetEmbeddingAPIKeyFromEnvironmentOnly(t *testing.T) {
	t.Setenv("NOTEMAP_EMBEDDING_API_KEY", "sk-test-key")
	assert.Equal(t, "sk-test-key", GetEmbeddingAPIKey())

	t.Setenv("NOTEMAP_EMBEDDING_API_KEY", "")
	assert.Empty(t, GetEmbeddingAPIKey())
}

func TestGetVaultPathPrefersEnvironment(t *testing.T) {
	t.Setenv("NOTEMAP_VAULT_PATH", "/tmp/env-vault")
	assert.Equal(t, "/tmp/env-vault", GetVaultPath())
}

func TestGetWorkerPortPrefersEnvironment(t *testing.T) {
	t.Setenv("NOTEMAP_WORKER_PORT", "40123")
	assert.Equal(t, 40123, GetWorkerPort())

	t.Setenv("NOTEMAP_WORKER_PORT", "not-a-number")
	assert.Equal(t, Get().WorkerPort, GetWorkerPort())
}

func TestGetEmbeddingBaseURLPrefersEnvironment(t *testing.T) {
	t.Setenv("NOTEMAP_EMBEDDING_BASE_URL", "http://localhost:8080/v1")
	assert.Equal(t, "http://localhost:8080/v1", GetEmbeddingBaseURL())
}
