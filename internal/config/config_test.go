package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setValidEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_BACKEND", "firestore")
	t.Setenv("FIRESTORE_PROJECT_ID", "test-project")
	t.Setenv("AI_CLIENT_TYPE", "openai")
	t.Setenv("AI_API_KEY", "sk-test")
	t.Setenv("AI_TIMEOUT", "90s")
	t.Setenv("ORCHESTRATION_LEASE_TTL", "2m")
}

func TestLoad_Defaults(t *testing.T) {
	setValidEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "gpt-4o-mini", cfg.AIModel)
	assert.Equal(t, 90*time.Second, cfg.AITimeout)
	assert.Equal(t, 2*time.Minute, cfg.LeaseTTL)
}

func TestLoad_FirestoreRequiresProjectID(t *testing.T) {
	setValidEnv(t)
	t.Setenv("FIRESTORE_PROJECT_ID", "")

	_, err := Load()
	assert.ErrorContains(t, err, "FIRESTORE_PROJECT_ID")
}

func TestLoad_MemoryBackendNeedsNoProjectID(t *testing.T) {
	setValidEnv(t)
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("FIRESTORE_PROJECT_ID", "")

	_, err := Load()
	assert.NoError(t, err)
}

func TestLoad_OpenAIRequiresKey(t *testing.T) {
	setValidEnv(t)
	t.Setenv("AI_API_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "AI_API_KEY")
}

func TestLoad_OllamaNeedsNoKey(t *testing.T) {
	setValidEnv(t)
	t.Setenv("AI_CLIENT_TYPE", "ollama")
	t.Setenv("AI_API_KEY", "")

	_, err := Load()
	assert.NoError(t, err)
}

func TestLoad_LeaseMustOutliveNarrationCall(t *testing.T) {
	setValidEnv(t)
	t.Setenv("AI_TIMEOUT", "5m")
	t.Setenv("ORCHESTRATION_LEASE_TTL", "1m")

	_, err := Load()
	assert.ErrorContains(t, err, "ORCHESTRATION_LEASE_TTL")
}
