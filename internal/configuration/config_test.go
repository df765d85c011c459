package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 70*time.Second, cfg.Gateway.GenerationDeadline)
	assert.Equal(t, 20*time.Second, cfg.Gateway.RetrievalDeadline)
	assert.Equal(t, 5, cfg.Qdrant.TopK)
	assert.Equal(t, "phi3:mini", cfg.Generation.Model)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("POLICYBOT_GATEWAY_ADDR", "0.0.0.0:9000")
	t.Setenv("POLICYBOT_GENERATION_DEADLINE", "45s")
	t.Setenv("POLICYBOT_TOP_K", "3")
	t.Setenv("POLICYBOT_WORKER_ROLES", "retrieval, generation")
	t.Setenv("POLICYBOT_TEMPERATURE", "0.7")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.Gateway.Addr)
	assert.Equal(t, 45*time.Second, cfg.Gateway.GenerationDeadline)
	assert.Equal(t, 3, cfg.Qdrant.TopK)
	assert.Equal(t, []string{"retrieval", "generation"}, cfg.Worker.Roles)
	assert.InDelta(t, 0.7, cfg.Generation.Temperature, 1e-9)
}

func TestFromEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("POLICYBOT_GENERATION_DEADLINE", "not-a-duration")
	t.Setenv("POLICYBOT_TOP_K", "many")

	cfg := FromEnv()
	assert.Equal(t, DefaultGenerationDeadline, cfg.Gateway.GenerationDeadline)
	assert.Equal(t, DefaultTopK, cfg.Qdrant.TopK)
}

func TestValidateRejectsBrokenConfig(t *testing.T) {
	cfg := Default()
	cfg.Gateway.GenerationDeadline = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Qdrant.Endpoint = "not a url"
	require.Error(t, cfg.Validate())
}
