package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/policybot/internal/configuration"
)

func testConfig(endpoint string) configuration.EmbeddingConfig {
	return configuration.EmbeddingConfig{
		Endpoint: endpoint,
		Model:    "nomic-embed-text",
		Timeout:  5 * time.Second,
	}
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/embeddings", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "leave of absence", req.Prompt)

		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	vec, err := c.Embed(context.Background(), "leave of absence")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestEmbedErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Embed(context.Background(), "anything")
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Embed(context.Background(), "anything")
	require.ErrorIs(t, err, ErrEmptyEmbedding)
}

func TestProbeReportsDimension(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		vec := make([]float32, 384)
		json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	dim, err := c.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 384, dim)
}

func TestProbeUnavailableCollaborator(t *testing.T) {
	srv := httptest.NewServer(nil)
	srv.Close() // connection refused from here on

	c := NewClient(testConfig(srv.URL), nil)
	_, err := c.Probe(context.Background())
	require.Error(t, err)
}
