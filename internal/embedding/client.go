// Package embedding is the HTTP client for the text-embedding collaborator.
// It turns query and document text into fixed-length vectors for the vector
// store; retrieval quality lives entirely on the other side of this contract.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ahrav/policybot/internal/configuration"
)

// Client errors.
var (
	// ErrEmptyEmbedding indicates the collaborator returned no vector.
	ErrEmptyEmbedding = errors.New("collaborator returned an empty embedding")

	// ErrUnexpectedStatus indicates a non-200 collaborator response.
	ErrUnexpectedStatus = errors.New("unexpected embedding response status")
)

// Client computes embeddings via the ollama embeddings API.
type Client struct {
	cfg        configuration.EmbeddingConfig
	httpClient *http.Client
}

// NewClient creates an embedding client. A nil httpClient gets a default
// with the configured timeout.
func NewClient(cfg configuration.EmbeddingConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// Embed returns the vector for the given text.
// Failures surface as error values; callers substitute empty retrieval
// results rather than propagating.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(map[string]any{
		"model":  c.cfg.Model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.Endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var parsed struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing embedding response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return parsed.Embedding, nil
}

// Probe verifies the collaborator at startup by embedding a short warmup
// text and returns the vector dimension. Absence of the service is a
// recoverable condition: callers log it and start degraded.
func (c *Client) Probe(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	vec, err := c.Embed(ctx, "warmup test")
	if err != nil {
		return 0, fmt.Errorf("embedding warmup failed: %w", err)
	}
	return len(vec), nil
}
