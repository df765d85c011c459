package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ahrav/policybot/internal/domain"
)

// ErrWorkerStatus indicates a non-200 response from a generation worker.
var ErrWorkerStatus = errors.New("unexpected generation worker status")

// GenerateRequest is the wire request for the worker generate endpoint.
// Matches travel with the query so the worker needs no retrieval state.
type GenerateRequest struct {
	QueryID string                  `json:"query_id"`
	Query   string                  `json:"query"`
	Matches []domain.CandidateMatch `json:"matches"`
}

// GenerateResponse is the wire response for the worker generate endpoint.
type GenerateResponse struct {
	Text      string `json:"text"`
	ModelUsed bool   `json:"model_used"`
}

// RemoteClient invokes the generation stage on a registered worker.
type RemoteClient struct {
	httpClient *http.Client
}

// NewRemoteClient creates a remote generation client. A nil httpClient
// gets http.DefaultClient; callers bound the call with the request context.
func NewRemoteClient(httpClient *http.Client) *RemoteClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteClient{httpClient: httpClient}
}

// Generate runs the generation stage on the given worker. Unlike the local
// service, a transport failure surfaces as an error; the coordinator then
// composes the fallback itself.
func (c *RemoteClient) Generate(ctx context.Context, worker domain.WorkerHandle, q domain.Query, matches []domain.CandidateMatch) (Result, error) {
	body, err := json.Marshal(GenerateRequest{QueryID: q.ID, Query: q.Text, Matches: matches})
	if err != nil {
		return Result{}, fmt.Errorf("marshaling generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+worker.Addr+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("building generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("generate request to %s failed: %w", worker.Addr, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("reading generate response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: %d from %s", ErrWorkerStatus, resp.StatusCode, worker.Addr)
	}

	var parsed GenerateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Result{}, fmt.Errorf("parsing generate response: %w", err)
	}
	return Result{Text: parsed.Text, ModelUsed: parsed.ModelUsed}, nil
}
