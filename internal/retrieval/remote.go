package retrieval

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

// ErrWorkerStatus indicates a non-200 response from a retrieval worker.
var ErrWorkerStatus = errors.New("unexpected retrieval worker status")

// SearchRequest is the wire request for the worker search endpoint.
type SearchRequest struct {
	QueryID string `json:"query_id"`
	Query   string `json:"query"`
}

// SearchResponse is the wire response for the worker search endpoint.
type SearchResponse struct {
	Matches []domain.CandidateMatch `json:"matches"`
}

// RemoteClient invokes the retrieval stage on a registered worker.
type RemoteClient struct {
	httpClient *http.Client
}

// NewRemoteClient creates a remote retrieval client. A nil httpClient gets
// http.DefaultClient; callers bound the call with the request context.
func NewRemoteClient(httpClient *http.Client) *RemoteClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RemoteClient{httpClient: httpClient}
}

// Search runs the retrieval stage on the given worker. As with the local
// service, failures come back as an empty slice plus the error.
func (c *RemoteClient) Search(ctx context.Context, worker domain.WorkerHandle, q domain.Query) ([]domain.CandidateMatch, error) {
	body, err := json.Marshal(SearchRequest{QueryID: q.ID, Query: q.Text})
	if err != nil {
		return []domain.CandidateMatch{}, fmt.Errorf("marshaling search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"http://"+worker.Addr+"/v1/search", bytes.NewReader(body))
	if err != nil {
		return []domain.CandidateMatch{}, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return []domain.CandidateMatch{}, fmt.Errorf("search request to %s failed: %w", worker.Addr, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return []domain.CandidateMatch{}, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return []domain.CandidateMatch{}, fmt.Errorf("%w: %d from %s", ErrWorkerStatus, resp.StatusCode, worker.Addr)
	}

	var parsed SearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return []domain.CandidateMatch{}, fmt.Errorf("parsing search response: %w", err)
	}
	if parsed.Matches == nil {
		return []domain.CandidateMatch{}, nil
	}
	return parsed.Matches, nil
}
