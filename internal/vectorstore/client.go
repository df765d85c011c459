// Package vectorstore is the HTTP client for the qdrant vector store.
// Retrieval workers use it for nearest-neighbor search and the indexer uses
// it to maintain the policy collection. Returned matches keep the store's
// descending-similarity order; nothing downstream may re-sort them.
package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/ahrav/policybot/internal/configuration"
	"github.com/ahrav/policybot/internal/domain"
)

// Client errors.
var (
	// ErrUnexpectedStatus indicates a non-2xx store response.
	ErrUnexpectedStatus = errors.New("unexpected vector store response status")

	// ErrUpsertRejected indicates the store acknowledged the request but
	// reported a logical error.
	ErrUpsertRejected = errors.New("vector store rejected upsert")
)

// Client talks to one qdrant collection over its REST API.
type Client struct {
	cfg        configuration.QdrantConfig
	httpClient *http.Client
}

// NewClient creates a store client. A nil httpClient gets a default with
// the configured timeout.
func NewClient(cfg configuration.QdrantConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

// EnsureCollection guarantees the collection exists with exactly the given
// vector size and cosine distance. A collection with a different size is
// dropped and recreated, since mixed dimensions make every search fail.
func (c *Client) EnsureCollection(ctx context.Context, vectorSize int) error {
	existing, err := c.currentVectorSize(ctx)
	if err != nil {
		return err
	}
	if existing == vectorSize {
		return nil
	}
	if existing != 0 {
		if err := c.dropCollection(ctx); err != nil {
			return fmt.Errorf("dropping mismatched collection (size %d): %w", existing, err)
		}
	}
	return c.createCollection(ctx, vectorSize)
}

// Upsert stores one document with its vector, waiting for the write to be
// applied. Point IDs are UUIDs derived deterministically from the document
// ID, so re-indexing a document overwrites it instead of duplicating.
func (c *Client) Upsert(ctx context.Context, id, title, text string, vector []float32) error {
	point := map[string]any{
		"id":      uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String(),
		"vector":  vector,
		"payload": map[string]string{"title": title, "text": text},
	}
	body := map[string]any{"points": []any{point}}

	raw, err := c.do(ctx, http.MethodPut,
		fmt.Sprintf("/collections/%s/points?wait=true", c.cfg.Collection), body)
	if err != nil {
		return err
	}

	// The body may be a bare primitive on success; only objects can carry
	// a logical error.
	var parsed struct {
		Status struct {
			Error string `json:"error"`
		} `json:"status"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Status.Error != "" {
		return fmt.Errorf("%w: %s", ErrUpsertRejected, parsed.Status.Error)
	}
	return nil
}

// Search runs a topK nearest-neighbor lookup and returns matches in the
// store's descending-score order.
func (c *Client) Search(ctx context.Context, vector []float32, topK int) ([]domain.CandidateMatch, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	raw, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/search", c.cfg.Collection), body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload struct {
				Title string `json:"title"`
				Text  string `json:"text"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}

	matches := make([]domain.CandidateMatch, 0, len(parsed.Result))
	for _, hit := range parsed.Result {
		matches = append(matches, domain.CandidateMatch{
			Title: hit.Payload.Title,
			Text:  hit.Payload.Text,
			Score: hit.Score,
		})
	}
	return matches, nil
}

// Count returns the exact number of stored points. The startup dependency
// check uses it to warn about an empty collection.
func (c *Client) Count(ctx context.Context) (int64, error) {
	raw, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/collections/%s/points/count", c.cfg.Collection),
		map[string]any{"exact": true})
	if err != nil {
		return 0, err
	}

	var parsed struct {
		Result struct {
			Count int64 `json:"count"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("parsing count response: %w", err)
	}
	return parsed.Result.Count, nil
}

func (c *Client) createCollection(ctx context.Context, vectorSize int) error {
	body := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	_, err := c.do(ctx, http.MethodPut, "/collections/"+c.cfg.Collection, body)
	return err
}

func (c *Client) dropCollection(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/collections/"+c.cfg.Collection, nil)
	return err
}

// currentVectorSize returns the existing collection's dimension, or 0 when
// the collection does not exist.
func (c *Client) currentVectorSize(ctx context.Context) (int, error) {
	raw, err := c.do(ctx, http.MethodGet, "/collections/"+c.cfg.Collection, nil)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return 0, nil
		}
		return 0, err
	}

	var parsed struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors json.RawMessage `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, fmt.Errorf("parsing collection info: %w", err)
	}

	// Single unnamed vector config.
	var single struct {
		Size int `json:"size"`
	}
	if err := json.Unmarshal(parsed.Result.Config.Params.Vectors, &single); err == nil && single.Size > 0 {
		return single.Size, nil
	}

	// Named vector configs: any entry's size will do, the indexer writes
	// only one.
	var named map[string]struct {
		Size int `json:"size"`
	}
	if err := json.Unmarshal(parsed.Result.Config.Params.Vectors, &named); err == nil {
		for _, v := range named {
			if v.Size > 0 {
				return v.Size, nil
			}
		}
	}
	return 0, nil
}

// statusError carries the HTTP status for callers that branch on 404.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("vector store returned status %d: %s", e.code, e.body)
}

func (e *statusError) Unwrap() error { return ErrUnexpectedStatus }

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.Endpoint+path, reader)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vector store request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode, body: string(raw)}
	}
	return raw, nil
}
