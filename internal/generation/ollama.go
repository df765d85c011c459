package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ahrav/policybot/internal/configuration"
)

// Adapter errors.
var (
	// ErrEmptyCompletion indicates the collaborator returned no text.
	ErrEmptyCompletion = errors.New("collaborator returned an empty completion")

	// ErrProviderStatus indicates a non-200 collaborator response.
	ErrProviderStatus = errors.New("unexpected generation response status")

	// ErrProviderReported indicates the collaborator returned a logical
	// error in its response body.
	ErrProviderReported = errors.New("collaborator reported an error")
)

// ollamaAdapter builds and parses exchanges with the ollama generate API.
type ollamaAdapter struct {
	cfg configuration.GenerationConfig
}

// NewOllamaAdapter creates the adapter for the configured ollama endpoint
// and model.
func NewOllamaAdapter(cfg configuration.GenerationConfig) Adapter {
	return &ollamaAdapter{cfg: cfg}
}

func (a *ollamaAdapter) Name() string { return "ollama" }

func (a *ollamaAdapter) Build(ctx context.Context, req *Request) (*http.Request, error) {
	body, err := json.Marshal(map[string]any{
		"model":  a.cfg.Model,
		"prompt": req.Prompt,
		"stream": false,
		"options": map[string]any{
			"temperature":    a.cfg.Temperature,
			"top_p":          a.cfg.TopP,
			"top_k":          a.cfg.TopK,
			"num_predict":    a.cfg.NumPredict,
			"num_ctx":        a.cfg.NumCtx,
			"repeat_penalty": a.cfg.RepeatPenalty,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.cfg.Endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

func (a *ollamaAdapter) Parse(httpResp *http.Response) (*Response, error) {
	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrProviderStatus, httpResp.StatusCode)
	}

	var parsed struct {
		Response string `json:"response"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrProviderReported, parsed.Error)
	}

	text := strings.TrimSpace(parsed.Response)
	if text == "" {
		return nil, ErrEmptyCompletion
	}
	return &Response{Text: text}, nil
}
