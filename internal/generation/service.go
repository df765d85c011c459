package generation

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ahrav/policybot/internal/configuration"
	"github.com/ahrav/policybot/internal/domain"
)

// Result is the generation stage outcome. ModelUsed distinguishes a model
// completion from the deterministic fallback; the answer text is never
// empty either way.
type Result struct {
	Text      string
	ModelUsed bool
}

// Service is the local generation stage: model path with retries, fallback
// composition when the model path fails.
type Service struct {
	handler Handler
	cfg     configuration.GenerationConfig
	logger  *slog.Logger
}

// NewService wires the collaborator pipeline: logging and retry middleware
// around the ollama HTTP handler.
func NewService(cfg configuration.GenerationConfig, retryCfg configuration.RetryConfig, httpClient *http.Client, logger *slog.Logger) (*Service, error) {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	retryMW, err := NewRetryMiddleware(retryCfg)
	if err != nil {
		return nil, fmt.Errorf("building retry middleware: %w", err)
	}

	handler := Chain(
		NewHTTPHandler(httpClient, NewOllamaAdapter(cfg)),
		NewLoggingMiddleware(logger),
		retryMW,
	)

	return &Service{
		handler: handler,
		cfg:     cfg,
		logger:  logger.With("component", "generation"),
	}, nil
}

// Generate produces the answer text for a query. It never returns an
// error: any model-path failure degrades to the deterministic fallback.
func (s *Service) Generate(ctx context.Context, q domain.Query, matches []domain.CandidateMatch) Result {
	if len(matches) == 0 {
		return Result{Text: ComposeFallback(q, matches)}
	}

	resp, err := s.handler.Handle(ctx, &Request{
		QueryID: q.ID,
		Prompt:  BuildPrompt(q, matches),
		Timeout: s.cfg.Timeout,
	})
	if err != nil {
		s.logger.Warn("model path failed, composing fallback answer",
			"query_id", q.ID, "error", err)
		return Result{Text: ComposeFallback(q, matches)}
	}

	text := trimBoilerplate(resp.Text)
	if text == "" {
		return Result{Text: ComposeFallback(q, matches)}
	}
	return Result{Text: text, ModelUsed: true}
}

// Probe verifies the collaborator is reachable at startup. Failure is a
// recoverable condition: the node runs degraded on the fallback path and
// every later Generate call still answers.
func (s *Service) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.cfg.Endpoint+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("building probe request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("generation collaborator unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d", ErrProviderStatus, resp.StatusCode)
	}
	return nil
}
