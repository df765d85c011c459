package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/ahrav/policybot/internal/configuration"
)

var (
	// Configuration validation errors.
	errMaxAttemptsInvalid     = errors.New("maxAttempts must be greater than 0")
	errInitialIntervalInvalid = errors.New("initialInterval must be greater than 0")
	errMaxIntervalInvalid     = errors.New("maxInterval must be >= initialInterval")
	errMultiplierInvalid      = errors.New("multiplier must be >= 1.0")

	// Runtime errors.
	errContextCancelledBeforeRetry = errors.New("context cancelled before retry")
	errContextCancelledDuringRetry = errors.New("context cancelled during retry")
)

// retryMiddleware retries failed collaborator calls with exponential
// backoff and full jitter. Context cancellation always wins over the next
// attempt, so the stage deadline bounds the whole pipeline.
type retryMiddleware struct {
	config configuration.RetryConfig
	logger *slog.Logger
}

// NewRetryMiddleware creates retry middleware with the given policy.
func NewRetryMiddleware(cfg configuration.RetryConfig) (Middleware, error) {
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("%w, got %d", errMaxAttemptsInvalid, cfg.MaxAttempts)
	}
	if cfg.InitialInterval <= 0 {
		return nil, fmt.Errorf("%w, got %v", errInitialIntervalInvalid, cfg.InitialInterval)
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		return nil, fmt.Errorf("%w, MaxInterval: %v, InitialInterval: %v",
			errMaxIntervalInvalid, cfg.MaxInterval, cfg.InitialInterval)
	}
	if cfg.Multiplier < 1.0 {
		return nil, fmt.Errorf("%w, got %f", errMultiplierInvalid, cfg.Multiplier)
	}

	rm := &retryMiddleware{
		config: cfg,
		logger: slog.Default().With("component", "retry"),
	}
	return rm.middleware(), nil
}

func (r *retryMiddleware) middleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", errContextCancelledBeforeRetry, ctx.Err())
			default:
			}

			var lastErr error
			for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
				resp, err := next.Handle(ctx, req)
				if err == nil {
					return resp, nil
				}
				lastErr = err

				// A cancelled context means the stage deadline already
				// decided the outcome; retrying would only delay it.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil, err
				}
				if attempt == r.config.MaxAttempts {
					break
				}

				delay := r.backoffDelay(attempt)
				r.logger.Warn("collaborator call failed, retrying",
					"query_id", req.QueryID,
					"attempt", attempt,
					"delay", delay,
					"error", err)

				select {
				case <-ctx.Done():
					return nil, fmt.Errorf("%w: %w", errContextCancelledDuringRetry, ctx.Err())
				case <-time.After(delay):
				}
			}

			return nil, fmt.Errorf("all %d attempts failed: %w", r.config.MaxAttempts, lastErr)
		})
	}
}

// backoffDelay computes the wait before the given attempt's retry:
// exponential growth capped at MaxInterval, with full jitter.
func (r *retryMiddleware) backoffDelay(attempt int) time.Duration {
	interval := float64(r.config.InitialInterval)
	for i := 1; i < attempt; i++ {
		interval *= r.config.Multiplier
		if interval >= float64(r.config.MaxInterval) {
			interval = float64(r.config.MaxInterval)
			break
		}
	}
	return time.Duration(rand.Float64() * interval)
}
