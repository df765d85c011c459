package generation

import (
	"context"
	"log/slog"
)

// NewLoggingMiddleware logs every collaborator invocation with its outcome
// and latency.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "generation")

	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			logger.Debug("invoking collaborator",
				"query_id", req.QueryID,
				"prompt_len", len(req.Prompt))

			resp, err := next.Handle(ctx, req)
			if err != nil {
				logger.Warn("collaborator invocation failed",
					"query_id", req.QueryID,
					"error", err)
				return nil, err
			}

			logger.Info("collaborator invocation complete",
				"query_id", req.QueryID,
				"latency", resp.Latency,
				"response_len", len(resp.Text))
			return resp, nil
		})
	}
}
