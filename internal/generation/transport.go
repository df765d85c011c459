// Package generation implements the generation stage: turn a query and its
// retrieved matches into a final answer. The model path talks to the
// generation collaborator through a middleware pipeline; the deterministic
// fallback path composes an answer from the matches alone and never fails.
package generation

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Request is one collaborator invocation: a fully built prompt for a query.
type Request struct {
	QueryID string
	Prompt  string

	// Timeout bounds this invocation. Zero means the caller's context is
	// the only bound.
	Timeout time.Duration
}

// Response is the collaborator's raw completion.
type Response struct {
	Text    string
	Latency time.Duration
}

// Adapter abstracts provider-specific HTTP exchange construction.
type Adapter interface {
	Build(ctx context.Context, req *Request) (*http.Request, error)
	Parse(httpResp *http.Response) (*Response, error)
	Name() string
}

// Handler processes generation requests through a composable middleware
// pipeline.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Response, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, *Request) (*Response, error)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware transforms a Handler into an enhanced Handler.
// Applied in reverse order with the last middleware closest to the core
// handler.
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. Middleware
// executes in the order provided with the first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHTTPHandler creates the core handler that performs the actual HTTP
// exchange through the given adapter.
func NewHTTPHandler(client *http.Client, adapter Adapter) Handler {
	return &httpHandler{client: client, adapter: adapter}
}

type httpHandler struct {
	client  *http.Client
	adapter Adapter
}

func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := h.adapter.Build(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", h.adapter.Name(), err)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", h.adapter.Name(), err)
	}
	defer httpResp.Body.Close()

	resp, err := h.adapter.Parse(httpResp)
	if err != nil {
		return nil, fmt.Errorf("parsing %s response: %w", h.adapter.Name(), err)
	}
	resp.Latency = latency
	return resp, nil
}
