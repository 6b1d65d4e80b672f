package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	llmerrors "github.com/coderated/gradepipe/internal/llm/errors"
)

// ProviderAdapter abstracts provider-specific HTTP communication.
// Each provider implements this interface to handle its own authentication
// scheme, request envelope, and response shape.
type ProviderAdapter interface {
	// Build constructs the provider-specific HTTP request from the
	// canonical Request, including authentication headers.
	Build(ctx context.Context, req *Request) (*http.Request, error)

	// Parse extracts the canonical Response from the provider's HTTP
	// response. Non-2xx responses become a *ProviderError carrying status
	// and body intact.
	Parse(httpResp *http.Response) (*Response, error)

	// Name returns the canonical provider identifier.
	Name() string
}

// Router selects the adapter for a provider/model combination.
type Router interface {
	Pick(provider, model string) (ProviderAdapter, error)
}

// Handler processes gateway requests through a composable middleware chain.
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
type Middleware func(Handler) Handler

// Chain builds a middleware pipeline around a core handler. Middleware
// executes in the order provided, first middleware outermost.
func Chain(h Handler, middlewares ...Middleware) Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// NewHTTPHandler creates the core handler that performs the outbound call.
// It holds no retry logic: failures, including non-2xx responses, propagate
// to the caller so the worker owns the retry policy.
func NewHTTPHandler(client *http.Client, router Router) Handler {
	return &httpHandler{client: client, router: router}
}

type httpHandler struct {
	client *http.Client
	router Router
}

// Handle implements Handler by issuing the HTTP request to the provider.
func (h *httpHandler) Handle(ctx context.Context, req *Request) (*Response, error) {
	adapter, err := h.router.Pick(req.Provider, req.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to select provider: %w", err)
	}

	reqCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := adapter.Build(reqCtx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	start := time.Now()
	httpResp, err := h.client.Do(httpReq)
	latency := time.Since(start)

	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	resp, err := adapter.Parse(httpResp)
	if err != nil {
		return nil, err
	}

	resp.Usage.LatencyMs = latency.Milliseconds()

	if resp.Content == "" {
		return nil, fmt.Errorf("%w: %s/%s", llmerrors.ErrEmptyResponse, req.Provider, req.Model)
	}

	return resp, nil
}
