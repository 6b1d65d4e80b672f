// Package llm implements the provider gateway: one canonical
// chat-completion contract over heterogeneous upstream APIs. Callers hand
// it a logical model name; the gateway resolves the owning provider, builds
// the provider-specific request, and normalizes the response so downstream
// code only ever sees choices[0].message.content semantics.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/coderated/gradepipe/internal/llm/configuration"
	"github.com/coderated/gradepipe/internal/llm/providers"
	"github.com/coderated/gradepipe/internal/llm/transport"
)

// ChatRequest is the gateway's public request shape.
type ChatRequest struct {
	Model        string
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	TraceID      string
}

// Gateway sends canonical chat-completion requests to whichever provider
// owns the requested model. It performs no retries and no local writes;
// failed calls propagate to the caller.
type Gateway interface {
	Send(ctx context.Context, req ChatRequest) (*transport.Response, error)
}

// NewGateway builds a Gateway from the provider configuration, wiring the
// adapter router and logging middleware around the core HTTP handler.
func NewGateway(cfg *configuration.Config, logger *slog.Logger) (Gateway, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}

	router, err := providers.NewRouter(cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider router: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	handler := transport.Chain(
		transport.NewHTTPHandler(httpClient, router),
		transport.NewLoggingMiddleware(logger),
	)

	return &gateway{config: cfg, handler: handler}, nil
}

type gateway struct {
	config  *configuration.Config
	handler transport.Handler
}

// Send resolves the provider for req.Model and executes the call through
// the middleware pipeline.
func (g *gateway) Send(ctx context.Context, req ChatRequest) (*transport.Response, error) {
	provider, err := g.config.ResolveProvider(req.Model)
	if err != nil {
		return nil, err
	}

	return g.handler.Handle(ctx, &transport.Request{
		Provider:     provider,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
		UserPrompt:   req.UserPrompt,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Timeout:      g.config.HTTPTimeout,
		TraceID:      req.TraceID,
	})
}
