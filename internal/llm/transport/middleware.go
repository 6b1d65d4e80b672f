package transport

import (
	"context"
	"log/slog"
	"time"
)

// NewLoggingMiddleware logs each provider call with model, latency, and
// outcome. Failures log the error without swallowing it.
func NewLoggingMiddleware(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Handle(ctx, req)
			attrs := []any{
				"provider", req.Provider,
				"model", req.Model,
				"trace_id", req.TraceID,
				"elapsed_ms", time.Since(start).Milliseconds(),
			}
			if err != nil {
				logger.Error("provider call failed", append(attrs, "error", err)...)
				return nil, err
			}
			logger.Debug("provider call completed",
				append(attrs, "tokens", resp.Usage.TotalTokens)...)
			return resp, nil
		})
	}
}
