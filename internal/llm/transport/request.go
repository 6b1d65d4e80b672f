// Package transport defines the canonical request/response envelope the
// gateway presents over heterogeneous chat-completion APIs, plus the
// middleware pipeline that carries requests to a provider adapter.
package transport

import (
	"net/http"
	"time"
)

// Request is the provider-agnostic chat-completion request. The judge
// pipeline fills UserPrompt with the rendered grading prompt; adapters
// translate the rest into each provider's envelope.
type Request struct {
	// Provider is the resolved upstream owner of Model.
	Provider string

	// Model is the logical model name sent to the provider.
	Model string

	// SystemPrompt is prepended per the provider's system message convention.
	SystemPrompt string

	// UserPrompt is the user-role message content.
	UserPrompt string

	Temperature float64
	MaxTokens   int

	// Timeout bounds this call; zero means the client default applies.
	Timeout time.Duration

	// TraceID correlates the call with worker logs.
	TraceID string
}

// NormalizedUsage captures token accounting in provider-neutral form.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is the canonical envelope every adapter produces, regardless of
// whether the upstream returned choices, candidates, or a content array.
// Content is always choices[0].message.content equivalent.
type Response struct {
	Content            string
	Usage              NormalizedUsage
	ProviderRequestIDs []string
	Headers            http.Header
	RawBody            []byte
}
