package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coderated/gradepipe/internal/llm/configuration"
	llmerrors "github.com/coderated/gradepipe/internal/llm/errors"
	"github.com/coderated/gradepipe/internal/llm/transport"
)

func decodeBody(t *testing.T, req *http.Request) map[string]any {
	t.Helper()
	data, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	return body
}

func fakeResponse(status int, header http.Header, body string) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestOpenAIAdapterBuild(t *testing.T) {
	adapter := NewOpenAIAdapter(configuration.ProviderOpenAI, configuration.ProviderConfig{
		Endpoint: "https://api.example.com/v1",
		APIKeys:  []string{"key-a", "key-b"},
	})

	req := &transport.Request{
		Model:        "gpt-4-turbo",
		SystemPrompt: "you are a judge",
		UserPrompt:   "grade this",
		Temperature:  0.1,
		MaxTokens:    1024,
	}

	httpReq, err := adapter.Build(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com/v1/chat/completions", httpReq.URL.String())
	assert.Equal(t, "Bearer key-a", httpReq.Header.Get("Authorization"))

	body := decodeBody(t, httpReq)
	assert.Equal(t, "gpt-4-turbo", body["model"])
	assert.Equal(t, false, body["stream"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "user", messages[1].(map[string]any)["role"])

	// Second build rotates to the next key.
	httpReq2, err := adapter.Build(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer key-b", httpReq2.Header.Get("Authorization"))
}

func TestOpenAIAdapterBuildKeyless(t *testing.T) {
	adapter := NewOpenAIAdapter(configuration.ProviderOllama, configuration.ProviderConfig{
		Endpoint: "http://localhost:11434/v1",
	})

	httpReq, err := adapter.Build(context.Background(), &transport.Request{Model: "mistral", UserPrompt: "hi"})
	require.NoError(t, err)
	assert.Empty(t, httpReq.Header.Get("Authorization"))
}

func TestOpenAIAdapterParse(t *testing.T) {
	payload := `{
		"id": "chatcmpl-1",
		"choices": [{"message": {"role": "assistant", "content": "the grade"}}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`
	header := http.Header{}
	header.Set("x-request-id", "req-123")

	adapter := NewOpenAIAdapter(configuration.ProviderOpenAI, configuration.ProviderConfig{})
	resp, err := adapter.Parse(fakeResponse(200, header, payload))
	require.NoError(t, err)

	assert.Equal(t, "the grade", resp.Content)
	assert.Equal(t, int64(15), resp.Usage.TotalTokens)
	assert.Equal(t, []string{"req-123"}, resp.ProviderRequestIDs)
}

func TestOpenAIAdapterParseError(t *testing.T) {
	payload := `{"error": {"message": "Rate limit reached", "type": "rate_limit_error", "code": "rate_limit_exceeded"}}`
	header := http.Header{}
	header.Set("Retry-After", "20")

	adapter := NewOpenAIAdapter(configuration.ProviderOpenAI, configuration.ProviderConfig{})
	_, err := adapter.Parse(fakeResponse(429, header, payload))
	require.Error(t, err)

	var provErr *llmerrors.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 429, provErr.StatusCode)
	assert.Equal(t, llmerrors.ErrorTypeRateLimit, provErr.Type)
	assert.Equal(t, 20, provErr.RetryAfter)
	assert.True(t, llmerrors.IsRetryableError(err))
}

func TestAnthropicAdapterBuild(t *testing.T) {
	adapter := NewAnthropicAdapter(configuration.ProviderConfig{APIKeys: []string{"sk-ant"}})

	httpReq, err := adapter.Build(context.Background(), &transport.Request{
		Model:        "claude-3-sonnet",
		SystemPrompt: "you are a judge",
		UserPrompt:   "grade this",
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-ant", httpReq.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", httpReq.Header.Get("anthropic-version"))

	body := decodeBody(t, httpReq)
	assert.Equal(t, "you are a judge", body["system"])
	messages := body["messages"].([]any)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].(map[string]any)["role"])
}

func TestAnthropicAdapterParse(t *testing.T) {
	payload := `{
		"content": [{"type": "text", "text": "verdict here"}],
		"usage": {"input_tokens": 8, "output_tokens": 4}
	}`

	adapter := NewAnthropicAdapter(configuration.ProviderConfig{})
	resp, err := adapter.Parse(fakeResponse(200, nil, payload))
	require.NoError(t, err)

	assert.Equal(t, "verdict here", resp.Content)
	assert.Equal(t, int64(12), resp.Usage.TotalTokens)
}

func TestGoogleAdapterBuild(t *testing.T) {
	adapter := NewGoogleAdapter(configuration.ProviderConfig{
		Endpoint: "https://gl.example.com/v1beta",
		APIKeys:  []string{"g-key"},
	})

	httpReq, err := adapter.Build(context.Background(), &transport.Request{
		Model:        "gemini-pro",
		SystemPrompt: "judge",
		UserPrompt:   "grade",
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-pro:generateContent", httpReq.URL.Path)
	assert.Equal(t, "g-key", httpReq.URL.Query().Get("key"))

	body := decodeBody(t, httpReq)
	assert.Contains(t, body, "systemInstruction")
}

func TestGoogleAdapterParse(t *testing.T) {
	payload := `{
		"candidates": [{"content": {"parts": [{"text": "gemini verdict"}]}}],
		"usageMetadata": {"promptTokenCount": 6, "candidatesTokenCount": 3, "totalTokenCount": 9}
	}`

	adapter := NewGoogleAdapter(configuration.ProviderConfig{})
	resp, err := adapter.Parse(fakeResponse(200, nil, payload))
	require.NoError(t, err)

	assert.Equal(t, "gemini verdict", resp.Content)
	assert.Equal(t, int64(9), resp.Usage.TotalTokens)
}

func TestNewRouter(t *testing.T) {
	configs := map[string]configuration.ProviderConfig{
		configuration.ProviderOpenAI:    {},
		configuration.ProviderAnthropic: {},
		configuration.ProviderGoogle:    {},
		configuration.ProviderGroq:      {},
	}

	router, err := NewRouter(configs)
	require.NoError(t, err)

	for name := range configs {
		adapter, err := router.Pick(name, "any-model")
		require.NoError(t, err)
		assert.NotNil(t, adapter)
	}

	_, err = router.Pick("replicate", "any-model")
	assert.ErrorIs(t, err, llmerrors.ErrUnknownProvider)
}

func TestNewRouterUnknownProvider(t *testing.T) {
	_, err := NewRouter(map[string]configuration.ProviderConfig{"replicate": {}})
	assert.ErrorIs(t, err, llmerrors.ErrUnknownProvider)
}
