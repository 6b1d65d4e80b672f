package providers

import (
	"fmt"

	"github.com/coderated/gradepipe/internal/llm/configuration"
	llmerrors "github.com/coderated/gradepipe/internal/llm/errors"
	"github.com/coderated/gradepipe/internal/llm/transport"
)

// NewRouter creates a transport.Router with one adapter per configured
// provider. Providers speaking the OpenAI wire format (openrouter, groq,
// ollama) share the OpenAI adapter parameterized by name.
func NewRouter(configs map[string]configuration.ProviderConfig) (transport.Router, error) {
	adapters := make(map[string]transport.ProviderAdapter)

	for name, cfg := range configs {
		var adapter transport.ProviderAdapter
		switch name {
		case configuration.ProviderOpenAI,
			configuration.ProviderOpenRouter,
			configuration.ProviderGroq,
			configuration.ProviderOllama:
			adapter = NewOpenAIAdapter(name, cfg)
		case configuration.ProviderAnthropic:
			adapter = NewAnthropicAdapter(cfg)
		case configuration.ProviderGoogle:
			adapter = NewGoogleAdapter(cfg)
		default:
			return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, name)
		}
		adapters[name] = adapter
	}

	return &router{adapters: adapters}, nil
}

// router implements transport.Router over a provider adapter registry.
type router struct {
	adapters map[string]transport.ProviderAdapter
}

// Pick selects the adapter for the given provider name.
func (r *router) Pick(provider, _ string) (transport.ProviderAdapter, error) {
	adapter, ok := r.adapters[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", llmerrors.ErrUnknownProvider, provider)
	}
	return adapter, nil
}
