// Package configuration holds the provider gateway's routing and
// authentication tables: which provider owns a logical model name, each
// provider's endpoint, and where its API keys come from.
package configuration

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	llmerrors "github.com/coderated/gradepipe/internal/llm/errors"
)

// Config holds the gateway configuration: per-provider settings and the
// logical model name to provider routing table.
type Config struct {
	// HTTP client configuration.
	HTTPTimeout time.Duration `json:"http_timeout"`
	HTTPClient  *http.Client  `json:"-"`

	// Providers maps provider name to its settings.
	Providers map[string]ProviderConfig `json:"providers"`

	// Routes maps a logical model name to the provider that owns it.
	// Models absent from the table fall back to RouteByPrefix.
	Routes map[string]string `json:"routes"`
}

// ProviderConfig holds provider-specific endpoint and authentication data.
// APIKeys may hold several keys for one provider; the gateway rotates
// through them round-robin to spread rate limits.
type ProviderConfig struct {
	Endpoint  string            `json:"endpoint"`
	APIKeyEnv string            `json:"api_key_env"`
	APIKeys   []string          `json:"-"` // Sensitive, not serialized
	Headers   map[string]string `json:"headers"`
}

// LoadKeys resolves each provider's API keys from its configured
// environment variable. The variable may hold several comma-separated keys.
// Providers without a key-env entry (local endpoints) are left keyless.
func (c *Config) LoadKeys() {
	for name, pc := range c.Providers {
		if pc.APIKeyEnv == "" || len(pc.APIKeys) > 0 {
			continue
		}
		raw := os.Getenv(pc.APIKeyEnv)
		if raw == "" {
			continue
		}
		for _, key := range strings.Split(raw, ",") {
			if key = strings.TrimSpace(key); key != "" {
				pc.APIKeys = append(pc.APIKeys, key)
			}
		}
		c.Providers[name] = pc
	}
}

// ResolveProvider returns the provider owning the given logical model name.
func (c *Config) ResolveProvider(model string) (string, error) {
	if provider, ok := c.Routes[model]; ok {
		return provider, nil
	}
	if provider := RouteByPrefix(model); provider != "" {
		return provider, nil
	}
	return "", fmt.Errorf("%w: %s", llmerrors.ErrUnknownModel, model)
}

// RouteByPrefix guesses the provider for models missing a routing entry.
// Returns "" when no prefix matches.
func RouteByPrefix(model string) string {
	switch {
	case strings.HasPrefix(model, "gpt-") || strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3"):
		return ProviderOpenAI
	case strings.HasPrefix(model, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(model, "gemini"):
		return ProviderGoogle
	case strings.Contains(model, "/"):
		// Namespaced ids like "mistralai/mixtral-8x7b-instruct" are OpenRouter's.
		return ProviderOpenRouter
	default:
		return ""
	}
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}
	for model, provider := range c.Routes {
		if _, ok := c.Providers[provider]; !ok {
			return fmt.Errorf("%w: model %q routed to %q", llmerrors.ErrUnknownProvider, model, provider)
		}
	}
	return nil
}
